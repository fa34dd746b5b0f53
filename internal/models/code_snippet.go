package models

import "time"

// CodeSnippet holds the code extracted for one question of one submission.
// Snippets are written only by the extraction run and replaced wholesale by a
// re-extraction; they are never edited in place.
type CodeSnippet struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	SubmissionID   uint             `gorm:"not null;uniqueIndex:idx_snippet_submission_question" json:"submission_id"`
	QuestionNumber int              `gorm:"not null;uniqueIndex:idx_snippet_submission_question" json:"question_number"`
	RawCode        string           `gorm:"type:text" json:"raw_code"`
	NormalizedCode string           `gorm:"type:text" json:"normalized_code"`
	CreatedAt      time.Time        `json:"created_at"`
	Results        []AnalysisResult `gorm:"foreignKey:SnippetID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
}
