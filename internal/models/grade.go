package models

import (
	"time"

	"gorm.io/datatypes"
)

// Grade is the human-entered score for one question of one submission.
// MaxScore is snapshotted from the assignment at grading time so later
// assignment edits never change historical grades.
type Grade struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	SubmissionID   uint           `gorm:"not null;uniqueIndex:idx_grade_submission_question" json:"submission_id"`
	QuestionNumber int            `gorm:"not null;uniqueIndex:idx_grade_submission_question" json:"question_number"`
	Score          *int           `json:"score"`
	MaxScore       int            `gorm:"not null" json:"max_score"`
	Comment        string         `gorm:"type:text" json:"comment"`
	Annotations    datatypes.JSON `json:"annotations"`
	GradedBy       *uint          `json:"graded_by"`
	GradedAt       time.Time      `json:"graded_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsScored reports whether the question has received a score.
func (g Grade) IsScored() bool {
	return g.Score != nil
}

// GradeArchive preserves a grade row that was displaced by an administrative
// reopen. Archived rows are append-only audit records.
type GradeArchive struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	SubmissionID   uint           `gorm:"not null;index" json:"submission_id"`
	QuestionNumber int            `gorm:"not null" json:"question_number"`
	Score          *int           `json:"score"`
	MaxScore       int            `gorm:"not null" json:"max_score"`
	Comment        string         `gorm:"type:text" json:"comment"`
	Annotations    datatypes.JSON `json:"annotations"`
	GradedBy       *uint          `json:"graded_by"`
	GradedAt       time.Time      `json:"graded_at"`
	ArchivedAt     time.Time      `json:"archived_at"`
	Reason         string         `gorm:"size:255" json:"reason"`
}

// NewGradeArchive copies a grade into its archived form.
func NewGradeArchive(grade Grade, reason string, archivedAt time.Time) GradeArchive {
	return GradeArchive{
		SubmissionID:   grade.SubmissionID,
		QuestionNumber: grade.QuestionNumber,
		Score:          grade.Score,
		MaxScore:       grade.MaxScore,
		Comment:        grade.Comment,
		Annotations:    grade.Annotations,
		GradedBy:       grade.GradedBy,
		GradedAt:       grade.GradedAt,
		ArchivedAt:     archivedAt,
		Reason:         reason,
	}
}
