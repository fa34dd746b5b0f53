package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Submission represents one student's uploaded document for one assignment.
type Submission struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	AssignmentID      uint           `gorm:"not null;index" json:"assignment_id"`
	StudentID         string         `gorm:"size:64;not null" json:"student_id"`
	StudentName       string         `gorm:"size:255;not null" json:"student_name"`
	ClassName         string         `gorm:"size:64" json:"class_name"`
	FilePath          string         `gorm:"size:512;not null" json:"file_path"`
	OriginalFilename  string         `gorm:"size:255" json:"original_filename"`
	AssignedTo        *uint          `gorm:"index" json:"assigned_to"`
	Status            string         `gorm:"size:16;not null;default:pending" json:"status"`
	ParseCompleteness *int           `json:"parse_completeness"`
	UnmatchedContent  string         `gorm:"type:text" json:"unmatched_content"`
	ParseWarnings     datatypes.JSON `json:"parse_warnings"`
	FailureReason     string         `gorm:"size:512" json:"failure_reason"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Assignment        Assignment     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Assignee          *Profile       `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	Snippets          []CodeSnippet  `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"snippets,omitempty"`
	Grades            []Grade        `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"grades,omitempty"`
}

// ParseWarnings describes what the extractor could not attribute with confidence.
type ParseWarnings struct {
	MissingQuestions       []int `json:"missing_questions,omitempty"`
	LowConfidenceQuestions []int `json:"low_confidence_questions,omitempty"`
	UnmatchedCharCount     int   `json:"unmatched_char_count"`
}

// IsEmpty reports whether the warning set carries no information.
func (w ParseWarnings) IsEmpty() bool {
	return len(w.MissingQuestions) == 0 && len(w.LowConfidenceQuestions) == 0 && w.UnmatchedCharCount == 0
}

// EncodeParseWarnings serializes warnings into the JSON column representation.
func EncodeParseWarnings(w ParseWarnings) (datatypes.JSON, error) {
	payload, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}

// DecodeParseWarnings deserializes the JSON column back into the structured form.
func DecodeParseWarnings(raw datatypes.JSON) (ParseWarnings, error) {
	var w ParseWarnings
	if len(raw) == 0 {
		return w, nil
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return ParseWarnings{}, err
	}
	return w, nil
}
