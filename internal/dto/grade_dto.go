package dto

import (
	"encoding/json"
	"time"

	"github.com/kkian481718/CEGAS/internal/models"
)

// GradeRequest scores one question of a submission. Annotations carry the
// reviewer's inline markup and are validated against a schema before storage.
type GradeRequest struct {
	QuestionNumber int             `json:"question_number" validate:"required,min=1"`
	Score          int             `json:"score" validate:"min=0"`
	Comment        string          `json:"comment" validate:"max=4000"`
	Annotations    json.RawMessage `json:"annotations"`
}

// ReopenRequest unlocks a graded submission for re-grading. Confirm must be
// set so the destructive action cannot be triggered by accident.
type ReopenRequest struct {
	Reason  string `json:"reason" validate:"required,min=3,max=255"`
	Confirm bool   `json:"confirm"`
}

// GradeResponse is one question's grade as returned to API clients.
type GradeResponse struct {
	ID             uint            `json:"id"`
	SubmissionID   uint            `json:"submission_id"`
	QuestionNumber int             `json:"question_number"`
	Score          *int            `json:"score"`
	MaxScore       int             `json:"max_score"`
	Comment        string          `json:"comment,omitempty"`
	Annotations    json.RawMessage `json:"annotations,omitempty"`
	GradedBy       *uint           `json:"graded_by"`
	GradedAt       time.Time       `json:"graded_at"`
}

// GradeSummaryResponse reports overall progress for one submission.
type GradeSummaryResponse struct {
	SubmissionID   uint            `json:"submission_id"`
	Status         string          `json:"status"`
	TotalQuestions int             `json:"total_questions"`
	ScoredCount    int             `json:"scored_count"`
	TotalScore     int             `json:"total_score"`
	MaxScore       int             `json:"max_score"`
	Grades         []GradeResponse `json:"grades"`
}

// GradeArchiveResponse is one archived grade from a past grading round.
type GradeArchiveResponse struct {
	ID             uint      `json:"id"`
	QuestionNumber int       `json:"question_number"`
	Score          *int      `json:"score"`
	MaxScore       int       `json:"max_score"`
	Comment        string    `json:"comment,omitempty"`
	GradedBy       *uint     `json:"graded_by"`
	GradedAt       time.Time `json:"graded_at"`
	ArchivedAt     time.Time `json:"archived_at"`
	Reason         string    `json:"reason"`
}

// NewGradeResponse converts a model into a DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		ID:             model.ID,
		SubmissionID:   model.SubmissionID,
		QuestionNumber: model.QuestionNumber,
		Score:          model.Score,
		MaxScore:       model.MaxScore,
		Comment:        model.Comment,
		Annotations:    json.RawMessage(model.Annotations),
		GradedBy:       model.GradedBy,
		GradedAt:       model.GradedAt,
	}
}

// NewGradeResponseSlice converts a slice of models into DTOs.
func NewGradeResponseSlice(grades []models.Grade) []GradeResponse {
	responses := make([]GradeResponse, 0, len(grades))
	for _, grade := range grades {
		responses = append(responses, NewGradeResponse(grade))
	}

	return responses
}

// NewGradeArchiveResponseSlice converts archived grades into DTOs.
func NewGradeArchiveResponseSlice(archives []models.GradeArchive) []GradeArchiveResponse {
	responses := make([]GradeArchiveResponse, 0, len(archives))
	for _, archive := range archives {
		responses = append(responses, GradeArchiveResponse{
			ID:             archive.ID,
			QuestionNumber: archive.QuestionNumber,
			Score:          archive.Score,
			MaxScore:       archive.MaxScore,
			Comment:        archive.Comment,
			GradedBy:       archive.GradedBy,
			GradedAt:       archive.GradedAt,
			ArchivedAt:     archive.ArchivedAt,
			Reason:         archive.Reason,
		})
	}

	return responses
}
