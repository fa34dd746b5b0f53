package dto

import (
	"time"

	"github.com/kkian481718/CEGAS/internal/models"
)

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	Title             string  `json:"title" validate:"required,min=3,max=255"`
	Type              string  `json:"type" validate:"required,oneof=exam homework"`
	Semester          string  `json:"semester" validate:"required,max=32"`
	DueDate           *string `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	TotalQuestions    int     `json:"total_questions" validate:"required,min=1,max=20"`
	PointsPerQuestion int     `json:"points_per_question" validate:"required,min=1,max=100"`
}

// AssignmentUpdateRequest describes the payload for updating an assignment.
// Question layout fields are intentionally absent: once submissions exist the
// sheet shape is frozen and only metadata may change.
type AssignmentUpdateRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=3,max=255"`
	Semester *string `json:"semester" validate:"omitempty,max=32"`
	DueDate  *string `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID                uint       `json:"id"`
	Title             string     `json:"title"`
	Type              string     `json:"type"`
	Semester          string     `json:"semester"`
	DueDate           *time.Time `json:"due_date"`
	TotalQuestions    int        `json:"total_questions"`
	PointsPerQuestion int        `json:"points_per_question"`
	TotalScore        int        `json:"total_score"`
	Status            string     `json:"status"`
	CreatedBy         *uint      `json:"created_by"`
	CreatorName       string     `json:"creator_name,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AssignmentProgressResponse pairs an assignment with its submission counts.
type AssignmentProgressResponse struct {
	Assignment AssignmentResponse    `json:"assignment"`
	Counts     SubmissionStatusCount `json:"counts"`
}

// SubmissionStatusCount breaks down submissions by pipeline status.
type SubmissionStatusCount struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Analyzing int64 `json:"analyzing"`
	Analyzed  int64 `json:"analyzed"`
	Graded    int64 `json:"graded"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	response := AssignmentResponse{
		ID:                model.ID,
		Title:             model.Title,
		Type:              model.Type,
		Semester:          model.Semester,
		DueDate:           model.DueDate,
		TotalQuestions:    model.TotalQuestions,
		PointsPerQuestion: model.PointsPerQuestion,
		TotalScore:        model.TotalScore(),
		Status:            model.Status,
		CreatedBy:         model.CreatedBy,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
	if model.Creator != nil {
		response.CreatorName = model.Creator.DisplayName
	}

	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
