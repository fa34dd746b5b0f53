package dto

import (
	"time"

	"github.com/kkian481718/CEGAS/internal/models"
)

// UserCreateRequest provisions a grader account. Accounts are created
// explicitly by an administrator, never on first login.
type UserCreateRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=255"`
	Role        string `json:"role" validate:"required,oneof=admin ta"`
}

// UserUpdateRequest edits a grader account.
type UserUpdateRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=2,max=255"`
	Role        *string `json:"role" validate:"omitempty,oneof=admin ta"`
	IsActive    *bool   `json:"is_active"`
}

// UserResponse is the serialized grader account.
type UserResponse struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// GraderLoadResponse pairs a grader with their current workload.
type GraderLoadResponse struct {
	UserResponse
	AssignedCount int64 `json:"assigned_count"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(model models.Profile) UserResponse {
	return UserResponse{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        model.Role,
		IsActive:    model.IsActive,
		CreatedAt:   model.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(profiles []models.Profile) []UserResponse {
	responses := make([]UserResponse, 0, len(profiles))
	for _, profile := range profiles {
		responses = append(responses, NewUserResponse(profile))
	}

	return responses
}
