package dto

import (
	"time"

	"github.com/kkian481718/CEGAS/internal/models"
)

// DashboardResponse is the aggregate view shown on the landing page.
type DashboardResponse struct {
	Assignments []AssignmentProgressResponse `json:"assignments"`
	Graders     []GraderLoadResponse         `json:"graders"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

// ActivityResponse is one audit-trail entry.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewActivityResponseSlice converts activity log models into DTOs.
func NewActivityResponseSlice(entries []models.ActivityLog) []ActivityResponse {
	responses := make([]ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ActivityResponse{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			Action:     entry.Action,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Metadata:   entry.Metadata,
			CreatedAt:  entry.CreatedAt,
		})
	}

	return responses
}
