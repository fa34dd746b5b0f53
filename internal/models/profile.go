package models

import "time"

// Grader roles understood by the permission layer.
const (
	RoleAdmin = "admin"
	RoleTA    = "ta"
)

// Profile represents a grader account that can be assigned submissions and enter grades.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"size:255;not null" json:"display_name"`
	Role        string    `gorm:"size:16;not null;default:ta" json:"role"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanReceiveWork reports whether the grader may be assigned new submissions.
func (p Profile) CanReceiveWork() bool {
	return p.IsActive
}
