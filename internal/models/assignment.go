package models

import "time"

// Assignment kinds.
const (
	AssignmentTypeExam     = "exam"
	AssignmentTypeHomework = "homework"
)

// Assignment lifecycle statuses.
const (
	AssignmentStatusActive   = "active"
	AssignmentStatusArchived = "archived"
)

// Assignment represents one exam or homework sheet handed out to students.
type Assignment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Type              string     `gorm:"size:16;not null" json:"type"`
	Semester          string     `gorm:"size:32;not null" json:"semester"`
	DueDate           *time.Time `json:"due_date"`
	TotalQuestions    int        `gorm:"not null;default:5" json:"total_questions"`
	PointsPerQuestion int        `gorm:"not null;default:20" json:"points_per_question"`
	CreatedBy         *uint      `json:"created_by"`
	Status            string     `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Creator           *Profile   `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Submissions       []Submission
}

// TotalScore is the achievable score for a fully answered sheet. It is derived
// on demand and never persisted.
func (a Assignment) TotalScore() int {
	return a.TotalQuestions * a.PointsPerQuestion
}

// IsArchived reports whether the assignment has been soft deleted.
func (a Assignment) IsArchived() bool {
	return a.Status == AssignmentStatusArchived
}

// ValidQuestion reports whether the given 1-based question number exists on this sheet.
func (a Assignment) ValidQuestion(question int) bool {
	return question >= 1 && question <= a.TotalQuestions
}
