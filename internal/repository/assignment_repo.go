package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/models"
)

// AssignmentFilter narrows assignment queries.
type AssignmentFilter struct {
	Status   *string
	Semester *string
}

// StatusCounts summarizes submissions of an assignment per pipeline status.
type StatusCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Analyzing int64 `json:"analyzing"`
	Analyzed  int64 `json:"analyzed"`
	Graded    int64 `json:"graded"`
}

// AssignmentRepository defines data operations for assignments.
type AssignmentRepository interface {
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Archive(ctx context.Context, id uint) error
	SubmissionStatusCounts(ctx context.Context, id uint) (StatusCounts, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{}).Preload("Creator")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.Semester != nil {
		query = query.Where("semester = ?", *filter.Semester)
	}

	var assignments []models.Assignment
	if err := query.Order("created_at DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Preload("Creator").First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

// Archive soft deletes the assignment. Its submissions stay in place and drop
// out of default listings with it; nothing is hard deleted.
func (r *assignmentRepository) Archive(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("status", models.AssignmentStatusArchived)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assignmentRepository) SubmissionStatusCounts(ctx context.Context, id uint) (StatusCounts, error) {
	type row struct {
		Status string
		Total  int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("status, COUNT(*) AS total").
		Where("assignment_id = ?", id).
		Group("status").
		Find(&rows).Error; err != nil {
		return StatusCounts{}, err
	}

	counts := StatusCounts{}
	for _, r := range rows {
		counts.Total += r.Total
		switch r.Status {
		case "pending":
			counts.Pending = r.Total
		case "analyzing":
			counts.Analyzing = r.Total
		case "analyzed":
			counts.Analyzed = r.Total
		case "graded":
			counts.Graded = r.Total
		}
	}

	return counts, nil
}
