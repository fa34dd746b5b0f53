package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
)

// SubmissionFilter narrows submission queries.
type SubmissionFilter struct {
	AssignmentID *uint
	AssignedTo   *uint
	Status       *string
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetWithDetail(ctx context.Context, id uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	TransitionStatus(ctx context.Context, id uint, from, to string, extra map[string]interface{}) error
	ForceStatus(ctx context.Context, id uint, to string, extra map[string]interface{}) error
	UpdateAssignee(ctx context.Context, id uint, assignee *uint) error
	AssignBatch(ctx context.Context, assignments map[uint]uint) error
	ListUngradedByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error)
	CountByAssignee(ctx context.Context, graderIDs []uint) (map[uint]int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Assignee")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filter.AssignedTo)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("created_at ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetWithDetail(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Preload("Snippets", func(db *gorm.DB) *gorm.DB { return db.Order("question_number ASC") }).
		Preload("Snippets.Results").
		Preload("Grades", func(db *gorm.DB) *gorm.DB { return db.Order("question_number ASC") }).
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

// TransitionStatus performs the compare-and-swap status update that guards the
// pipeline. The WHERE clause on the expected current status makes the swap
// atomic at the datastore level: of two racing workers exactly one sees a row
// affected, the other gets lifecycle.ErrInvalidTransition.
func (r *submissionRepository) TransitionStatus(ctx context.Context, id uint, from, to string, extra map[string]interface{}) error {
	if err := lifecycle.Check(from, to); err != nil {
		return err
	}

	values := map[string]interface{}{"status": to}
	for column, value := range extra {
		values[column] = value
	}

	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s -> %s (stale status)", lifecycle.ErrInvalidTransition, from, to)
	}

	return nil
}

// ForceStatus sets the status unconditionally. Reserved for the administrative
// reopen path, which deliberately steps outside the transition table after
// archiving grades.
func (r *submissionRepository) ForceStatus(ctx context.Context, id uint, to string, extra map[string]interface{}) error {
	if !lifecycle.Valid(to) {
		return fmt.Errorf("%w: unknown status %q", lifecycle.ErrInvalidTransition, to)
	}

	values := map[string]interface{}{"status": to}
	for column, value := range extra {
		values[column] = value
	}

	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(values).Error
}

func (r *submissionRepository) UpdateAssignee(ctx context.Context, id uint, assignee *uint) error {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("assigned_to", assignee)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AssignBatch writes a set of submission -> grader assignments in one
// transaction so a bulk distribution is never half visible.
func (r *submissionRepository) AssignBatch(ctx context.Context, assignments map[uint]uint) error {
	if len(assignments) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for submissionID, graderID := range assignments {
			if err := tx.Model(&models.Submission{}).
				Where("id = ?", submissionID).
				Update("assigned_to", graderID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *submissionRepository) ListUngradedByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("assignment_id = ? AND status <> ?", assignmentID, lifecycle.StatusGraded).
		Order("created_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) CountByAssignee(ctx context.Context, graderIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(graderIDs))
	for _, id := range graderIDs {
		counts[id] = 0
	}

	if len(graderIDs) == 0 {
		return counts, nil
	}

	type row struct {
		AssignedTo uint
		Total      int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("assigned_to, COUNT(*) AS total").
		Where("assigned_to IN ? AND status <> ?", graderIDs, lifecycle.StatusGraded).
		Group("assigned_to").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.AssignedTo] = r.Total
	}

	return counts, nil
}
