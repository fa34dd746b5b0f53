package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kkian481718/CEGAS/internal/models"
)

// GradeRepository defines data operations for grades and their audit archive.
type GradeRepository interface {
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Grade, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	CountScored(ctx context.Context, submissionID uint) (int64, error)
	ArchiveAndDelete(ctx context.Context, submissionID uint, reason string, archivedAt time.Time) (int64, error)
	ListArchive(ctx context.Context, submissionID uint) ([]models.GradeArchive, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("question_number ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

// Upsert writes the grade with last-write-wins semantics per question. The
// conflict target is the (submission, question) unique index, so a duplicate
// network resubmission overwrites instead of duplicating. MaxScore is kept
// from the first write: it is a snapshot, not a live value.
func (r *gradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}, {Name: "question_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "comment", "annotations", "graded_by", "graded_at", "updated_at",
		}),
	}).Create(grade).Error
}

func (r *gradeRepository) CountScored(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Grade{}).
		Where("submission_id = ? AND score IS NOT NULL", submissionID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// ArchiveAndDelete moves all of a submission's grades into the archive table
// and removes the live rows, in one transaction. Returns how many grades were
// archived.
func (r *gradeRepository) ArchiveAndDelete(ctx context.Context, submissionID uint, reason string, archivedAt time.Time) (int64, error) {
	var archived int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grades []models.Grade
		if err := tx.Where("submission_id = ?", submissionID).Find(&grades).Error; err != nil {
			return err
		}

		if len(grades) == 0 {
			return nil
		}

		records := make([]models.GradeArchive, 0, len(grades))
		for _, grade := range grades {
			records = append(records, models.NewGradeArchive(grade, reason, archivedAt))
		}

		if err := tx.Create(&records).Error; err != nil {
			return err
		}

		if err := tx.Where("submission_id = ?", submissionID).Delete(&models.Grade{}).Error; err != nil {
			return err
		}

		archived = int64(len(grades))
		return nil
	})

	return archived, err
}

func (r *gradeRepository) ListArchive(ctx context.Context, submissionID uint) ([]models.GradeArchive, error) {
	var records []models.GradeArchive
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("archived_at DESC, question_number ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}
