package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/models"
)

// SnippetRepository defines data operations for extracted code snippets.
type SnippetRepository interface {
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.CodeSnippet, error)
	ReplaceForSubmission(ctx context.Context, submissionID uint, snippets []models.CodeSnippet) error
}

type snippetRepository struct {
	db *gorm.DB
}

// NewSnippetRepository instantiates the repository.
func NewSnippetRepository(db *gorm.DB) SnippetRepository {
	return &snippetRepository{db: db}
}

func (r *snippetRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.CodeSnippet, error) {
	var snippets []models.CodeSnippet
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("question_number ASC").
		Find(&snippets).Error; err != nil {
		return nil, err
	}

	return snippets, nil
}

// ReplaceForSubmission swaps the submission's snippet set in one transaction.
// Prior analysis results hanging off the old snippets go with them, so a
// crash mid-run can never leave a mixed generation behind.
func (r *snippetRepository) ReplaceForSubmission(ctx context.Context, submissionID uint, snippets []models.CodeSnippet) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldIDs []uint
		if err := tx.Model(&models.CodeSnippet{}).
			Where("submission_id = ?", submissionID).
			Pluck("id", &oldIDs).Error; err != nil {
			return err
		}

		if len(oldIDs) > 0 {
			if err := tx.Where("snippet_id IN ?", oldIDs).Delete(&models.AnalysisResult{}).Error; err != nil {
				return err
			}
			if err := tx.Where("submission_id = ?", submissionID).Delete(&models.CodeSnippet{}).Error; err != nil {
				return err
			}
		}

		if len(snippets) == 0 {
			return nil
		}

		for i := range snippets {
			snippets[i].SubmissionID = submissionID
		}

		return tx.Create(&snippets).Error
	})
}
