package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/models"
)

// AnalysisResultRepository defines data operations for static-analysis findings.
type AnalysisResultRepository interface {
	ListBySnippet(ctx context.Context, snippetID uint) ([]models.AnalysisResult, error)
	ReplaceForSnippet(ctx context.Context, snippetID uint, results []models.AnalysisResult) error
}

type analysisResultRepository struct {
	db *gorm.DB
}

// NewAnalysisResultRepository instantiates the repository.
func NewAnalysisResultRepository(db *gorm.DB) AnalysisResultRepository {
	return &analysisResultRepository{db: db}
}

func (r *analysisResultRepository) ListBySnippet(ctx context.Context, snippetID uint) ([]models.AnalysisResult, error) {
	var results []models.AnalysisResult
	if err := r.db.WithContext(ctx).
		Where("snippet_id = ?", snippetID).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

// ReplaceForSnippet deletes the snippet's prior findings and inserts the new
// set in a single transaction, so re-running analysis never accumulates
// generations and a crash mid-replace never duplicates rows.
func (r *analysisResultRepository) ReplaceForSnippet(ctx context.Context, snippetID uint, results []models.AnalysisResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("snippet_id = ?", snippetID).Delete(&models.AnalysisResult{}).Error; err != nil {
			return err
		}

		if len(results) == 0 {
			return nil
		}

		for i := range results {
			results[i].SnippetID = snippetID
		}

		return tx.Create(&results).Error
	})
}
