package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/normalize"
	"github.com/kkian481718/CEGAS/internal/repository"
	"github.com/kkian481718/CEGAS/pkg/extractor"
	"github.com/kkian481718/CEGAS/pkg/storage"
)

// ErrSubmissionNotFound indicates the submission was not located.
var ErrSubmissionNotFound = errors.New("submission not found")

// Extracted questions below this confidence are flagged for manual review.
const lowConfidenceThreshold = 0.5

// ExtractionService pulls per-question code out of an uploaded document and
// persists it as snippets, moving the submission from pending to analyzing.
type ExtractionService interface {
	Extract(ctx context.Context, submissionID uint) error
}

type extractionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	snippets    repository.SnippetRepository
	store       storage.DocumentStore
	extractor   extractor.Extractor
	events      EventPublisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewExtractionService constructs the extraction service.
func NewExtractionService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	snippets repository.SnippetRepository,
	store storage.DocumentStore,
	ext extractor.Extractor,
	events EventPublisher,
	logger zerolog.Logger,
) ExtractionService {
	return &extractionService{
		submissions: submissions,
		assignments: assignments,
		snippets:    snippets,
		store:       store,
		extractor:   ext,
		events:      events,
		logger:      logger.With().Str("component", "extraction_service").Logger(),
		now:         time.Now,
	}
}

// Extract claims the submission for processing, runs the external extractor,
// and replaces the submission's snippet set in one transaction. Any failure
// after the claim releases the submission back to pending with a recorded
// reason so the run can be retried.
func (s *extractionService) Extract(ctx context.Context, submissionID uint) error {
	tracer := otel.Tracer("github.com/kkian481718/CEGAS/internal/service/extraction")
	ctx, span := tracer.Start(ctx, "extraction.run")
	span.SetAttributes(attribute.Int64("submission.id", int64(submissionID)))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return fmt.Errorf("load assignment: %w", err)
	}

	// Claim the submission. Losing the race means another worker already
	// started processing, which is not an error worth retrying here.
	if err := s.submissions.TransitionStatus(ctx, submissionID, lifecycle.StatusPending, lifecycle.StatusAnalyzing, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim_failed")
		return err
	}

	s.events.PublishSubmissionEvent(SubjectSubmissionAnalyzing, SubmissionEvent{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		Status:       lifecycle.StatusAnalyzing,
	})

	if err := s.runExtraction(ctx, submission, assignment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction_failed")
		s.release(ctx, submission, err)
		return err
	}

	return nil
}

func (s *extractionService) runExtraction(ctx context.Context, submission models.Submission, assignment models.Assignment) error {
	document, err := s.store.Fetch(ctx, submission.FilePath)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}

	output, err := s.extractor.Extract(ctx, document, submission.OriginalFilename, assignment.TotalQuestions)
	if err != nil {
		return err
	}

	snippets, warnings := buildSnippets(submission.ID, assignment.TotalQuestions, output)

	// Replace wholesale so a re-run never leaves a mix of generations.
	if err := s.snippets.ReplaceForSubmission(ctx, submission.ID, snippets); err != nil {
		return fmt.Errorf("store snippets: %w", err)
	}

	completeness := completenessPercent(len(snippets), assignment.TotalQuestions)
	encoded, err := models.EncodeParseWarnings(warnings)
	if err != nil {
		return fmt.Errorf("encode parse warnings: %w", err)
	}

	submission.ParseCompleteness = &completeness
	submission.UnmatchedContent = output.Unmatched
	submission.ParseWarnings = encoded
	submission.FailureReason = ""
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return fmt.Errorf("record extraction outcome: %w", err)
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Int("snippets", len(snippets)).
		Int("completeness", completeness).
		Msg("extraction completed")

	return nil
}

// release returns a claimed submission to pending after a failed run. The
// rollback runs on a non-cancellable context so an aborted or disconnected
// run still lands back in pending with its reason recorded.
func (s *extractionService) release(ctx context.Context, submission models.Submission, cause error) {
	ctx = context.WithoutCancel(ctx)

	extra := map[string]interface{}{"failure_reason": truncateReason(cause.Error())}
	if err := s.submissions.TransitionStatus(ctx, submission.ID, lifecycle.StatusAnalyzing, lifecycle.StatusPending, extra); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to release submission after extraction error")
		return
	}

	s.events.PublishSubmissionEvent(SubjectSubmissionFailed, SubmissionEvent{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		Status:       lifecycle.StatusPending,
		Reason:       truncateReason(cause.Error()),
	})
}

func buildSnippets(submissionID uint, totalQuestions int, output extractor.Output) ([]models.CodeSnippet, models.ParseWarnings) {
	warnings := models.ParseWarnings{
		UnmatchedCharCount: len(output.Unmatched),
	}

	snippets := make([]models.CodeSnippet, 0, len(output.Questions))
	for question := 1; question <= totalQuestions; question++ {
		extracted, ok := output.Questions[question]
		if !ok || extracted.Code == "" {
			warnings.MissingQuestions = append(warnings.MissingQuestions, question)
			continue
		}
		if extracted.Confidence < lowConfidenceThreshold {
			warnings.LowConfidenceQuestions = append(warnings.LowConfidenceQuestions, question)
		}

		snippets = append(snippets, models.CodeSnippet{
			SubmissionID:   submissionID,
			QuestionNumber: question,
			RawCode:        extracted.Code,
			NormalizedCode: normalize.Code(extracted.Code),
		})
	}

	sort.Slice(snippets, func(i, j int) bool {
		return snippets[i].QuestionNumber < snippets[j].QuestionNumber
	})

	return snippets, warnings
}

// completenessPercent is the share of questions with extracted code, rounded
// to the nearest whole percent.
func completenessPercent(matched, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(matched) / float64(total) * 100))
}

func truncateReason(reason string) string {
	const limit = 512
	if len(reason) > limit {
		return reason[:limit]
	}
	return reason
}
