package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/repository"
	"github.com/kkian481718/CEGAS/pkg/cppcheck"
)

// ErrNoSnippets indicates a submission reached analysis with no extracted code.
var ErrNoSnippets = errors.New("no code extracted for submission")

// ErrAnalyzerUnavailable indicates the analyzer failed on every snippet.
var ErrAnalyzerUnavailable = errors.New("analyzer failed for all snippets")

// AnalysisService runs static analysis over a submission's snippets and
// moves it from analyzing to analyzed.
type AnalysisService interface {
	Analyze(ctx context.Context, submissionID uint) error
}

type analysisService struct {
	submissions repository.SubmissionRepository
	snippets    repository.SnippetRepository
	results     repository.AnalysisResultRepository
	runner      cppcheck.Runner
	events      EventPublisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAnalysisService constructs the analysis service.
func NewAnalysisService(
	submissions repository.SubmissionRepository,
	snippets repository.SnippetRepository,
	results repository.AnalysisResultRepository,
	runner cppcheck.Runner,
	events EventPublisher,
	logger zerolog.Logger,
) AnalysisService {
	return &analysisService{
		submissions: submissions,
		snippets:    snippets,
		results:     results,
		runner:      runner,
		events:      events,
		logger:      logger.With().Str("component", "analysis_service").Logger(),
		now:         time.Now,
	}
}

// Analyze runs the analyzer over every snippet of an analyzing submission.
// A crash on one snippet is recorded as a tool-failure marker on that
// snippet and the rest keep going. Only when every snippet fails, or there
// is nothing to analyze at all, does the submission fall back to pending.
func (s *analysisService) Analyze(ctx context.Context, submissionID uint) error {
	tracer := otel.Tracer("github.com/kkian481718/CEGAS/internal/service/analysis")
	ctx, span := tracer.Start(ctx, "analysis.run")
	span.SetAttributes(attribute.Int64("submission.id", int64(submissionID)))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}
	if submission.Status != lifecycle.StatusAnalyzing {
		err := fmt.Errorf("%w: analysis requires %s, submission is %s", lifecycle.ErrInvalidTransition, lifecycle.StatusAnalyzing, submission.Status)
		span.RecordError(err)
		return err
	}

	snippets, err := s.snippets.ListBySubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if len(snippets) == 0 {
		s.fail(ctx, submission, ErrNoSnippets)
		return ErrNoSnippets
	}

	failures := 0
	for _, snippet := range snippets {
		if err := s.analyzeSnippet(ctx, snippet); err != nil {
			if ctx.Err() != nil {
				s.fail(ctx, submission, ctx.Err())
				return ctx.Err()
			}
			failures++
		}
	}

	if failures == len(snippets) {
		span.SetStatus(codes.Error, "analyzer_unavailable")
		s.fail(ctx, submission, ErrAnalyzerUnavailable)
		return ErrAnalyzerUnavailable
	}

	if err := s.submissions.TransitionStatus(ctx, submissionID, lifecycle.StatusAnalyzing, lifecycle.StatusAnalyzed, nil); err != nil {
		span.RecordError(err)
		return err
	}

	s.events.PublishSubmissionEvent(SubjectSubmissionAnalyzed, SubmissionEvent{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		Status:       lifecycle.StatusAnalyzed,
	})

	s.logger.Info().
		Uint("submission_id", submissionID).
		Int("snippets", len(snippets)).
		Int("tool_failures", failures).
		Msg("analysis completed")

	return nil
}

// analyzeSnippet runs the analyzer on one snippet and replaces its findings.
// A tool failure stores a single marker row so graders can see the snippet
// was not analyzed rather than clean.
func (s *analysisService) analyzeSnippet(ctx context.Context, snippet models.CodeSnippet) error {
	findings, err := s.runner.Analyze(ctx, snippet.NormalizedCode)
	if err != nil {
		s.logger.Warn().Err(err).
			Uint("snippet_id", snippet.ID).
			Int("question", snippet.QuestionNumber).
			Msg("analyzer failed for snippet")

		marker := []models.AnalysisResult{{
			SnippetID:  snippet.ID,
			Message:    truncateReason(fmt.Sprintf("analysis tool failed: %v", err)),
			Severity:   models.SeverityInformation,
			ToolFailed: true,
		}}
		if storeErr := s.results.ReplaceForSnippet(ctx, snippet.ID, marker); storeErr != nil {
			s.logger.Error().Err(storeErr).Uint("snippet_id", snippet.ID).Msg("failed to store tool-failure marker")
		}
		return err
	}

	results := make([]models.AnalysisResult, 0, len(findings))
	for _, finding := range findings {
		severity := finding.Severity
		if !models.ValidSeverity(severity) {
			severity = models.SeverityInformation
		}
		results = append(results, models.AnalysisResult{
			SnippetID:  snippet.ID,
			ErrorID:    finding.RuleID,
			Message:    finding.Message,
			LineNumber: finding.Line,
			Severity:   severity,
		})
	}

	return s.results.ReplaceForSnippet(ctx, snippet.ID, results)
}

func (s *analysisService) fail(ctx context.Context, submission models.Submission, cause error) {
	// The rollback must land even when the failure is the context being
	// cancelled, otherwise the submission is stranded in analyzing.
	ctx = context.WithoutCancel(ctx)

	extra := map[string]interface{}{"failure_reason": truncateReason(cause.Error())}
	if err := s.submissions.TransitionStatus(ctx, submission.ID, lifecycle.StatusAnalyzing, lifecycle.StatusPending, extra); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to release submission after analysis error")
		return
	}

	s.events.PublishSubmissionEvent(SubjectSubmissionFailed, SubmissionEvent{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		Status:       lifecycle.StatusPending,
		Reason:       truncateReason(cause.Error()),
	})
}
