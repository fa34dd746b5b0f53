package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/observability"
	"github.com/kkian481718/CEGAS/internal/policy"
	"github.com/kkian481718/CEGAS/internal/repository"
)

// Grading sentinel errors.
var (
	ErrNotReadyForGrading = errors.New("submission has not been analyzed yet")
	ErrSubmissionLocked   = errors.New("submission is graded; reopen it to change grades")
	ErrQuestionOutOfRange = errors.New("question number outside assignment range")
	ErrScoreOutOfRange    = errors.New("score outside question range")
	ErrInvalidAnnotations = errors.New("annotations do not match the expected shape")
	ErrConfirmRequired    = errors.New("reopen requires explicit confirmation")
)

// annotationSchema constrains reviewer markup stored alongside a grade.
const annotationSchema = `{
	"type": "object",
	"required": ["version", "objects"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"objects": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type": {"type": "string", "minLength": 1},
					"line": {"type": "integer", "minimum": 1},
					"text": {"type": "string"}
				}
			}
		}
	},
	"additionalProperties": false
}`

// GradingService records per-question scores and finalizes submissions.
type GradingService interface {
	Grade(ctx context.Context, submissionID uint, payload dto.GradeRequest, actor ActivityActor) (dto.GradeResponse, error)
	Summary(ctx context.Context, submissionID uint) (dto.GradeSummaryResponse, error)
	Reopen(ctx context.Context, submissionID uint, payload dto.ReopenRequest, actor ActivityActor) error
	ListArchive(ctx context.Context, submissionID uint) ([]dto.GradeArchiveResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	grades      repository.GradeRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	schema      *jsonschema.Schema
	events      EventPublisher
	activity    ActivityRecorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	grades repository.GradeRepository,
	validate *validator.Validate,
	events EventPublisher,
	activity ActivityRecorder,
	logger zerolog.Logger,
) (GradingService, error) {
	schema, err := jsonschema.CompileString("annotations.json", annotationSchema)
	if err != nil {
		return nil, fmt.Errorf("compile annotation schema: %w", err)
	}

	return &gradingService{
		submissions: submissions,
		assignments: assignments,
		grades:      grades,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		schema:      schema,
		events:      events,
		activity:    activity,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}, nil
}

// Grade stores the score for one question. The question's max score is
// snapshotted from the assignment at write time, and once every question of
// the submission carries a score the submission moves to graded.
func (s *gradingService) Grade(ctx context.Context, submissionID uint, payload dto.GradeRequest, actor ActivityActor) (dto.GradeResponse, error) {
	tracer := otel.Tracer("github.com/kkian481718/CEGAS/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.grade")
	span.SetAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int("grading.question", payload.QuestionNumber),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, ErrSubmissionNotFound
		}
		return dto.GradeResponse{}, err
	}

	if !policy.Evaluate(policy.Actor{ID: actor.ID, Role: actor.Role}, policy.ActionGrade, policy.Target{SubmissionAssignee: submission.AssignedTo}) {
		span.SetStatus(codes.Error, "forbidden")
		return dto.GradeResponse{}, ErrForbidden
	}

	switch submission.Status {
	case lifecycle.StatusAnalyzed:
	case lifecycle.StatusGraded:
		return dto.GradeResponse{}, ErrSubmissionLocked
	default:
		return dto.GradeResponse{}, ErrNotReadyForGrading
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return dto.GradeResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	if !assignment.ValidQuestion(payload.QuestionNumber) {
		return dto.GradeResponse{}, fmt.Errorf("%w: question %d of %d", ErrQuestionOutOfRange, payload.QuestionNumber, assignment.TotalQuestions)
	}
	if payload.Score < 0 || payload.Score > assignment.PointsPerQuestion {
		return dto.GradeResponse{}, fmt.Errorf("%w: score %d, max %d", ErrScoreOutOfRange, payload.Score, assignment.PointsPerQuestion)
	}

	annotations, err := s.sanitizeAnnotations(payload.Annotations)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	score := payload.Score
	gradedBy := actor.ID
	grade := models.Grade{
		SubmissionID:   submissionID,
		QuestionNumber: payload.QuestionNumber,
		Score:          &score,
		MaxScore:       assignment.PointsPerQuestion,
		Comment:        strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment)),
		Annotations:    annotations,
		GradedBy:       &gradedBy,
		GradedAt:       s.now(),
	}

	if err := s.grades.Upsert(ctx, &grade); err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}
	observability.GradesRecorded().Inc()

	if err := s.maybeFinalize(ctx, submission, assignment); err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission.question_graded",
			EntityType: "submission",
			EntityID:   &submissionID,
			Metadata: map[string]interface{}{
				"question": payload.QuestionNumber,
				"score":    payload.Score,
			},
		})
	}

	return dto.NewGradeResponse(grade), nil
}

// maybeFinalize flips the submission to graded once every question is scored.
// Losing the transition race to a concurrent grader is fine: the submission
// already ended up graded.
func (s *gradingService) maybeFinalize(ctx context.Context, submission models.Submission, assignment models.Assignment) error {
	scored, err := s.grades.CountScored(ctx, submission.ID)
	if err != nil {
		return err
	}
	if scored < int64(assignment.TotalQuestions) {
		return nil
	}

	err = s.submissions.TransitionStatus(ctx, submission.ID, lifecycle.StatusAnalyzed, lifecycle.StatusGraded, nil)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	s.events.PublishSubmissionEvent(SubjectSubmissionGraded, SubmissionEvent{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		Status:       lifecycle.StatusGraded,
	})

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission fully graded")

	return nil
}

// Summary returns grading progress and totals for one submission.
func (s *gradingService) Summary(ctx context.Context, submissionID uint) (dto.GradeSummaryResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeSummaryResponse{}, ErrSubmissionNotFound
		}
		return dto.GradeSummaryResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return dto.GradeSummaryResponse{}, err
	}

	grades, err := s.grades.ListBySubmission(ctx, submissionID)
	if err != nil {
		return dto.GradeSummaryResponse{}, err
	}

	summary := dto.GradeSummaryResponse{
		SubmissionID:   submissionID,
		Status:         submission.Status,
		TotalQuestions: assignment.TotalQuestions,
		MaxScore:       assignment.TotalScore(),
		Grades:         dto.NewGradeResponseSlice(grades),
	}
	for _, grade := range grades {
		if grade.IsScored() {
			summary.ScoredCount++
			summary.TotalScore += *grade.Score
		}
	}

	return summary, nil
}

// Reopen archives a graded submission's grades and returns it to pending so
// the whole pipeline can run again. This is the only path out of graded and
// it deliberately bypasses the transition table.
func (s *gradingService) Reopen(ctx context.Context, submissionID uint, payload dto.ReopenRequest, actor ActivityActor) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}
	if !payload.Confirm {
		return ErrConfirmRequired
	}
	if !policy.Evaluate(policy.Actor{ID: actor.ID, Role: actor.Role}, policy.ActionReopen, policy.Target{}) {
		return ErrForbidden
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}
	if submission.Status != lifecycle.StatusGraded {
		return fmt.Errorf("%w: reopen requires %s, submission is %s", lifecycle.ErrInvalidTransition, lifecycle.StatusGraded, submission.Status)
	}

	archived, err := s.grades.ArchiveAndDelete(ctx, submissionID, payload.Reason, s.now())
	if err != nil {
		return err
	}

	extra := map[string]interface{}{"failure_reason": ""}
	if err := s.submissions.ForceStatus(ctx, submissionID, lifecycle.StatusPending, extra); err != nil {
		return err
	}
	observability.SubmissionsReopened().Inc()

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission.reopened",
			EntityType: "submission",
			EntityID:   &submissionID,
			Metadata: map[string]interface{}{
				"reason":          payload.Reason,
				"archived_grades": archived,
			},
		})
	}

	s.logger.Info().
		Uint("submission_id", submissionID).
		Int64("archived_grades", archived).
		Msg("submission reopened")

	return nil
}

// ListArchive returns grades displaced by past reopens.
func (s *gradingService) ListArchive(ctx context.Context, submissionID uint) ([]dto.GradeArchiveResponse, error) {
	archives, err := s.grades.ListArchive(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	return dto.NewGradeArchiveResponseSlice(archives), nil
}

func (s *gradingService) sanitizeAnnotations(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnnotations, err)
	}
	if err := s.schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnnotations, err)
	}

	return datatypes.JSON(raw), nil
}
