package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/policy"
	"github.com/kkian481718/CEGAS/internal/repository"
)

// Distribution sentinel errors.
var (
	ErrDistributionBusy = errors.New("distribution already running for assignment")
	ErrGraderInactive   = errors.New("grader cannot receive work")
	ErrNoActiveGraders  = errors.New("no active graders available")
	ErrForbidden        = errors.New("actor is not allowed to perform this action")
)

const distributionLockTTL = 2 * time.Minute

// DistributionService assigns submissions to graders, manually or in bulk.
type DistributionService interface {
	Assign(ctx context.Context, submissionID uint, graderID *uint, actor ActivityActor) (dto.SubmissionResponse, error)
	Distribute(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.DistributeResponse, error)
}

type distributionService struct {
	submissions repository.SubmissionRepository
	profiles    repository.ProfileRepository
	redis       *redis.Client
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewDistributionService constructs the distribution service.
func NewDistributionService(
	submissions repository.SubmissionRepository,
	profiles repository.ProfileRepository,
	redisClient *redis.Client,
	activity ActivityRecorder,
	logger zerolog.Logger,
) DistributionService {
	return &distributionService{
		submissions: submissions,
		profiles:    profiles,
		redis:       redisClient,
		activity:    activity,
		logger:      logger.With().Str("component", "distribution_service").Logger(),
	}
}

// Assign sets or clears the grader responsible for one submission.
func (s *distributionService) Assign(ctx context.Context, submissionID uint, graderID *uint, actor ActivityActor) (dto.SubmissionResponse, error) {
	if !policy.Evaluate(policy.Actor{ID: actor.ID, Role: actor.Role}, policy.ActionAssign, policy.Target{}) {
		return dto.SubmissionResponse{}, ErrForbidden
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if graderID != nil {
		grader, err := s.profiles.GetByID(ctx, *graderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.SubmissionResponse{}, fmt.Errorf("%w: grader %d", ErrGraderInactive, *graderID)
			}
			return dto.SubmissionResponse{}, err
		}
		if !grader.CanReceiveWork() {
			return dto.SubmissionResponse{}, ErrGraderInactive
		}
	}

	if err := s.submissions.UpdateAssignee(ctx, submissionID, graderID); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission.AssignedTo = graderID
	if s.activity != nil {
		metadata := map[string]interface{}{"submission_id": submissionID}
		if graderID != nil {
			metadata["grader_id"] = *graderID
		}
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission.assigned",
			EntityType: "submission",
			EntityID:   &submissionID,
			Metadata:   metadata,
		})
	}

	return dto.NewSubmissionResponse(submission), nil
}

// Distribute spreads the assignment's unassigned ungraded submissions across
// active graders, always handing the next submission to the least loaded
// grader. A redis lock keeps concurrent runs for the same assignment from
// double-assigning; a second caller gets ErrDistributionBusy immediately.
func (s *distributionService) Distribute(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.DistributeResponse, error) {
	tracer := otel.Tracer("github.com/kkian481718/CEGAS/internal/service/distribution")
	ctx, span := tracer.Start(ctx, "distribution.run")
	span.SetAttributes(attribute.Int64("assignment.id", int64(assignmentID)))
	defer span.End()

	if !policy.Evaluate(policy.Actor{ID: actor.ID, Role: actor.Role}, policy.ActionDistribute, policy.Target{}) {
		return dto.DistributeResponse{}, ErrForbidden
	}

	unlock, err := s.acquireLock(ctx, assignmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock_not_acquired")
		return dto.DistributeResponse{}, err
	}
	defer unlock()

	graders, err := s.profiles.ListActiveGraders(ctx)
	if err != nil {
		return dto.DistributeResponse{}, err
	}
	if len(graders) == 0 {
		return dto.DistributeResponse{}, ErrNoActiveGraders
	}

	graderIDs := make([]uint, 0, len(graders))
	for _, grader := range graders {
		graderIDs = append(graderIDs, grader.ID)
	}
	loads, err := s.submissions.CountByAssignee(ctx, graderIDs)
	if err != nil {
		return dto.DistributeResponse{}, err
	}

	submissions, err := s.submissions.ListUngradedByAssignment(ctx, assignmentID)
	if err != nil {
		return dto.DistributeResponse{}, err
	}

	response := dto.DistributeResponse{
		AssignmentID: assignmentID,
		PerGrader:    make(map[uint]int),
	}

	batch := make(map[uint]uint)
	for _, submission := range submissions {
		if submission.AssignedTo != nil {
			response.Skipped++
			continue
		}
		grader := pickLeastLoaded(graders, loads)
		batch[submission.ID] = grader
		loads[grader]++
		response.PerGrader[grader]++
		response.Assigned++
	}

	if len(batch) > 0 {
		if err := s.submissions.AssignBatch(ctx, batch); err != nil {
			span.RecordError(err)
			return dto.DistributeResponse{}, err
		}
	}

	for _, grader := range graders {
		response.Graders = append(response.Graders, dto.GraderLoadInfo{
			GraderID:    grader.ID,
			DisplayName: grader.DisplayName,
			Load:        loads[grader.ID],
		})
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "assignment.distributed",
			EntityType: "assignment",
			EntityID:   &assignmentID,
			Metadata: map[string]interface{}{
				"assigned": response.Assigned,
				"skipped":  response.Skipped,
			},
		})
	}

	s.logger.Info().
		Uint("assignment_id", assignmentID).
		Int("assigned", response.Assigned).
		Int("skipped", response.Skipped).
		Msg("distribution completed")

	return response, nil
}

func (s *distributionService) acquireLock(ctx context.Context, assignmentID uint) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("cegas:distribute:%d", assignmentID)
	ok, err := s.redis.SetNX(ctx, key, "1", distributionLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire distribution lock: %w", err)
	}
	if !ok {
		return nil, ErrDistributionBusy
	}

	return func() {
		if err := s.redis.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to release distribution lock")
		}
	}, nil
}

// pickLeastLoaded returns the active grader with the fewest assigned
// submissions. Graders are listed in creation order, so ties go to the
// longest-standing account deterministically.
func pickLeastLoaded(graders []models.Profile, loads map[uint]int64) uint {
	best := graders[0].ID
	for _, grader := range graders[1:] {
		if loads[grader.ID] < loads[best] {
			best = grader.ID
		}
	}
	return best
}
