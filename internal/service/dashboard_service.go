package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/repository"
)

const (
	dashboardCacheKey = "cegas:dashboard"
	dashboardCacheTTL = 30 * time.Second
)

// DashboardService aggregates pipeline progress for the landing page.
type DashboardService interface {
	Overview(ctx context.Context) (dto.DashboardResponse, error)
	Invalidate(ctx context.Context)
}

type dashboardService struct {
	assignments repository.AssignmentRepository
	profiles    repository.ProfileRepository
	submissions repository.SubmissionRepository
	redis       *redis.Client
	logger      zerolog.Logger
	now         func() time.Time
}

// NewDashboardService constructs the dashboard service. The redis client is
// optional; without it every call recomputes the aggregate.
func NewDashboardService(
	assignments repository.AssignmentRepository,
	profiles repository.ProfileRepository,
	submissions repository.SubmissionRepository,
	redisClient *redis.Client,
	logger zerolog.Logger,
) DashboardService {
	return &dashboardService{
		assignments: assignments,
		profiles:    profiles,
		submissions: submissions,
		redis:       redisClient,
		logger:      logger.With().Str("component", "dashboard_service").Logger(),
		now:         time.Now,
	}
}

// Overview returns per-assignment progress and grader workloads. The result
// is cached briefly because the landing page polls it.
func (s *dashboardService) Overview(ctx context.Context) (dto.DashboardResponse, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}

	response, err := s.build(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	s.toCache(ctx, response)

	return response, nil
}

// Invalidate drops the cached overview, called after mutations that change
// what the dashboard shows.
func (s *dashboardService) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, dashboardCacheKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

func (s *dashboardService) build(ctx context.Context) (dto.DashboardResponse, error) {
	active := models.AssignmentStatusActive
	assignments, err := s.assignments.List(ctx, repository.AssignmentFilter{Status: &active})
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	response := dto.DashboardResponse{
		Assignments: make([]dto.AssignmentProgressResponse, 0, len(assignments)),
		GeneratedAt: s.now().UTC(),
	}
	for _, assignment := range assignments {
		counts, err := s.assignments.SubmissionStatusCounts(ctx, assignment.ID)
		if err != nil {
			return dto.DashboardResponse{}, err
		}
		response.Assignments = append(response.Assignments, dto.AssignmentProgressResponse{
			Assignment: dto.NewAssignmentResponse(assignment),
			Counts: dto.SubmissionStatusCount{
				Total:     counts.Total,
				Pending:   counts.Pending,
				Analyzing: counts.Analyzing,
				Analyzed:  counts.Analyzed,
				Graded:    counts.Graded,
			},
		})
	}

	graders, err := s.profiles.ListActiveGraders(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	ids := make([]uint, 0, len(graders))
	for _, grader := range graders {
		ids = append(ids, grader.ID)
	}
	loads, err := s.submissions.CountByAssignee(ctx, ids)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	for _, grader := range graders {
		response.Graders = append(response.Graders, dto.GraderLoadResponse{
			UserResponse:  dto.NewUserResponse(grader),
			AssignedCount: loads[grader.ID],
		})
	}

	return response, nil
}

func (s *dashboardService) fromCache(ctx context.Context) (dto.DashboardResponse, bool) {
	if s.redis == nil {
		return dto.DashboardResponse{}, false
	}

	payload, err := s.redis.Get(ctx, dashboardCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("dashboard cache read failed")
		}
		return dto.DashboardResponse{}, false
	}

	var cached dto.DashboardResponse
	if err := json.Unmarshal(payload, &cached); err != nil {
		return dto.DashboardResponse{}, false
	}

	return cached, true
}

func (s *dashboardService) toCache(ctx context.Context, response dto.DashboardResponse) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, dashboardCacheKey, payload, dashboardCacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("dashboard cache write failed")
	}
}
