package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/repository"
)

// AssignmentService manages exam and homework sheets.
type AssignmentService interface {
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Archive(ctx context.Context, id uint, actor ActivityActor) error
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	List(ctx context.Context, filter repository.AssignmentFilter) ([]dto.AssignmentResponse, error)
	Progress(ctx context.Context, id uint) (dto.AssignmentProgressResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	creator := actor.ID
	assignment := models.Assignment{
		Title:             payload.Title,
		Type:              payload.Type,
		Semester:          payload.Semester,
		TotalQuestions:    payload.TotalQuestions,
		PointsPerQuestion: payload.PointsPerQuestion,
		CreatedBy:         &creator,
		Status:            models.AssignmentStatusActive,
	}
	if payload.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.DueDate = &due
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "assignment.created",
			EntityType: "assignment",
			EntityID:   &assignment.ID,
			Metadata: map[string]interface{}{
				"title": assignment.Title,
				"type":  assignment.Type,
			},
		})
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if assignment.IsArchived() {
		return dto.AssignmentResponse{}, ErrAssignmentArchived
	}

	if payload.Title != nil {
		assignment.Title = *payload.Title
	}
	if payload.Semester != nil {
		assignment.Semester = *payload.Semester
	}
	if payload.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.DueDate = &due
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "assignment.updated",
			EntityType: "assignment",
			EntityID:   &assignment.ID,
		})
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Archive(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.Archive(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "assignment.archived",
			EntityType: "assignment",
			EntityID:   &id,
		})
	}

	return nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) List(ctx context.Context, filter repository.AssignmentFilter) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Progress(ctx context.Context, id uint) (dto.AssignmentProgressResponse, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentProgressResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentProgressResponse{}, err
	}

	counts, err := s.repo.SubmissionStatusCounts(ctx, id)
	if err != nil {
		return dto.AssignmentProgressResponse{}, err
	}

	return dto.AssignmentProgressResponse{
		Assignment: dto.NewAssignmentResponse(assignment),
		Counts: dto.SubmissionStatusCount{
			Total:     counts.Total,
			Pending:   counts.Pending,
			Analyzing: counts.Analyzing,
			Analyzed:  counts.Analyzed,
			Graded:    counts.Graded,
		},
	}, nil
}
