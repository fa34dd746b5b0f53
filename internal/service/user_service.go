package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/policy"
	"github.com/kkian481718/CEGAS/internal/repository"
)

// User management sentinel errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrSelfDemotion = errors.New("admins cannot deactivate or demote themselves")
)

// UserService manages grader accounts. Accounts are provisioned explicitly
// by an administrator; there is no self-registration path.
type UserService interface {
	Create(ctx context.Context, payload dto.UserCreateRequest, actor ActivityActor) (dto.UserResponse, error)
	Update(ctx context.Context, id uint, payload dto.UserUpdateRequest, actor ActivityActor) (dto.UserResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	List(ctx context.Context) ([]dto.UserResponse, error)
	ListWithLoad(ctx context.Context) ([]dto.GraderLoadResponse, error)
}

type userService struct {
	profiles    repository.ProfileRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(
	profiles repository.ProfileRepository,
	submissions repository.SubmissionRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
) UserService {
	return &userService{
		profiles:    profiles,
		submissions: submissions,
		validator:   validate,
		activity:    activity,
		logger:      logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Create(ctx context.Context, payload dto.UserCreateRequest, actor ActivityActor) (dto.UserResponse, error) {
	if !policy.Evaluate(policy.Actor{ID: actor.ID, Role: actor.Role}, policy.ActionManageUser, policy.Target{}) {
		return dto.UserResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	profile := models.Profile{
		Email:       email,
		DisplayName: strings.TrimSpace(payload.DisplayName),
		Role:        payload.Role,
		IsActive:    true,
	}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		return dto.UserResponse{}, err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "user.created",
			EntityType: "user",
			EntityID:   &profile.ID,
			Metadata:   map[string]interface{}{"role": profile.Role},
		})
	}

	return dto.NewUserResponse(profile), nil
}

func (s *userService) Update(ctx context.Context, id uint, payload dto.UserUpdateRequest, actor ActivityActor) (dto.UserResponse, error) {
	if !policy.Evaluate(policy.Actor{ID: actor.ID, Role: actor.Role}, policy.ActionManageUser, policy.Target{}) {
		return dto.UserResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	// An admin editing their own account cannot lock themselves out.
	if profile.ID == actor.ID {
		if payload.IsActive != nil && !*payload.IsActive {
			return dto.UserResponse{}, ErrSelfDemotion
		}
		if payload.Role != nil && *payload.Role != models.RoleAdmin {
			return dto.UserResponse{}, ErrSelfDemotion
		}
	}

	if payload.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*payload.DisplayName)
	}
	if payload.Role != nil {
		profile.Role = *payload.Role
	}
	if payload.IsActive != nil {
		profile.IsActive = *payload.IsActive
	}

	if err := s.profiles.Update(ctx, &profile); err != nil {
		return dto.UserResponse{}, err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "user.updated",
			EntityType: "user",
			EntityID:   &profile.ID,
		})
	}

	return dto.NewUserResponse(profile), nil
}

// Delete removes a grader account. Their submission assignments are cleared
// so the work flows back into the distribution pool.
func (s *userService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if !policy.Evaluate(policy.Actor{ID: actor.ID, Role: actor.Role}, policy.ActionManageUser, policy.Target{}) {
		return ErrForbidden
	}
	if id == actor.ID {
		return ErrSelfDemotion
	}

	if err := s.profiles.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "user.deleted",
			EntityType: "user",
			EntityID:   &id,
		})
	}

	return nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(profile), nil
}

func (s *userService) List(ctx context.Context) ([]dto.UserResponse, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewUserResponseSlice(profiles), nil
}

// ListWithLoad pairs each grader with the number of submissions currently
// assigned to them.
func (s *userService) ListWithLoad(ctx context.Context) ([]dto.GraderLoadResponse, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(profiles))
	for _, profile := range profiles {
		ids = append(ids, profile.ID)
	}
	loads, err := s.submissions.CountByAssignee(ctx, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GraderLoadResponse, 0, len(profiles))
	for _, profile := range profiles {
		responses = append(responses, dto.GraderLoadResponse{
			UserResponse:  dto.NewUserResponse(profile),
			AssignedCount: loads[profile.ID],
		})
	}

	return responses, nil
}
