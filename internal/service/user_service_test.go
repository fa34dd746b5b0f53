package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/models"
)

func userFixture(profiles ...models.Profile) (UserService, *fakeProfileRepo, *fakeSubmissionRepo) {
	profileRepo := newFakeProfileRepo(profiles...)
	submissionRepo := newFakeSubmissionRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewUserService(profileRepo, submissionRepo, validate, nil, testLogger())

	return svc, profileRepo, submissionRepo
}

func TestUserCreateRequiresAdmin(t *testing.T) {
	svc, _, _ := userFixture()

	payload := dto.UserCreateRequest{Email: "ta@example.edu", DisplayName: "New TA", Role: models.RoleTA}
	_, err := svc.Create(context.Background(), payload, ActivityActor{ID: 5, Role: models.RoleTA})
	require.ErrorIs(t, err, ErrForbidden)

	created, err := svc.Create(context.Background(), payload, ActivityActor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, "ta@example.edu", created.Email)
	require.True(t, created.IsActive)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	svc, _, _ := userFixture(models.Profile{ID: 1, Email: "ta@example.edu", DisplayName: "TA", Role: models.RoleTA, IsActive: true})

	payload := dto.UserCreateRequest{Email: "TA@example.edu", DisplayName: "Other", Role: models.RoleTA}
	_, err := svc.Create(context.Background(), payload, ActivityActor{ID: 9, Role: models.RoleAdmin})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserSelfLockoutPrevented(t *testing.T) {
	svc, _, _ := userFixture(models.Profile{ID: 1, Email: "admin@example.edu", DisplayName: "Admin", Role: models.RoleAdmin, IsActive: true})
	self := ActivityActor{ID: 1, Role: models.RoleAdmin}

	inactive := false
	_, err := svc.Update(context.Background(), 1, dto.UserUpdateRequest{IsActive: &inactive}, self)
	require.ErrorIs(t, err, ErrSelfDemotion)

	ta := models.RoleTA
	_, err = svc.Update(context.Background(), 1, dto.UserUpdateRequest{Role: &ta}, self)
	require.ErrorIs(t, err, ErrSelfDemotion)

	err = svc.Delete(context.Background(), 1, self)
	require.ErrorIs(t, err, ErrSelfDemotion)
}

func TestUserDeactivateOtherGrader(t *testing.T) {
	svc, profiles, _ := userFixture(
		models.Profile{ID: 1, Email: "admin@example.edu", DisplayName: "Admin", Role: models.RoleAdmin, IsActive: true},
		models.Profile{ID: 2, Email: "ta@example.edu", DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)

	inactive := false
	updated, err := svc.Update(context.Background(), 2, dto.UserUpdateRequest{IsActive: &inactive}, ActivityActor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.False(t, profiles.profiles[2].IsActive)
}

func TestUserListWithLoad(t *testing.T) {
	svc, _, submissions := userFixture(
		models.Profile{ID: 1, Email: "a@example.edu", DisplayName: "A", Role: models.RoleTA, IsActive: true},
		models.Profile{ID: 2, Email: "b@example.edu", DisplayName: "B", Role: models.RoleTA, IsActive: true},
	)
	grader := uint(2)
	submissions.submissions[10] = &models.Submission{ID: 10, AssignmentID: 1, AssignedTo: &grader}

	loads, err := svc.ListWithLoad(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 2)
	require.EqualValues(t, 0, loads[0].AssignedCount)
	require.EqualValues(t, 1, loads[1].AssignedCount)
}
