package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func distributionFixture(submissionCount int, graders ...models.Profile) (*fakeSubmissionRepo, *fakeProfileRepo) {
	submissions := make([]models.Submission, 0, submissionCount)
	for i := 1; i <= submissionCount; i++ {
		submissions = append(submissions, models.Submission{
			ID:           uint(i),
			AssignmentID: 7,
			Status:       lifecycle.StatusAnalyzed,
		})
	}

	return newFakeSubmissionRepo(submissions...), newFakeProfileRepo(graders...)
}

func TestDistributeBalancesLoad(t *testing.T) {
	submissions, profiles := distributionFixture(7,
		models.Profile{ID: 1, DisplayName: "Admin", Role: models.RoleAdmin, IsActive: true},
		models.Profile{ID: 2, DisplayName: "TA One", Role: models.RoleTA, IsActive: true},
		models.Profile{ID: 3, DisplayName: "TA Two", Role: models.RoleTA, IsActive: false},
	)

	svc := NewDistributionService(submissions, profiles, testRedis(t), nil, testLogger())
	response, err := svc.Distribute(context.Background(), 7, ActivityActor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)

	// Seven submissions over two active graders: 4 and 3, never 5 and 2.
	require.Equal(t, 7, response.Assigned)
	require.Equal(t, 0, response.Skipped)
	require.Len(t, response.PerGrader, 2)
	require.NotContains(t, response.PerGrader, uint(3))
	for grader, count := range response.PerGrader {
		require.Truef(t, count == 3 || count == 4, "grader %d got %d submissions", grader, count)
	}

	for _, s := range submissions.submissions {
		require.NotNil(t, s.AssignedTo)
		require.NotEqual(t, uint(3), *s.AssignedTo)
	}
}

func TestDistributeRespectsExistingLoad(t *testing.T) {
	submissions, profiles := distributionFixture(2,
		models.Profile{ID: 1, DisplayName: "TA One", Role: models.RoleTA, IsActive: true},
		models.Profile{ID: 2, DisplayName: "TA Two", Role: models.RoleTA, IsActive: true},
	)
	// TA One already carries work from another assignment.
	busy := uint(1)
	for i := 0; i < 3; i++ {
		submissions.submissions[uint(100+i)] = &models.Submission{
			ID:           uint(100 + i),
			AssignmentID: 8,
			AssignedTo:   &busy,
			Status:       lifecycle.StatusAnalyzed,
		}
	}

	svc := NewDistributionService(submissions, profiles, testRedis(t), nil, testLogger())
	response, err := svc.Distribute(context.Background(), 7, ActivityActor{ID: 9, Role: models.RoleAdmin})
	require.NoError(t, err)

	require.Equal(t, 2, response.Assigned)
	require.Equal(t, 2, response.PerGrader[2])
	require.Zero(t, response.PerGrader[1])
}

func TestDistributeSkipsAssignedAndGraded(t *testing.T) {
	submissions, profiles := distributionFixture(3,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)
	existing := uint(1)
	submissions.submissions[1].AssignedTo = &existing
	submissions.submissions[2].Status = lifecycle.StatusGraded

	svc := NewDistributionService(submissions, profiles, testRedis(t), nil, testLogger())
	response, err := svc.Distribute(context.Background(), 7, ActivityActor{ID: 9, Role: models.RoleAdmin})
	require.NoError(t, err)

	require.Equal(t, 1, response.Assigned)
	require.Equal(t, 1, response.Skipped)
}

func TestDistributeLockRejectsConcurrentRun(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)
	client := testRedis(t)
	require.NoError(t, client.SetNX(context.Background(), "cegas:distribute:7", "1", 0).Err())

	svc := NewDistributionService(submissions, profiles, client, nil, testLogger())
	_, err := svc.Distribute(context.Background(), 7, ActivityActor{ID: 9, Role: models.RoleAdmin})
	require.ErrorIs(t, err, ErrDistributionBusy)
}

func TestDistributeReleasesLock(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)
	client := testRedis(t)

	svc := NewDistributionService(submissions, profiles, client, nil, testLogger())
	actor := ActivityActor{ID: 9, Role: models.RoleAdmin}

	_, err := svc.Distribute(context.Background(), 7, actor)
	require.NoError(t, err)

	// The lock is gone, so a second run proceeds.
	_, err = svc.Distribute(context.Background(), 7, actor)
	require.NoError(t, err)
}

func TestDistributeRequiresActiveGraders(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: false},
	)

	svc := NewDistributionService(submissions, profiles, testRedis(t), nil, testLogger())
	_, err := svc.Distribute(context.Background(), 7, ActivityActor{ID: 9, Role: models.RoleAdmin})
	require.ErrorIs(t, err, ErrNoActiveGraders)
}

func TestDistributeAdminOnly(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)

	svc := NewDistributionService(submissions, profiles, testRedis(t), nil, testLogger())
	_, err := svc.Distribute(context.Background(), 7, ActivityActor{ID: 5, Role: models.RoleTA})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAssignChecksGraderActive(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: false},
	)

	svc := NewDistributionService(submissions, profiles, nil, nil, testLogger())
	grader := uint(1)
	_, err := svc.Assign(context.Background(), 1, &grader, ActivityActor{ID: 9, Role: models.RoleAdmin})
	require.ErrorIs(t, err, ErrGraderInactive)
}

func TestAssignAndUnassign(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)
	recorder := &fakeRecorder{}

	svc := NewDistributionService(submissions, profiles, nil, recorder, testLogger())
	admin := ActivityActor{ID: 9, Role: models.RoleAdmin}

	grader := uint(1)
	response, err := svc.Assign(context.Background(), 1, &grader, admin)
	require.NoError(t, err)
	require.Equal(t, grader, *response.AssignedTo)

	response, err = svc.Assign(context.Background(), 1, nil, admin)
	require.NoError(t, err)
	require.Nil(t, response.AssignedTo)

	require.Len(t, recorder.entries, 2)
	require.Equal(t, "submission.assigned", recorder.entries[0].Action)
}

func TestAssignForbiddenForTA(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)

	svc := NewDistributionService(submissions, profiles, nil, nil, testLogger())
	grader := uint(1)
	_, err := svc.Assign(context.Background(), 1, &grader, ActivityActor{ID: 1, Role: models.RoleTA})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPickLeastLoadedTieGoesToFirst(t *testing.T) {
	graders := []models.Profile{{ID: 2}, {ID: 5}, {ID: 9}}
	loads := map[uint]int64{2: 1, 5: 1, 9: 1}
	require.Equal(t, uint(2), pickLeastLoaded(graders, loads))

	loads[5] = 0
	require.Equal(t, uint(5), pickLeastLoaded(graders, loads))
}

func TestDistributeLockKeyPerAssignment(t *testing.T) {
	submissions, profiles := distributionFixture(1,
		models.Profile{ID: 1, DisplayName: "TA", Role: models.RoleTA, IsActive: true},
	)
	client := testRedis(t)
	// A lock on another assignment does not block this one.
	require.NoError(t, client.SetNX(context.Background(), fmt.Sprintf("cegas:distribute:%d", 99), "1", 0).Err())

	svc := NewDistributionService(submissions, profiles, client, nil, testLogger())
	_, err := svc.Distribute(context.Background(), 7, ActivityActor{ID: 9, Role: models.RoleAdmin})
	require.NoError(t, err)
}
