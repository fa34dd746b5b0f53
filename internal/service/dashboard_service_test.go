package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/repository"
)

func TestDashboardOverviewCached(t *testing.T) {
	assignments := newFakeAssignmentRepo(models.Assignment{
		ID:                1,
		Title:             "Midterm",
		TotalQuestions:    3,
		PointsPerQuestion: 20,
		Status:            models.AssignmentStatusActive,
	})
	assignments.counts = repository.StatusCounts{Total: 5, Pending: 5}
	profiles := newFakeProfileRepo(models.Profile{ID: 1, Email: "ta@example.edu", DisplayName: "TA", Role: models.RoleTA, IsActive: true})
	submissions := newFakeSubmissionRepo()

	svc := NewDashboardService(assignments, profiles, submissions, testRedis(t), testLogger())

	first, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Assignments, 1)
	require.EqualValues(t, 5, first.Assignments[0].Counts.Pending)
	require.Len(t, first.Graders, 1)

	// A data change within the TTL is not visible until invalidation.
	assignments.counts = repository.StatusCounts{Total: 5, Graded: 5}
	cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 5, cached.Assignments[0].Counts.Pending)

	svc.Invalidate(context.Background())
	fresh, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 5, fresh.Assignments[0].Counts.Graded)
}

func TestDashboardWithoutRedis(t *testing.T) {
	assignments := newFakeAssignmentRepo()
	profiles := newFakeProfileRepo()
	submissions := newFakeSubmissionRepo()

	svc := NewDashboardService(assignments, profiles, submissions, nil, testLogger())
	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Empty(t, overview.Assignments)
	require.False(t, overview.GeneratedAt.IsZero())
}
