package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/pkg/cppcheck"
	"github.com/kkian481718/CEGAS/pkg/extractor"
)

type fakeExtraction struct {
	mu      sync.Mutex
	calls   []uint
	failFor map[uint]error
	active  int32
	peak    int32
}

func (f *fakeExtraction) Extract(ctx context.Context, submissionID uint) error {
	current := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, current) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, submissionID)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := f.failFor[submissionID]; ok {
		return err
	}
	return nil
}

type fakeAnalysis struct {
	mu    sync.Mutex
	calls []uint
}

func (f *fakeAnalysis) Analyze(ctx context.Context, submissionID uint) error {
	f.mu.Lock()
	f.calls = append(f.calls, submissionID)
	f.mu.Unlock()
	return nil
}

func TestPipelineBatchReportsPerItem(t *testing.T) {
	extraction := &fakeExtraction{failFor: map[uint]error{3: errors.New("unreadable document")}}
	analysis := &fakeAnalysis{}

	svc := NewPipelineService(extraction, analysis, 2, testLogger())
	response := svc.RunBatch(context.Background(), []uint{1, 2, 3, 4})

	require.Equal(t, 4, response.Requested)
	require.Equal(t, 3, response.Succeeded)
	require.Equal(t, 1, response.Failed)
	require.Len(t, response.Items, 4)

	require.Equal(t, uint(3), response.Items[2].SubmissionID)
	require.Equal(t, lifecycle.StatusPending, response.Items[2].Status)
	require.Contains(t, response.Items[2].Error, "unreadable document")

	// A failed extraction never reaches analysis.
	require.Len(t, analysis.calls, 3)
	require.NotContains(t, analysis.calls, uint(3))
}

func TestPipelineBatchBoundsConcurrency(t *testing.T) {
	extraction := &fakeExtraction{}
	analysis := &fakeAnalysis{}

	svc := NewPipelineService(extraction, analysis, 2, testLogger())
	ids := make([]uint, 16)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	response := svc.RunBatch(context.Background(), ids)

	require.Equal(t, 16, response.Succeeded)
	require.LessOrEqual(t, extraction.peak, int32(2))
}

func TestPipelineBatchDuplicateIDsGetOwnSlots(t *testing.T) {
	extraction := &fakeExtraction{}
	analysis := &fakeAnalysis{}

	svc := NewPipelineService(extraction, analysis, 2, testLogger())
	response := svc.RunBatch(context.Background(), []uint{1, 2, 2, 3})

	require.Equal(t, 4, response.Requested)
	require.Equal(t, 4, response.Succeeded)
	require.Len(t, response.Items, 4)
	require.Equal(t, uint(2), response.Items[1].SubmissionID)
	require.Equal(t, uint(2), response.Items[2].SubmissionID)
	for _, item := range response.Items {
		require.Empty(t, item.Error)
	}
}

func TestPipelineBatchAbortStopsScheduling(t *testing.T) {
	extraction := &fakeExtraction{}
	analysis := &fakeAnalysis{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewPipelineService(extraction, analysis, 1, testLogger())
	response := svc.RunBatch(ctx, []uint{1, 2, 3})

	require.Equal(t, 3, response.Requested)
	require.Equal(t, 3, response.Failed)
	for _, item := range response.Items {
		require.NotEmpty(t, item.Error)
	}
}

// TestPipelineEndToEnd drives a real extraction and analysis pass over a
// three-question exam where only two questions are found.
func TestPipelineEndToEnd(t *testing.T) {
	assignments := newFakeAssignmentRepo(models.Assignment{
		ID:                7,
		TotalQuestions:    3,
		PointsPerQuestion: 20,
		Status:            models.AssignmentStatusActive,
	})
	submissions := newFakeSubmissionRepo(models.Submission{
		ID:           1,
		AssignmentID: 7,
		StudentID:    "b11001",
		FilePath:     "https://store.local/doc",
		Status:       lifecycle.StatusPending,
	})
	store := newFakeStore()
	store.documents["https://store.local/doc"] = []byte("document")
	snippets := newFakeSnippetRepo()
	results := newFakeAnalysisRepo()
	events := &fakeEvents{}

	ext := &fakeExtractor{output: extractor.Output{
		Questions: map[int]extractor.Question{
			1: {Code: "int main() { return 0; }", Confidence: 0.9},
			2: {Code: "int* p; *p = 1;", Confidence: 0.8},
		},
	}}
	line := 1
	runner := &fakeRunner{findings: map[string][]cppcheck.Finding{
		"int* p; *p = 1;": {{RuleID: "uninitvar", Message: "Uninitialized pointer: p", Line: &line, Severity: "error"}},
	}}

	extraction := NewExtractionService(submissions, assignments, snippets, store, ext, events, testLogger())
	analysis := NewAnalysisService(submissions, snippets, results, runner, events, testLogger())
	svc := NewPipelineService(extraction, analysis, 0, testLogger())

	require.NoError(t, svc.Run(context.Background(), 1))

	stored := submissions.submissions[1]
	require.Equal(t, lifecycle.StatusAnalyzed, stored.Status)
	require.Equal(t, 67, *stored.ParseCompleteness)

	persisted := snippets.snippets[1]
	require.Len(t, persisted, 2)

	var findingCount int
	for _, snippet := range persisted {
		findingCount += len(results.results[snippet.ID])
	}
	require.Equal(t, 1, findingCount)

	require.Len(t, events.published, 2)
	require.Equal(t, SubjectSubmissionAnalyzing, events.published[0].subject)
	require.Equal(t, SubjectSubmissionAnalyzed, events.published[1].subject)
}
