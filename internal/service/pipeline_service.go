package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/observability"
)

const defaultPipelineWorkers = 4

// PipelineService drives submissions through extraction and analysis.
type PipelineService interface {
	Run(ctx context.Context, submissionID uint) error
	RunBatch(ctx context.Context, submissionIDs []uint) dto.PipelineRunResponse
}

type pipelineService struct {
	extraction ExtractionService
	analysis   AnalysisService
	workers    int
	logger     zerolog.Logger
}

// NewPipelineService constructs the pipeline orchestrator. Workers bounds
// concurrent submissions in a batch run; zero or negative picks the default.
func NewPipelineService(extraction ExtractionService, analysis AnalysisService, workers int, logger zerolog.Logger) PipelineService {
	if workers <= 0 {
		workers = defaultPipelineWorkers
	}

	return &pipelineService{
		extraction: extraction,
		analysis:   analysis,
		workers:    workers,
		logger:     logger.With().Str("component", "pipeline_service").Logger(),
	}
}

// Run processes one submission end to end: extraction first, then analysis.
func (s *pipelineService) Run(ctx context.Context, submissionID uint) error {
	if err := s.extraction.Extract(ctx, submissionID); err != nil {
		observability.PipelineRuns().WithLabelValues("failed").Inc()
		return err
	}

	if err := s.analysis.Analyze(ctx, submissionID); err != nil {
		observability.PipelineRuns().WithLabelValues("failed").Inc()
		return err
	}

	observability.PipelineRuns().WithLabelValues("succeeded").Inc()
	return nil
}

// RunBatch processes many submissions with a bounded worker pool. Each item
// succeeds or fails independently; a cancelled context stops scheduling new
// items but items already running finish their current step.
func (s *pipelineService) RunBatch(ctx context.Context, submissionIDs []uint) dto.PipelineRunResponse {
	tracer := otel.Tracer("github.com/kkian481718/CEGAS/internal/service/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.run_batch")
	span.SetAttributes(attribute.Int("pipeline.batch_size", len(submissionIDs)))
	defer span.End()

	// Jobs carry batch positions, not IDs, so duplicate submission IDs in
	// one request each get their own result slot.
	jobs := make(chan int)
	results := make([]dto.PipelineItemResult, len(submissionIDs))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				id := submissionIDs[pos]
				item := dto.PipelineItemResult{SubmissionID: id, Status: lifecycle.StatusAnalyzed}
				if err := s.Run(ctx, id); err != nil {
					item.Status = lifecycle.StatusPending
					item.Error = err.Error()
				}
				mu.Lock()
				results[pos] = item
				mu.Unlock()
			}
		}()
	}

scheduling:
	for i, id := range submissionIDs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			mu.Lock()
			results[i] = dto.PipelineItemResult{
				SubmissionID: id,
				Status:       lifecycle.StatusPending,
				Error:        ctx.Err().Error(),
			}
			mu.Unlock()
			break scheduling
		}
	}
	close(jobs)
	wg.Wait()

	// Items never handed to a worker keep their zero value; mark them skipped.
	response := dto.PipelineRunResponse{Requested: len(submissionIDs), Items: results}
	for i := range results {
		if results[i].SubmissionID == 0 {
			results[i] = dto.PipelineItemResult{
				SubmissionID: submissionIDs[i],
				Status:       lifecycle.StatusPending,
				Error:        "skipped: batch aborted",
			}
		}
		if results[i].Error == "" {
			response.Succeeded++
		} else {
			response.Failed++
		}
	}

	s.logger.Info().
		Int("requested", response.Requested).
		Int("succeeded", response.Succeeded).
		Int("failed", response.Failed).
		Msg("pipeline batch finished")

	return response
}
