package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/service"
	"github.com/kkian481718/CEGAS/internal/utils"
)

// PipelineHandler wires extraction/analysis and bulk distribution endpoints.
type PipelineHandler struct {
	pipeline     service.PipelineService
	distribution service.DistributionService
	validator    *validator.Validate
	logger       zerolog.Logger
}

// NewPipelineHandler constructs the handler.
func NewPipelineHandler(pipeline service.PipelineService, distribution service.DistributionService, validate *validator.Validate, logger zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipeline:     pipeline,
		distribution: distribution,
		validator:    validate,
		logger:       logger.With().Str("component", "pipeline_handler").Logger(),
	}
}

// Register attaches pipeline endpoints to the router group.
func (h *PipelineHandler) Register(router fiber.Router) {
	router.Post("/run", h.runBatch)
	router.Post("/submissions/:id/run", h.runOne)
	router.Post("/distribute", h.distribute)
}

func (h *PipelineHandler) runBatch(c *fiber.Ctx) error {
	var payload dto.PipelineRunRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response := h.pipeline.RunBatch(c.Context(), payload.SubmissionIDs)

	return utils.SendSuccess(c, "pipeline batch finished", response)
}

func (h *PipelineHandler) runOne(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.pipeline.Run(c.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		default:
			h.logger.Error().Err(err).Uint("submission_id", id).Msg("pipeline run failed")
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		}
	}

	return utils.SendSuccess(c, "submission processed", nil)
}

func (h *PipelineHandler) distribute(c *fiber.Ctx) error {
	var payload dto.DistributeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.distribution.Distribute(c.Context(), payload.AssignmentID, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrDistributionBusy):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrNoActiveGraders):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		default:
			h.logger.Error().Err(err).Uint("assignment_id", payload.AssignmentID).Msg("distribution failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "distribution failed")
		}
	}

	return utils.SendSuccess(c, "submissions distributed", response)
}
