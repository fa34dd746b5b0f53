package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/service"
	"github.com/kkian481718/CEGAS/internal/utils"
)

// GradingHandler wires grading, summary and reopen endpoints.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Put("/:id/grades/:question", h.grade)
	router.Get("/:id/grades", h.summary)
	router.Get("/:id/grades/archive", h.archive)
	router.Post("/:id/reopen", h.reopen)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	question, err := c.ParamsInt("question")
	if err != nil || question < 1 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question number")
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.QuestionNumber = question

	grade, err := h.service.Grade(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrNotReadyForGrading):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrSubmissionLocked):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrQuestionOutOfRange),
			errors.Is(err, service.ErrScoreOutOfRange),
			errors.Is(err, service.ErrInvalidAnnotations),
			isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to record grade")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to record grade")
		}
	}

	return utils.SendSuccess(c, "grade recorded", grade)
}

func (h *GradingHandler) summary(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	summary, err := h.service.Summary(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to load grade summary")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load grade summary")
	}

	return utils.SendSuccess(c, "grade summary retrieved", summary)
}

func (h *GradingHandler) archive(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	archive, err := h.service.ListArchive(c.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to load grade archive")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load grade archive")
	}

	return utils.SendSuccess(c, "grade archive retrieved", archive)
}

func (h *GradingHandler) reopen(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.ReopenRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.Reopen(c.Context(), id, payload, activityActorFromContext(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrConfirmRequired):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to reopen submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to reopen submission")
		}
	}

	return utils.SendSuccess(c, "submission reopened", nil)
}
