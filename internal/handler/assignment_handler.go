package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/repository"
	"github.com/kkian481718/CEGAS/internal/service"
	"github.com/kkian481718/CEGAS/internal/utils"
)

// AssignmentHandler wires assignment management endpoints.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.archive)
	router.Get("/:id/progress", h.progress)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	var filter repository.AssignmentFilter
	if semester := strings.TrimSpace(c.Query("semester")); semester != "" {
		filter.Semester = &semester
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = &status
	}

	assignments, err := h.service.List(c.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list assignments")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list assignments")
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.Create(c.Context(), payload, activityActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to create assignment")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create assignment")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	assignment, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		h.logger.Error().Err(err).Uint("assignment_id", id).Msg("failed to load assignment")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load assignment")
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.AssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.Update(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		case errors.Is(err, service.ErrAssignmentArchived):
			return utils.SendError(c, fiber.StatusConflict, "assignment is archived")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Uint("assignment_id", id).Msg("failed to update assignment")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update assignment")
		}
	}

	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) archive(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.service.Archive(c.Context(), id, activityActorFromContext(c)); err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		h.logger.Error().Err(err).Uint("assignment_id", id).Msg("failed to archive assignment")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to archive assignment")
	}

	return utils.SendSuccess(c, "assignment archived", nil)
}

func (h *AssignmentHandler) progress(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	progress, err := h.service.Progress(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		h.logger.Error().Err(err).Uint("assignment_id", id).Msg("failed to load assignment progress")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load assignment progress")
	}

	return utils.SendSuccess(c, "assignment progress retrieved", progress)
}
