package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kkian481718/CEGAS/internal/service"
	"github.com/kkian481718/CEGAS/internal/utils"
)

const defaultActivityLimit = 50

// DashboardHandler wires the aggregated overview and activity feed endpoints.
type DashboardHandler struct {
	dashboard service.DashboardService
	activity  service.ActivityService
	logger    zerolog.Logger
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard service.DashboardService, activity service.ActivityService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		activity:  activity,
		logger:    logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register attaches dashboard endpoints to the router group.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/", h.overview)
	router.Get("/activity", h.recentActivity)
	router.Delete("/cache", h.invalidate)
}

func (h *DashboardHandler) invalidate(c *fiber.Ctx) error {
	h.dashboard.Invalidate(c.Context())
	return utils.SendSuccess(c, "dashboard cache invalidated", nil)
}

func (h *DashboardHandler) overview(c *fiber.Ctx) error {
	overview, err := h.dashboard.Overview(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build dashboard overview")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build dashboard overview")
	}

	return utils.SendSuccess(c, "dashboard retrieved", overview)
}

func (h *DashboardHandler) recentActivity(c *fiber.Ctx) error {
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	entries, err := h.activity.ListRecent(c.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list recent activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list recent activity")
	}

	return utils.SendSuccess(c, "activity retrieved", entries)
}
