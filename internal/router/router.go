package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kkian481718/CEGAS/internal/config"
	"github.com/kkian481718/CEGAS/internal/handler"
	"github.com/kkian481718/CEGAS/internal/middleware"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler *handler.AssignmentHandler
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	PipelineHandler   *handler.PipelineHandler
	UserHandler       *handler.UserHandler
	DashboardHandler  *handler.DashboardHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	public := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	public.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := public.Group("/", jwtMiddleware)

	adminOnly := middleware.RequireRole(models.RoleAdmin)

	if deps.AssignmentHandler != nil {
		assignments := api.Group("/assignments")
		assignments.Post("/", adminOnly)
		assignments.Patch("/:id", adminOnly)
		assignments.Delete("/:id", adminOnly)
		deps.AssignmentHandler.Register(assignments)
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions")
		submissions.Post("/upload", adminOnly, middleware.RateLimit("submission_upload", 30, time.Minute))
		submissions.Post("/upload/bulk", adminOnly)
		deps.SubmissionHandler.Register(submissions)

		if deps.GradingHandler != nil {
			deps.GradingHandler.Register(submissions)
		}
	}

	if deps.PipelineHandler != nil {
		pipeline := api.Group("/pipeline")
		deps.PipelineHandler.Register(pipeline)
	}

	if deps.UserHandler != nil {
		users := api.Group("/users", adminOnly)
		deps.UserHandler.Register(users)
	}

	if deps.DashboardHandler != nil {
		dashboard := api.Group("/dashboard")
		deps.DashboardHandler.Register(dashboard)
	}
}
