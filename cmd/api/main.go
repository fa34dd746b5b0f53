package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kkian481718/CEGAS/internal/config"
	"github.com/kkian481718/CEGAS/internal/database"
	"github.com/kkian481718/CEGAS/internal/handler"
	"github.com/kkian481718/CEGAS/internal/middleware"
	"github.com/kkian481718/CEGAS/internal/observability"
	"github.com/kkian481718/CEGAS/internal/repository"
	"github.com/kkian481718/CEGAS/internal/router"
	"github.com/kkian481718/CEGAS/internal/service"
	"github.com/kkian481718/CEGAS/pkg/cppcheck"
	dockerexec "github.com/kkian481718/CEGAS/pkg/docker"
	"github.com/kkian481718/CEGAS/pkg/extractor"
	"github.com/kkian481718/CEGAS/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional. Without redis the dashboard cache and
	// distribution lock degrade to direct queries; without NATS lifecycle
	// events are dropped.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, caching and locking disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not configured, lifecycle events disabled")
	}

	store, err := storage.New(storage.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create document store: %v", err)
	}

	executor, err := dockerexec.NewContainerExecutor(dockerexec.Config{
		Host:          cfg.DockerHost,
		MemoryLimitMB: int64(cfg.ToolMemoryMB),
		CPUShares:     int64(cfg.ToolCPUShares),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to create container executor: %v", err)
	}

	documentExtractor := extractor.NewDockerExtractor(executor, extractor.Config{
		Image:   cfg.ExtractorImage,
		Timeout: cfg.ExtractorTimeout,
	}, logger)
	analyzer := cppcheck.NewDockerRunner(executor, cppcheck.Config{
		Image:   cfg.CppcheckImage,
		Timeout: cfg.CppcheckTimeout,
	}, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	snippetRepo := repository.NewSnippetRepository(db)
	analysisRepo := repository.NewAnalysisResultRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	events := service.NewEventPublisher(natsConn, logger)
	activityService := service.NewActivityService(activityRepo, logger)

	assignmentService := service.NewAssignmentService(assignmentRepo, validate, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, store, activityService, logger)
	extractionService := service.NewExtractionService(submissionRepo, assignmentRepo, snippetRepo, store, documentExtractor, events, logger)
	analysisService := service.NewAnalysisService(submissionRepo, snippetRepo, analysisRepo, analyzer, events, logger)
	pipelineService := service.NewPipelineService(extractionService, analysisService, cfg.PipelineWorkers, logger)
	distributionService := service.NewDistributionService(submissionRepo, profileRepo, redisClient, activityService, logger)
	gradingService, err := service.NewGradingService(submissionRepo, assignmentRepo, gradeRepo, validate, events, activityService, logger)
	if err != nil {
		log.Fatalf("failed to create grading service: %v", err)
	}
	userService := service.NewUserService(profileRepo, submissionRepo, validate, activityService, logger)
	dashboardService := service.NewDashboardService(assignmentRepo, profileRepo, submissionRepo, redisClient, logger)

	deps := router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, distributionService, pipelineService, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, logger),
		PipelineHandler:   handler.NewPipelineHandler(pipelineService, distributionService, validate, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		DashboardHandler:  handler.NewDashboardHandler(dashboardService, activityService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    32 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
