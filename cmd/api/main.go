package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-contest-api/internal/config"
	"github.com/noah-isme/gema-contest-api/internal/database"
	"github.com/noah-isme/gema-contest-api/internal/handler"
	"github.com/noah-isme/gema-contest-api/internal/locker"
	"github.com/noah-isme/gema-contest-api/internal/middleware"
	"github.com/noah-isme/gema-contest-api/internal/repository"
	"github.com/noah-isme/gema-contest-api/internal/router"
	"github.com/noah-isme/gema-contest-api/internal/scoring"
	"github.com/noah-isme/gema-contest-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "contest-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "production" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	policy, err := scoring.PolicyByName(cfg.ScoringPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring policy")
	}

	var gradingLocker locker.Locker = locker.NewKeyedMutex()
	if cfg.LockBackend == config.LockBackendRedis {
		gradingLocker = locker.NewRedisLocker(redisClient, cfg.EventsChannel+":lock:", cfg.LockTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New(validator.WithRequiredStructEnabled())

	teamRepo := repository.NewTeamRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradingRepo := repository.NewGradingRepository(db)

	eventService := service.NewEventService(redisClient, cfg.EventsChannel, natsConn, logger)
	eventService.Start(ctx)

	competitionService := service.NewCompetitionService(cfg.RoundDurations, eventService, logger)
	go competitionService.Run(ctx, time.Second)

	teamService := service.NewTeamService(teamRepo, redisClient, cfg.LeaderboardCacheTTL, validate, logger)
	problemService := service.NewProblemService(problemRepo, validate, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions:    submissionRepo,
		Teams:          teamRepo,
		Problems:       problemRepo,
		Rounds:         competitionService,
		Events:         eventService,
		MaxSourceBytes: cfg.UploadMaxBytes,
	}, validate, logger)
	gradingService := service.NewGradingService(service.GradingDependencies{
		Submissions: submissionRepo,
		Grades:      gradingRepo,
		Engine:      scoring.NewEngine(problemRepo, submissionRepo, policy),
		Locker:      gradingLocker,
		LockWait:    cfg.LockWait,
		Events:      eventService,
		Leaderboard: teamService,
	}, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    cfg.UploadMaxBytes + 64*1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		TeamHandler:        handler.NewTeamHandler(teamService, logger),
		ProblemHandler:     handler.NewProblemHandler(problemService, logger),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService, int64(cfg.UploadMaxBytes), logger),
		GradingHandler:     handler.NewGradingHandler(gradingService, submissionService, logger),
		CompetitionHandler: handler.NewCompetitionHandler(competitionService, validate, logger, cfg.SSEKeepAlive),
		EventHandler:       handler.NewEventHandler(eventService, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("policy", policy.Name()).Str("lock", cfg.LockBackend).Msg("contest api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
