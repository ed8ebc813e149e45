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

	"github.com/noah-isme/learnflow-api/internal/config"
	"github.com/noah-isme/learnflow-api/internal/database"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/handler"
	"github.com/noah-isme/learnflow-api/internal/middleware"
	"github.com/noah-isme/learnflow-api/internal/repository"
	"github.com/noah-isme/learnflow-api/internal/router"
	"github.com/noah-isme/learnflow-api/internal/service"
	"github.com/noah-isme/learnflow-api/pkg/ai"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		logger = logger.Level(level)
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStartup()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(startupCtx, cfg.RedisURL)
		if err != nil {
			// Analytics still works uncached.
			logger.Warn().Err(err).Msg("redis unavailable; analytics cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	notifier := events.NewNotifier(eventTransport(cfg, redisClient), events.Options{
		BufferSize:     cfg.EventBufferSize,
		PublishTimeout: cfg.EventPublishTimeout,
	}, logger)
	notifier.Start(startupCtx)

	evaluator, responder := aiClients(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	txManager := repository.NewTxManager(db)
	studentRepo := repository.NewStudentRepository(db)
	contentRepo := repository.NewContentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	chatRepo := repository.NewChatRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	analyticsService := service.NewAnalyticsService(analyticsRepo, contentRepo, studentRepo, redisClient, cfg.AnalyticsCacheTTL, logger)
	progressService := service.NewProgressService(progressRepo, txManager, notifier, analyticsService, validate, cfg.MasteryThreshold, logger)
	submissionService := service.NewSubmissionService(submissionRepo, contentRepo, studentRepo, progressService, txManager, notifier, analyticsService, activityService, evaluator, validate, logger)
	quizService := service.NewQuizService(quizRepo, contentRepo, studentRepo, txManager, notifier, validate, logger, service.QuizServiceConfig{
		SingleOpenAttempt: cfg.SingleOpenQuizAttempt,
	})
	chatService := service.NewChatService(chatRepo, studentRepo, responder, notifier, validate, logger)
	seedService := service.NewSeedService(studentRepo, contentRepo, txManager, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, validate, logger),
		ProgressHandler:   handler.NewProgressHandler(progressService, validate, logger),
		QuizHandler:       handler.NewQuizHandler(quizService, validate, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, validate, logger),
		ChatHandler:       handler.NewChatHandler(chatService, validate, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, validate, logger),
		SeedHandler:       handler.NewSeedHandler(seedService, logger),
		EventHealth:       notifier.Health,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, notifier, logger)
}

// eventTransport selects the broker transport. A nil result leaves the notifier unconfigured.
func eventTransport(cfg config.Config, redisClient *redis.Client) events.Transport {
	if !cfg.EventsEnabled() {
		return nil
	}

	switch cfg.EventTransport {
	case config.EventTransportNATS:
		return events.NewNATSTransport(func(ctx context.Context) (*nats.Conn, error) {
			return database.ConnectNATS(ctx, cfg.EventURL, cfg.AppName)
		}, cfg.EventSubjectPrefix)
	case config.EventTransportRedis:
		if redisClient != nil && cfg.EventURL == cfg.RedisURL {
			return events.NewRedisTransportWithClient(redisClient, cfg.EventSubjectPrefix)
		}
		return events.NewRedisTransport(func(ctx context.Context) (*redis.Client, error) {
			return database.ConnectRedis(ctx, cfg.EventURL)
		}, cfg.EventSubjectPrefix)
	default:
		return nil
	}
}

// aiClients builds the grading evaluator and chat responder. Only OpenAI-compatible
// endpoints are supported; ai.base_url points them at other vendors. Without a usable
// client automatic evaluation is disabled and chat uses canned replies.
func aiClients(cfg config.Config, logger zerolog.Logger) (ai.Evaluator, ai.Responder) {
	var (
		evaluator ai.Evaluator
		primary   ai.Responder
	)

	switch {
	case cfg.AIAPIKey == "":
		logger.Info().Msg("no ai api key configured; automatic evaluation disabled")
	case cfg.AIProvider != "openai":
		logger.Warn().Str("provider", cfg.AIProvider).Msg("unsupported ai provider; automatic evaluation disabled")
	default:
		openaiCfg := ai.OpenAIConfig{
			APIKey:  cfg.AIAPIKey,
			BaseURL: cfg.AIBaseURL,
			Model:   cfg.AIModel,
			Logger:  logger,
		}

		if e, err := ai.NewOpenAIEvaluator(openaiCfg); err != nil {
			logger.Warn().Err(err).Msg("ai evaluator disabled")
		} else {
			evaluator = e
		}

		if r, err := ai.NewOpenAIResponder(openaiCfg); err != nil {
			logger.Warn().Err(err).Msg("ai responder disabled")
		} else {
			primary = r
		}
	}

	return evaluator, ai.NewFallbackResponder(primary, ai.NewCannedResponder(), logger)
}

func waitForShutdown(app *fiber.App, notifier *events.Notifier, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := notifier.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("event notifier did not drain before shutdown")
	}

	logger.Info().Msg("server stopped")
}
