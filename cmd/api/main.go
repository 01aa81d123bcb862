package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/internal/config"
	"github.com/noah-isme/quizzy-go-api/internal/database"
	"github.com/noah-isme/quizzy-go-api/internal/handler"
	"github.com/noah-isme/quizzy-go-api/internal/logger"
	"github.com/noah-isme/quizzy-go-api/internal/middleware"
	"github.com/noah-isme/quizzy-go-api/internal/models"
	"github.com/noah-isme/quizzy-go-api/internal/observability"
	"github.com/noah-isme/quizzy-go-api/internal/repository"
	"github.com/noah-isme/quizzy-go-api/internal/router"
	"github.com/noah-isme/quizzy-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logger.New("info", "json")
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", cfg.AppName).Logger()

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("invalid server configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(&models.Account{}, &models.DashboardDocument{}); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New(validator.WithRequiredStructEnabled())

	accountRepo := repository.NewAccountRepository(db)
	documentRepo := repository.NewDashboardDocumentRepository(db)

	broker := service.NewSessionBroker(natsConn, log)
	broker.Start(ctx)

	identityService := service.NewIdentityService(accountRepo, redisClient, broker, validate, service.IdentityOptions{
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
	}, log)
	documentService := service.NewDashboardDocumentService(documentRepo, redisClient, cfg.DashboardCacheTTL, log)

	if err := importSeed(ctx, documentService, cfg); err != nil {
		log.Fatal().Err(err).Str("file", cfg.DashboardSeedFile).Msg("failed to import dashboard seed")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &log})
	router.Register(app, cfg, router.Dependencies{
		IdentityHandler:          handler.NewIdentityHandler(identityService, broker, log),
		DashboardDocumentHandler: handler.NewDashboardDocumentHandler(documentService, log),
		IDTokenMiddleware:        middleware.IDTokenProtected(identityService),
		SignInLimiter:            middleware.RateLimit("sign-in", cfg.SignInRateLimit, time.Minute),
		HealthChecks: map[string]handler.DependencyCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, log)
}

func importSeed(ctx context.Context, documents service.DashboardDocumentService, cfg config.Config) error {
	if cfg.DashboardSeedFile == "" {
		return nil
	}

	payload, err := os.ReadFile(cfg.DashboardSeedFile)
	if err != nil {
		return err
	}

	_, err = documents.Import(ctx, cfg.DashboardDocument, cfg.DashboardToken, payload)
	return err
}

func waitForShutdown(ctx context.Context, app *fiber.App, log zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("server stopped")
}
