package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/auth"
	"github.com/astrodarshan/astro-engine/pkg/config"
	"github.com/astrodarshan/astro-engine/pkg/database"
	"github.com/astrodarshan/astro-engine/pkg/ephemeris"
	"github.com/astrodarshan/astro-engine/pkg/geocode"
	"github.com/astrodarshan/astro-engine/pkg/handlers"
	"github.com/astrodarshan/astro-engine/pkg/llm"
	"github.com/astrodarshan/astro-engine/pkg/logging"
	"github.com/astrodarshan/astro-engine/pkg/middleware"
	"github.com/astrodarshan/astro-engine/pkg/repositories"
	"github.com/astrodarshan/astro-engine/pkg/retry"
	"github.com/astrodarshan/astro-engine/pkg/services"
	"github.com/astrodarshan/astro-engine/pkg/sms"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("guardrail_model", cfg.GuardrailLLM().Model),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &cfg.Database)
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*redis.Client, error) {
		return database.NewRedisClient(ctx, &cfg.Redis)
	})
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()
	cache := database.NewRedisCache(redisClient)

	generator, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create generation client", zap.Error(err))
	}
	classifier, err := llm.NewClient(cfg.GuardrailLLM(), logger)
	if err != nil {
		logger.Fatal("Failed to create guardrail client", zap.Error(err))
	}

	geocoder, err := geocode.NewMapsGeocoder(cfg.Maps.APIKey)
	if err != nil {
		logger.Fatal("Failed to create geocoder", zap.Error(err))
	}

	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	profileRepo := repositories.NewProfileRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)

	tokens := auth.NewTokenService(&cfg.Auth)
	authn := auth.NewMiddleware(tokens, logger)

	smsSender := sms.NewGatewayClient(&cfg.SMS, logger)
	ephemerisClient := ephemeris.NewHTTPClient(&cfg.Ephemeris, logger)

	factService := services.NewFactService(cache, ephemerisClient, profileRepo, cfg.Pipeline.FactsTTL, logger)
	safetyEvaluator := services.NewSafetyEvaluator(classifier, logger)
	transcripts := services.NewTranscriptStore(conversationRepo, cache, cfg.Pipeline.TranscriptTTL, logger)
	authService := services.NewAuthService(userRepo, otpRepo, smsSender, tokens, cfg.Auth, logger)
	profileService := services.NewProfileService(profileRepo, factService, geocoder, logger)
	consultationService := services.NewConsultationService(
		conversationRepo, profileRepo, factService, safetyEvaluator,
		transcripts, generator, cfg.Pipeline, logger,
	)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(authService, logger).RegisterRoutes(mux)
	handlers.NewProfileHandler(profileService, authn, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(consultationService, authn, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting astro-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", zap.Error(err))
	}
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
