package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/flash"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/monitoring"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("session_store", cfg.SessionStore).
		Str("credential_source", cfg.CredentialSource).
		Dur("exam_duration", cfg.ExamDuration).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	monitoring.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL (optional) ──────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Info().Msg("DATABASE_URL not set, results are not persisted")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	default:
		defer pool.Close()
	}

	// ─── Connect to Redis (required by the redis session store) ────────
	var rdb *redis.Client
	if cfg.SessionStore == config.SessionStoreRedis {
		rdb, err = database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	bank, err := repository.LoadQuestionBank(cfg.QuestionBankFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load question bank")
	}
	log.Info().Int("questions", bank.Len()).Msg("Question bank loaded")

	var sessionStore repository.SessionStore
	if rdb != nil {
		sessionStore = repository.NewRedisSessionStore(rdb)
	} else {
		sessionStore = repository.NewMemorySessionStore()
	}

	var credentials service.CredentialVerifier
	switch cfg.CredentialSource {
	case config.CredentialSourcePostgres:
		if pool == nil {
			log.Fatal().Msg("CREDENTIAL_SOURCE=postgres requires DATABASE_URL")
		}
		credentials = service.NewDatabaseCredentials(repository.NewUserRepository(pool))
	default:
		credentials = service.NewStaticCredentials(cfg.StaticUsers)
	}

	// ─── Initialize Services ──────────────────────────────────────────
	policy := exam.Policy{
		Duration:    cfg.ExamDuration,
		SubmitGrace: cfg.SubmitGrace,
		AutoSubmit:  cfg.AutoSubmitOnExpiry,
	}

	var opts []service.Option
	var resultWorker *worker.ResultWorker
	if pool != nil {
		resultRepo := repository.NewExamResultRepository(pool)
		if rdb != nil {
			opts = append(opts, service.WithResultPublisher(worker.NewResultQueue(rdb)))
			resultWorker = worker.NewResultWorker(resultRepo, rdb, log)
		} else {
			opts = append(opts, service.WithResultPublisher(worker.NewInlinePublisher(resultRepo)))
		}
	}

	authService := service.NewAuthService(cfg, credentials)
	sessionService := service.NewExamSessionService(sessionStore, bank, policy, cfg.SessionTTL, log, opts...)

	// ─── Initialize Handlers ──────────────────────────────────────────
	flashStore := flash.NewStore(cfg.FlashSecret, cfg.CookieSecure)
	cookie := middleware.SessionCookie{
		Name:   cfg.SessionCookieName,
		Secure: cfg.CookieSecure,
		MaxAge: int(cfg.SessionTTL.Seconds()),
	}

	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService, sessionService, flashStore, cookie, log),
		Portal: handler.NewExamPortalHandler(sessionService, flashStore, log),
		WS:     handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(rdb, pool, log),
	}

	stop := make(chan struct{})
	mw := &router.Middlewares{
		LoadSession: middleware.LoadSession(authService, sessionService, cookie, log),
	}
	if cfg.LoginRateLimit > 0 {
		mw.LoginLimiter = middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
		go mw.LoginLimiter.Run(stop)
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if resultWorker != nil {
		go func() {
			resultWorker.Start(workerCtx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r, err := router.SetupRouter(cfg, handlers, mw, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up router")
	}

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(stop)

	// 2. Stop the result worker and wait for its final flush.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Result worker did not finish flushing in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
