// notebookcore server - reactive notebook execution core.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nbcore/notebookcore/internal/application/auth"
	"github.com/nbcore/notebookcore/internal/application/observer"
	"github.com/nbcore/notebookcore/internal/config"
	"github.com/nbcore/notebookcore/internal/coordinator"
	"github.com/nbcore/notebookcore/internal/infrastructure/api/rest"
	"github.com/nbcore/notebookcore/internal/infrastructure/cache"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
	"github.com/nbcore/notebookcore/internal/infrastructure/storage"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// defaultMaxBodySize bounds request bodies the way the teacher's
// LimitBodySize middleware expects a concrete byte ceiling; mutation
// payloads here are cell source code, not file uploads, so 2MiB is
// generous headroom rather than a measured limit.
const defaultMaxBodySize = 2 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("starting notebookcore server",
		"version", "0.1.0",
		"port", cfg.Server.Port,
	)

	dbConfig := &storage.Config{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MinConnections,
		ConnMaxLifetime: cfg.Database.MaxConnLifetime,
		ConnMaxIdleTime: cfg.Database.MaxIdleTime,
		Debug:           cfg.Logging.Level == "debug",
	}

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		appLogger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("failed to close database", "error", err)
		}
	}()

	notebookRepo := storage.NewNotebookRepository(db)
	cellRepo := storage.NewCellRepository(db)
	userRepo := storage.NewUserRepository(db)

	jwtService := auth.NewJWTService(cfg.Auth)
	passwordService := auth.NewPasswordService(cfg.Auth.MinPasswordLength)
	authService := auth.NewService(userRepo, passwordService, jwtService, cfg.Auth.AllowRegistration)

	obsManager := buildObserverManager(cfg, db, appLogger)

	registry := coordinator.NewRegistry(notebookRepo, cellRepo, cfg.Kernel.BinaryPath, appLogger, obsManager)
	defer registry.ShutdownAll()

	var redisClient redis.UniversalClient
	if cfg.Auth.EnableRateLimit {
		redisCache, err := cache.NewRedisCache(cfg.Redis)
		if err != nil {
			appLogger.Warn("redis unavailable, falling back to in-process rate limiting", "error", err)
		} else {
			defer redisCache.Close()
			redisClient = redisCache.Client()
		}
	}

	router := rest.NewRouter(rest.Deps{
		Config: rest.ServerConfig{
			Debug:              cfg.Logging.Level == "debug",
			MaxBodySize:        defaultMaxBodySize,
			CORS:               cfg.Server.CORS,
			CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		},
		Logger:           appLogger,
		Registry:         registry,
		Auth:             authService,
		JWT:              jwtService,
		Redis:            redisClient,
		EnableRateLimit:  cfg.Auth.EnableRateLimit,
		APIRateLimit:     120,
		APIRateWindow:    time.Minute,
		LoginMaxAttempts: cfg.Auth.MaxLoginAttempts,
		LoginWindow:      cfg.Auth.LockoutDuration,
		LoginLockout:     cfg.Auth.LockoutDuration,
	})

	appLogger.Info("REST API routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("http server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			appLogger.Error("server error", "error", err)
			os.Exit(1)
		}

	case sig := <-shutdown:
		appLogger.Info("server shutdown initiated", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		appLogger.Info("stopping kernel processes...")
		registry.ShutdownAll()

		if err := server.Shutdown(ctx); err != nil {
			appLogger.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				appLogger.Error("server close failed", "error", err)
			}
		}

		appLogger.Info("server stopped")
	}
}

// buildObserverManager wires the audit sinks ObserverConfig enables.
// The WebSocket sink has no entry here: coordinator.Broadcaster already
// fans events to live subscribers independent of this manager.
func buildObserverManager(cfg *config.Config, db *bun.DB, log *logger.Logger) *observer.ObserverManager {
	mgr := observer.NewObserverManager(
		observer.WithLogger(log),
		observer.WithBufferSize(cfg.Observer.BufferSize),
	)

	if cfg.Observer.EnableLogger {
		if err := mgr.Register(observer.NewLoggerObserver(observer.WithLoggerInstance(log))); err != nil {
			log.Error("failed to register logger observer", "error", err)
		}
	}

	if cfg.Observer.EnableDatabase {
		eventRepo := storage.NewEventRepository(db)
		if err := mgr.Register(observer.NewDatabaseObserver(eventRepo)); err != nil {
			log.Error("failed to register database observer", "error", err)
		}
	}

	if cfg.Observer.EnableHTTP && cfg.Observer.HTTPCallbackURL != "" {
		httpObs := observer.NewHTTPCallbackObserver(cfg.Observer.HTTPCallbackURL,
			observer.WithHTTPMethod(cfg.Observer.HTTPMethod),
			observer.WithHTTPHeaders(cfg.Observer.HTTPHeaders),
			observer.WithHTTPTimeout(cfg.Observer.HTTPTimeout),
			observer.WithHTTPRetry(cfg.Observer.HTTPMaxRetries, cfg.Observer.HTTPRetryDelay, 2.0),
		)
		if err := mgr.Register(httpObs); err != nil {
			log.Error("failed to register http observer", "error", err)
		}
	}

	return mgr
}
