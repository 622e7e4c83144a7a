package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/cache"
	"github.com/SAP-F-2025/answer-sheet-service/internal/config"
	"github.com/SAP-F-2025/answer-sheet-service/internal/handlers"
	"github.com/SAP-F-2025/answer-sheet-service/internal/metrics"
	"github.com/SAP-F-2025/answer-sheet-service/internal/render"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/SAP-F-2025/answer-sheet-service/internal/storage"
	"github.com/SAP-F-2025/answer-sheet-service/internal/utils"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
	"github.com/SAP-F-2025/answer-sheet-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := postgres.AutoMigrate(db); err != nil {
		return err
	}

	var cacheService cache.CacheService
	redisClient, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		if cfg.IsProduction() {
			return err
		}
		logger.Warn("Redis unavailable, using in-process cache", "error", err)
		cacheService = cache.NewMemoryCache()
	} else {
		defer redisClient.Close()
		cacheService = cache.NewRedisCache(redisClient, logger)
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	store, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	m := metrics.New()
	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      postgres.NewRepository(db),
		Cache:     cacheService,
		Publisher: publisher,
		Storage:   store,
		Logger:    logger,
		Validator: validator.New(),
		Metrics:   m,
		Config:    cfg,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := utils.NewSlogLogger(logger)
	router := gin.New()
	router.HTMLRender = render.NewHTMLRenderer()
	router.Use(gin.Recovery(), utils.LoggerMiddleware(appLogger), utils.ContextLogger(appLogger), m.Middleware())

	opts := handlers.RouterOptions{
		Metrics:        m,
		RateLimit:      cfg.RateLimit,
		MaxImportBytes: int64(cfg.Upload.MaxBytes),
	}
	if cfg.Storage.Type == "" || cfg.Storage.Type == "local" {
		if strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
			opts.LocalUploadsDir = cfg.Storage.LocalPath
			opts.LocalUploadsURL = cfg.Storage.PublicBaseURL
		}
	}
	handlers.NewHandlerManager(serviceManager, appLogger, opts).SetupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	if cfg.LogFile != "" {
		logger, closer, err := utils.NewFileLogger(utils.LogFileOptions{Path: cfg.LogFile, Level: cfg.LogLevel})
		if err == nil {
			return logger, closer
		}
		slog.Warn("Failed to open log file, logging to stdout only", "path", cfg.LogFile, "error", err)
	}

	opts := &slog.HandlerOptions{Level: utils.ParseLevel(cfg.LogLevel)}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nopCloser{}
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nopCloser{}
}
