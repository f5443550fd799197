package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lunaos-ai/OpenHands/internal/api"
	"github.com/lunaos-ai/OpenHands/internal/capabilities"
	"github.com/lunaos-ai/OpenHands/internal/config"
	"github.com/lunaos-ai/OpenHands/internal/logging"
	"github.com/lunaos-ai/OpenHands/internal/middleware"
	"github.com/lunaos-ai/OpenHands/internal/tasks"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	credentials := buildCredentials(cfg.LLM)
	logCredentialStatus(logger, credentials)

	pool := tasks.NewPool(cfg.LLM.Workers)
	executor := tasks.NewExecutor(
		buildResolver(cfg.LLM, credentials),
		buildRegistry(cfg.LLM, logger),
		tasks.Options{
			Timeout:      cfg.LLM.Timeout,
			QueueTimeout: cfg.LLM.QueueTimeout,
			Pool:         pool,
			Logger:       logger,
		},
	)

	runner, closeJobs, err := buildJobRunner(cfg, executor, logger)
	if err != nil {
		return err
	}
	defer closeJobs()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(logger))
	router.Use(cors.New(corsConfig(cfg.Server.AllowOrigins)))

	deps := api.Dependencies{
		Executor:           executor,
		Capabilities:       capabilities.NewService(executor, cfg.Server.Version),
		APIKey:             cfg.Server.APIKey,
		RateLimitPerMinute: cfg.RateLimit.RequestsPerMinute,
		RateLimitBurst:     cfg.RateLimit.Burst,
		Logger:             logger,
	}
	if runner != nil {
		deps.Jobs = runner
	}
	api.RegisterRoutes(router, deps)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("version", cfg.Server.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if runner != nil {
		if err := runner.Shutdown(shutdownCtx); err != nil {
			logger.Warn("jobs still running at shutdown", zap.Error(err))
		}
	}
	if err := pool.Close(shutdownCtx); err != nil {
		logger.Warn("provider calls still in flight at shutdown", zap.Error(err))
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Api-Key",
			middleware.RequestIDHeader,
		},
		ExposeHeaders: []string{middleware.RequestIDHeader},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
