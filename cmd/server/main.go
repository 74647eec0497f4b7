package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/database"
	"task-tracker/backend/internal/middleware"
	"task-tracker/backend/internal/monitoring"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/router"
	"task-tracker/backend/internal/services"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	pool, err := database.NewDatabasePool(database.PoolConfigFrom(cfg, logger))
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(pool.DB); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	monitor := monitoring.NewMonitor()
	monitor.RegisterHealthCheck("database", pool.Health)
	monitor.RegisterStats("database", pool.Stats)

	users := repositories.NewUserRepository(pool.DB)
	tokens := repositories.NewTokenRepository(pool.DB)
	hasher := services.NewPasswordHasher(cfg.Auth.BCryptCost)
	jwt := services.NewTokenManager(services.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})

	var taskService services.TaskService = services.NewTaskService(
		repositories.NewTaskRepository(pool.DB),
		services.WithPageSize(cfg.Pagination.PageSize),
	)

	var taskCache *cache.MultiLevelCache
	if cfg.Redis.Enabled {
		redisCache := cache.NewRedisCache(cache.CacheConfigFrom(cfg))
		taskCache = cache.NewMultiLevelCache(
			cache.NewMemoryCache(0),
			redisCache,
			cache.WithCircuitBreaker(cache.NewCircuitBreaker(cache.DefaultCircuitBreakerConfig())),
			cache.WithSharedKeys(services.TaskCachePrefixes...),
		)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
		if err := redisCache.Health(ctx); err != nil {
			logger.Warn("redis unreachable at startup, serving from the database", "addr", cfg.GetRedisAddr(), "error", err)
		}
		cancel()

		taskService = services.NewCachedTaskService(taskService, taskCache, logger)
		monitor.RegisterHealthCheck("cache", taskCache.Health)
		monitor.RegisterStats("cache", taskCache.Stats)
		logger.Info("task cache enabled", "addr", cfg.GetRedisAddr())
	}

	var limiter *middleware.RateLimiter
	runCtx, stopRun := context.WithCancel(context.Background())
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit)
		go limiter.Run(runCtx)
	}

	engine := router.New(router.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Auth:        services.NewAuthService(users, tokens, jwt, hasher, logger),
		Accounts:    services.NewAccountService(users, hasher),
		Tasks:       taskService,
		Monitor:     monitor,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", srv.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	operations := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			stopRun()
			return srv.Shutdown(ctx)
		},
		"database": func(ctx context.Context) error {
			// Let in-flight requests finish with the pool still open.
			waitForDrain(ctx, monitor)
			return pool.Close()
		},
	}
	if taskCache != nil {
		operations["cache"] = func(ctx context.Context) error {
			waitForDrain(ctx, monitor)
			return taskCache.Close()
		}
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.Server.ShutdownTimeout, operations)
	exitCode := <-wait
	logger.Info("server stopped", "exit_code", exitCode)
	os.Exit(exitCode)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// waitForDrain blocks until no request is being served or ctx ends.
func waitForDrain(ctx context.Context, monitor *monitoring.Monitor) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for monitor.Snapshot().ActiveRequests > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
