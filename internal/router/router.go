package router

import (
	"log/slog"
	"net/http"
	"strings"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/handlers"
	"task-tracker/backend/internal/middleware"
	"task-tracker/backend/internal/monitoring"
	"task-tracker/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Auth     services.AuthService
	Accounts services.AccountService
	Tasks    services.TaskService
	Monitor  *monitoring.Monitor

	// RateLimiter is optional. Requests are not throttled without one.
	RateLimiter *middleware.RateLimiter
}

func New(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	monitor := deps.Monitor
	if monitor == nil {
		monitor = monitoring.NewMonitor()
	}

	r := gin.New()
	// Both slash forms are registered explicitly by handle.
	r.RedirectTrailingSlash = false

	r.Use(middleware.RecoveryWithLog(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(corsConfig(deps.Config.CORS)))
	r.Use(monitor.Middleware())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
	})

	api := r.Group("/api")

	health := api.Group("/health")
	handle(health, http.MethodGet, "", monitor.HealthHandler())
	handle(health, http.MethodGet, "/ready", monitor.ReadinessHandler())
	handle(health, http.MethodGet, "/live", monitor.LivenessHandler())
	handle(api, http.MethodGet, "/metrics", monitor.MetricsHandler())

	limited := api.Group("")
	if deps.RateLimiter != nil {
		limited.Use(deps.RateLimiter.Middleware())
	}

	authHandler := handlers.NewAuthHandler(deps.Auth, logger)
	refreshHandler := handlers.NewRefreshHandler(deps.Auth, logger)
	logoutHandler := handlers.NewLogoutHandler(deps.Auth, logger)
	registerHandler := handlers.NewRegisterHandler(deps.Accounts, logger)
	userHandler := handlers.NewUserHandler(deps.Accounts, logger)
	taskHandler := handlers.NewTaskHandler(deps.Tasks, logger)

	requireAuth := middleware.AuthMiddleware(deps.Auth)

	auth := limited.Group("/auth")
	handle(auth, http.MethodPost, "/register", registerHandler.Registration)
	handle(auth, http.MethodPost, "/login", authHandler.Token)
	handle(auth, http.MethodPost, "/refresh", refreshHandler.Refresh)
	handle(auth, http.MethodPost, "/logout", logoutHandler.Logout)

	account := auth.Group("", requireAuth)
	handle(account, http.MethodGet, "/me", userHandler.GetUserProfile)
	handle(account, http.MethodPut, "/profile/update", userHandler.UpdateUserProfile)
	handle(account, http.MethodPatch, "/profile/update", userHandler.UpdateUserProfile)
	handle(account, http.MethodPost, "/change-password", userHandler.ChangePassword)

	tasks := limited.Group("/tasks", requireAuth)
	handle(tasks, http.MethodGet, "", taskHandler.GetTasks)
	handle(tasks, http.MethodPost, "", taskHandler.CreateTask)
	handle(tasks, http.MethodGet, "/statistics", taskHandler.GetStatistics)
	handle(tasks, http.MethodGet, "/:id", taskHandler.GetTaskByID)
	handle(tasks, http.MethodPut, "/:id", taskHandler.UpdateTask)
	handle(tasks, http.MethodPatch, "/:id", taskHandler.PartialUpdateTask)
	handle(tasks, http.MethodDelete, "/:id", taskHandler.DeleteTask)
	handle(tasks, http.MethodPost, "/:id/mark_complete", taskHandler.MarkComplete)
	handle(tasks, http.MethodPost, "/:id/mark_incomplete", taskHandler.MarkIncomplete)

	return r
}

// handle registers path both with and without its trailing slash.
func handle(group *gin.RouterGroup, method, path string, h gin.HandlerFunc) {
	path = strings.TrimSuffix(path, "/")
	group.Handle(method, path+"/", h)
	if path != "" {
		group.Handle(method, path, h)
		return
	}
	if strings.TrimSuffix(group.BasePath(), "/") != "" {
		// An empty relative path resolves to the group's own base path.
		group.Handle(method, "", h)
	}
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	}
	if len(cfg.AllowedOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = cfg.AllowedOrigins
	return c
}
