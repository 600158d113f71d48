// Package router assembles the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storybible-api/internal/config"
	"storybible-api/internal/interfaces/http/handler"
	"storybible-api/internal/interfaces/http/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Health  *handler.HealthHandler
	Story   *handler.StoryHandler
	Analyze *handler.AnalyzeHandler
}

// Router wires middleware and routes onto one engine.
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
	}, r.limiter))

	r.engine.Use(middleware.Auth(middleware.AuthConfig{
		Enabled:   r.cfg.Security.JWT.Enabled,
		Secret:    r.cfg.Security.JWT.Secret,
		Issuer:    r.cfg.Security.JWT.Issuer,
		SkipPaths: []string{"/health", "/ready", "/live", "/api/ping", r.cfg.Observability.Metrics.Path},
	}))
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.engine.Group("/api")
	{
		api.GET("/ping", r.handlers.Health.Ping)

		api.POST("/analyze", r.handlers.Analyze.Submit)
		api.GET("/analyze/data/:jid", r.handlers.Analyze.GetJobData)
		api.DELETE("/analyze/:jid", r.handlers.Analyze.DeleteJob)

		stories := api.Group("/stories")
		{
			stories.GET("", r.handlers.Story.ListStories)
			stories.POST("", r.handlers.Story.CreateStory)
			stories.GET("/:sid", r.handlers.Story.GetStory)
			stories.PATCH("/:sid", r.handlers.Story.PatchStory)
			stories.DELETE("/:sid", r.handlers.Story.DeleteStory)
			stories.GET("/:sid/jobs", r.handlers.Analyze.ListJobs)
			stories.GET("/:sid/jobs/stats", r.handlers.Analyze.JobStats)
		}
	}
}
