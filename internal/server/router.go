package server

import (
	"context"

	"github.com/abduss/filestore/internal/auth"
	"github.com/abduss/filestore/internal/config"
	"github.com/abduss/filestore/internal/file"
	"github.com/abduss/filestore/internal/logger"
	"github.com/abduss/filestore/internal/metrics"
	"github.com/abduss/filestore/internal/progress"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	Logger      *zap.Logger
	DB          Pinger
	ObjectStore Pinger
	AuthService *auth.Service
	FileService *file.Service
	Progress    *progress.Registry
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(log))
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	if deps.Config.Metrics.PrometheusPath != "" {
		metrics.Register(router, deps.Config.Metrics.PrometheusPath)
	}

	if deps.AuthService == nil {
		return router
	}

	gate := auth.Gate(deps.AuthService, auth.GateConfig{
		CookieName: deps.Config.Session.CookieName,
		LoginPath:  deps.Config.Auth.LoginPath,
	})
	auth.RegisterRoutes(router, gate, deps.AuthService, auth.RouteConfig{
		CookieName:   deps.Config.Session.CookieName,
		CookieSecure: deps.Config.Session.CookieSecure,
		LoginPath:    deps.Config.Auth.LoginPath,
		SessionTTL:   deps.Config.Session.TTL,
	})

	protected := router.Group("/")
	protected.Use(gate)

	if deps.FileService != nil {
		file.RegisterRoutes(protected, deps.FileService)
	}
	if deps.Progress != nil {
		progress.RegisterRoutes(protected, deps.Progress, progress.TransportConfig{
			PingInterval: deps.Config.Progress.PingInterval,
			PongWait:     deps.Config.Progress.PongWait,
			WriteWait:    deps.Config.Progress.WriteWait,
		})
	}

	return router
}
