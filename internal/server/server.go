package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nsharda/edge-gateway/internal/analytics"
	"github.com/nsharda/edge-gateway/internal/config"
	"github.com/nsharda/edge-gateway/internal/handler"
	"github.com/nsharda/edge-gateway/internal/logging"
	"github.com/nsharda/edge-gateway/internal/metrics"
	"github.com/nsharda/edge-gateway/internal/middleware"
	"github.com/nsharda/edge-gateway/internal/ratelimit"
	"github.com/nsharda/edge-gateway/internal/service"
)

// Server wires the admission pipeline in front of the application routes.
// The management surface shares the log hook but sits outside the IP filter
// and the limiter, so observability survives saturation.
type Server struct {
	router    *gin.Engine
	app       *gin.RouterGroup
	config    *config.Config
	log       *logrus.Logger
	limiter   *ratelimit.Service
	analytics *analytics.Service
	apiKeys   *service.APIKeyService
	devices   *service.DeviceService
	fileLog   *logging.FileLogger
	metrics   *metrics.Metrics

	httpServer *http.Server
	stopGauge  chan struct{}
}

func New(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	limiter := ratelimit.NewService(cfg.RateLimit)
	buffer := analytics.NewBuffer(analytics.DefaultCapacity)
	stats := analytics.NewService(buffer, limiter.HitCount)
	apiKeys := service.NewAPIKeyService()
	adminAuth := service.NewAuthService(
		cfg.Admin.Email,
		cfg.Admin.PasswordHash,
		cfg.Admin.JWTSecret,
		cfg.Admin.JWTExpiryHours,
	)
	m := metrics.New()

	var devices *service.DeviceService
	if cfg.Devices.StorePath != "" {
		var err error
		devices, err = service.NewDeviceService(cfg.Devices.StorePath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open device registry: %w", err)
		}
	}

	var fileLog *logging.FileLogger
	if cfg.AccessLog.Dir != "" {
		var err error
		fileLog, err = logging.NewFileLogger(
			cfg.AccessLog.Dir,
			cfg.AccessLog.Service,
			cfg.AccessLog.MaxLinesPerFile,
			log,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open access log: %w", err)
		}
	}

	s := &Server{
		router:    router,
		config:    cfg,
		log:       log,
		limiter:   limiter,
		analytics: stats,
		apiKeys:   apiKeys,
		devices:   devices,
		fileLog:   fileLog,
		metrics:   m,
		stopGauge: make(chan struct{}),
	}

	s.setupMiddleware()
	s.setupRoutes(adminAuth)

	go s.gaugeLoop()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.analytics, s.fileLog, s.metrics, s.log))
}

func (s *Server) setupRoutes(adminAuth *service.AuthService) {
	systemHandler := handler.NewSystemHandler(s.config, s.apiKeys, s.analytics, s.devices, s.log)
	analyticsHandler := handler.NewAnalyticsHandler(s.analytics)
	apiKeyHandler := handler.NewAPIKeyHandler(s.apiKeys)
	authHandler := handler.NewAuthHandler(adminAuth)

	s.router.GET("/health", systemHandler.Health)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.POST("/auth/login", authHandler.Login)

	if s.devices != nil {
		deviceHandler := handler.NewDeviceHandler(s.devices)
		s.router.POST("/auth/device/register", deviceHandler.Register)

		admin := s.router.Group("/admin", middleware.RequireAdmin(adminAuth))
		admin.DELETE("/devices/:browserId", deviceHandler.Revoke)
	}

	admin := s.router.Group("/admin", middleware.RequireAdmin(adminAuth))
	{
		admin.GET("/analytics", analyticsHandler.GetStats)
		admin.GET("/analytics/stream", analyticsHandler.Stream)
		admin.GET("/config", systemHandler.GetConfig)
		admin.GET("/logs", analyticsHandler.GetLogs)
		admin.POST("/keys", apiKeyHandler.Create)
		admin.GET("/keys", apiKeyHandler.List)
		admin.DELETE("/keys/:id", apiKeyHandler.Revoke)
	}

	// Application routes traverse the full pipeline:
	// auth -> IP filter -> rate limit.
	s.app = s.router.Group("/",
		middleware.AuthResolver(s.apiKeys, s.devices),
		middleware.IPFilter(s.config.IPRules),
		middleware.RateLimit(s.limiter, s.metrics, s.log),
	)
}

// App returns the route group the application mounts its endpoints on.
func (s *Server) App() *gin.RouterGroup {
	return s.app
}

func (s *Server) gaugeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.devices != nil {
				s.metrics.DevicesActive.Set(float64(s.devices.ActiveCount()))
			}
		case <-s.stopGauge:
			return
		}
	}
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.log.WithFields(logrus.Fields{
		"addr":        addr,
		"environment": s.config.Server.Environment,
	}).Info("starting gateway")

	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, then drains the maintenance tasks:
// the device registry flushes synchronously and the access log is drained.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopGauge)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	if s.devices != nil {
		s.devices.Close()
	}
	if s.fileLog != nil {
		s.fileLog.Close()
	}

	return err
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
