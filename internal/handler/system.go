package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nsharda/edge-gateway/internal/analytics"
	"github.com/nsharda/edge-gateway/internal/config"
	"github.com/nsharda/edge-gateway/internal/service"
)

type SystemHandler struct {
	cfg       *config.Config
	apiKeys   *service.APIKeyService
	analytics *analytics.Service
	devices   *service.DeviceService
	log       logrus.FieldLogger
	started   time.Time
}

func NewSystemHandler(cfg *config.Config, apiKeys *service.APIKeyService, stats *analytics.Service, devices *service.DeviceService, log logrus.FieldLogger) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		apiKeys:   apiKeys,
		analytics: stats,
		devices:   devices,
		log:       log,
		started:   time.Now(),
	}
}

// Handles GET /health. The device store is the only backing store; a
// registry that cannot persist degrades the gateway.
func (h *SystemHandler) Health(c *gin.Context) {
	deviceStoreHealthy := true

	if h.devices != nil {
		if err := h.devices.Healthy(); err != nil {
			deviceStoreHealthy = false
			h.log.WithError(err).Error("device store health check failed")
		}
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !deviceStoreHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "edge-gateway",
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"deviceStore": deviceStoreHealthy,
		},
	})
}

// Handles GET /admin/config
func (h *SystemHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rateLimits":    h.cfg.RateLimit,
		"ipRules":       h.cfg.IPRules,
		"activeKeys":    h.apiKeys.ActiveCount(),
		"activeKeyUses": h.analytics.Stats().ActiveKeyUses,
	})
}
