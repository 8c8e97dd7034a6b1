package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nsharda/edge-gateway/internal/service"
)

type DeviceHandler struct {
	service *service.DeviceService
}

func NewDeviceHandler(service *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{service: service}
}

// Handles POST /auth/device/register. The browser generates its own id; the
// server issues the shared secret. Re-registration returns the same secret.
func (h *DeviceHandler) Register(c *gin.Context) {
	var req struct {
		BrowserID string `json:"browserId"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "browserId is required"})
		return
	}

	if _, err := uuid.Parse(req.BrowserID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "browserId must be a UUID"})
		return
	}

	entry, err := h.service.Register(req.BrowserID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooManyAttempts):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many registration attempts"})
		case errors.Is(err, service.ErrDeviceCapReached):
			c.JSON(http.StatusForbidden, gin.H{"error": "Device limit reached for this IP"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"browserId":    entry.BrowserID,
		"sharedSecret": entry.SharedSecret,
		"expiresAt":    entry.ExpiresAt,
	})
}

// Handles DELETE /admin/devices/:browserId
func (h *DeviceHandler) Revoke(c *gin.Context) {
	browserID := c.Param("browserId")

	if err := h.service.Revoke(browserID); err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"browserId": browserID})
}
