package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nsharda/edge-gateway/internal/analytics"
)

const streamInterval = 5 * time.Second

type AnalyticsHandler struct {
	service  *analytics.Service
	interval time.Duration
}

func NewAnalyticsHandler(service *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:  service,
		interval: streamInterval,
	}
}

// Handles GET /admin/analytics
func (h *AnalyticsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}

// Handles GET /admin/analytics/stream. Emits the snapshot immediately and
// every interval thereafter until the client disconnects; each subscriber
// owns its ticker.
func (h *AnalyticsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if err := h.emit(c); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.emit(c); err != nil {
				return
			}
		}
	}
}

func (h *AnalyticsHandler) emit(c *gin.Context) error {
	payload, err := json.Marshal(h.service.Stats())
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}

	c.Writer.Flush()
	return nil
}

// Handles GET /admin/logs?limit=20&offset=0, newest first.
func (h *AnalyticsHandler) GetLogs(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	logs := h.service.Buffer().Recent()

	if offset > len(logs) {
		offset = len(logs)
	}
	end := offset + limit
	if end > len(logs) {
		end = len(logs)
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs[offset:end],
		"limit":  limit,
		"offset": offset,
	})
}
