package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nsharda/edge-gateway/internal/analytics"
	"github.com/nsharda/edge-gateway/internal/logging"
	"github.com/nsharda/edge-gateway/internal/metrics"
	"github.com/nsharda/edge-gateway/internal/models"
)

// RequestLogger is the first pipeline stage. It fires on response
// completion no matter which later stage short-circuited, feeding the
// analytics buffer, the access-log file and the metrics counters.
func RequestLogger(stats *analytics.Service, fileLog *logging.FileLogger, m *metrics.Metrics, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		clientID := c.GetString("client_id")
		if clientID == "" {
			clientID = c.ClientIP()
		}

		record := models.RequestLog{
			Timestamp:      start,
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     statusCode,
			ResponseTimeMs: int(duration.Milliseconds()),
			ClientID:       clientID,
			IP:             c.ClientIP(),
			APIKey:         c.GetString("api_key"),
			Authenticated:  c.GetBool("authenticated"),
		}

		stats.Record(record)

		if m != nil {
			m.RequestsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
			m.RequestSeconds.Observe(duration.Seconds())
		}

		if fileLog != nil {
			fileLog.Record(record, c.GetString("request_id"))
		}

		log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"client_id":  clientID,
			"ip":         record.IP,
			"status":     statusCode,
			"latency_ms": record.ResponseTimeMs,
		}).Infof("%s %s", record.Method, record.Path)
	}
}
