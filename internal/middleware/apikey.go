package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nsharda/edge-gateway/internal/auth"
	"github.com/nsharda/edge-gateway/internal/service"
)

const freeTier = "free"

// AuthResolver resolves each request into (clientId, tier, credential).
// Anonymous requests fall back to the IP identity on the free tier. The
// layer sets request-scoped identity only; rate-limit headers belong to the
// limiter stage.
func AuthResolver(apiKeys *service.APIKeyService, devices *service.DeviceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidate := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if candidate == "" {
			candidate = strings.TrimSpace(c.Query("apiKey"))
		}

		if candidate == "" {
			c.Set("client_id", c.ClientIP())
			c.Set("tier", freeTier)
			c.Next()
			return
		}

		// A missing device registry sends TOTP-shaped keys down the
		// static path, where they will not match any secret.
		if auth.IsTOTPKey(candidate) && devices != nil {
			resolveTOTP(c, devices, candidate)
			return
		}

		credential, ok := apiKeys.Authenticate(candidate)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or revoked API key",
			})
			return
		}

		c.Set("client_id", credential.ID)
		c.Set("tier", credential.Tier)
		c.Set("api_key", candidate)
		c.Set("authenticated", true)
		c.Next()
	}
}

func resolveTOTP(c *gin.Context, devices *service.DeviceService, candidate string) {
	browserID, code, err := auth.ParseKey(candidate)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Malformed TOTP key",
		})
		return
	}

	entry, ok := devices.Get(browserID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Device not registered or expired",
		})
		return
	}

	if !auth.ValidateCode(browserID, entry.SharedSecret, code, time.Now()) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid TOTP code",
		})
		return
	}

	devices.Touch(browserID, c.ClientIP())

	c.Set("client_id", browserID)
	c.Set("tier", freeTier)
	c.Set("api_key", candidate)
	c.Set("authenticated", true)
	c.Next()
}
