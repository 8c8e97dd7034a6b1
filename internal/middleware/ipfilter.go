package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nsharda/edge-gateway/internal/config"
)

// IPFilter enforces the allow/block rules. Empty lists are no-ops, and the
// verdict for a given request never changes between applications.
func IPFilter(rules config.IPRules) gin.HandlerFunc {
	allowlist := toSet(rules.Allowlist)
	blocklist := toSet(rules.Blocklist)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		switch rules.Mode {
		case config.ModeAllowlist:
			if len(allowlist) > 0 {
				if _, ok := allowlist[ip]; !ok {
					c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
						"error": "IP not in allowlist",
					})
					return
				}
			}
		case config.ModeBlocklist:
			if _, ok := blocklist[ip]; ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "IP is blocked",
				})
				return
			}
		}

		c.Next()
	}
}

func toSet(ips []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		set[ip] = struct{}{}
	}
	return set
}
