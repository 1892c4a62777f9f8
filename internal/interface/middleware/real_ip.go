package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// ipHeaders are checked in order. The edge proxy in front of the API sets
// X-Real-IP; CF-Connecting-IP covers Cloudflare deployments and
// X-Forwarded-For local reverse proxies.
var ipHeaders = []string{"X-Real-IP", "CF-Connecting-IP", "X-Forwarded-For"}

// RealIP resolves the client address into the Gin context (key "real_ip")
// for the rate limiter and logs.
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("real_ip", resolveIP(c))
		c.Next()
	}
}

func resolveIP(c *gin.Context) string {
	for _, h := range ipHeaders {
		v := c.GetHeader(h)
		if v == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the left-most entry is the client.
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		if ip := net.ParseIP(strings.TrimSpace(v)); ip != nil {
			return ip.String()
		}
	}
	return c.ClientIP()
}
