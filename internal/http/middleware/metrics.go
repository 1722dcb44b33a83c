package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/commercecrafted-backend/internal/observability"
)

const unmatchedRoute = "unmatched"

// Metrics records request counts and latency per route template. Unknown paths collapse into a
// single label.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.ApiInflightInc()
		start := time.Now()
		c.Next()
		m.ApiInflightDec()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
