package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. 5xx responses log at error level together with the
// cause recorded through c.Error, which never reaches the client.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx := c.Request.Context()
		fields := append([]interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}, ctxutil.GetTraceData(ctx).LogFields()...)
		if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID != "" {
			fields = append(fields, "user_id", rd.UserID, "tier", rd.Tier)
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, "error", last.Error())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Debug("request served", fields...)
		}
	}
}
