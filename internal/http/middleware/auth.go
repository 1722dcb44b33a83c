package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/commercecrafted-backend/internal/http/response"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/services"
)

const (
	UpgradeURL = "/pricing"
	RenewURL   = "/billing"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
	now         func() time.Time
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService, now: time.Now}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			c.Abort()
			return
		}
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ctxutil.GetRequestData(c.Request.Context()).IsAdmin() {
			response.RespondError(c, http.StatusForbidden, "forbidden", errAdminOnly)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireTier rejects callers below min with 403 and a link to pricing, or to billing when a
// paid subscription has lapsed. Nothing else is written to the response.
func (am *AuthMiddleware) RequireTier(min string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		ok, expired := services.HasTier(rd, min, am.now())
		if ok {
			c.Next()
			return
		}
		body := gin.H{"requiredTier": services.NormalizeTier(min)}
		if expired {
			body["error"] = "Your subscription has expired. Renew to use this feature"
			body["renewUrl"] = RenewURL
		} else {
			body["error"] = "This feature requires a Pro or Enterprise subscription"
			body["upgradeUrl"] = UpgradeURL
		}
		if rd != nil {
			am.log.Info("tier check failed", "user_id", rd.UserID, "tier", rd.Tier, "required", min, "expired", expired)
		}
		c.AbortWithStatusJSON(http.StatusForbidden, body)
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
