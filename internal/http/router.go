package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/commercecrafted-backend/internal/http/handlers"
	httpMW "github.com/yungbote/commercecrafted-backend/internal/http/middleware"
	"github.com/yungbote/commercecrafted-backend/internal/observability"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/services"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	NicheHandler  *httpH.NicheHandler
	ReportHandler *httpH.ReportHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if envutil.Bool("OTEL_ENABLED", false) {
		r.Use(otelgin.Middleware(envutil.String("OTEL_SERVICE_NAME", "commercecrafted-api")))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log))
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
		if cfg.Metrics != nil {
			r.GET("/metrics", cfg.HealthHandler.Metrics)
		}
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Niches
	if cfg.NicheHandler != nil {
		api.POST("/niches/process", cfg.NicheHandler.Process)
		api.GET("/niches/process", cfg.NicheHandler.ProcessStatus)
		api.GET("/niches/:id", cfg.NicheHandler.GetNiche)
		for _, tab := range services.Tabs {
			api.GET("/niches/:id/"+tab.Path, cfg.NicheHandler.Tab(tab))
		}
		if cfg.AuthMiddleware != nil {
			api.GET("/niches/:id/export", cfg.AuthMiddleware.RequireTier(services.TierPro), cfg.NicheHandler.Export)
			api.POST("/niches/:id/reset", cfg.AuthMiddleware.RequireAdmin(), cfg.NicheHandler.Reset)
		}
	}

	// Reports
	if cfg.ReportHandler != nil {
		api.POST("/reports/request", cfg.ReportHandler.Request)
		api.GET("/reports/:id", cfg.ReportHandler.GetReport)
		if cfg.AuthMiddleware != nil {
			polling := api.Group("/reports/polling", cfg.AuthMiddleware.RequireAdmin())
			polling.POST("/start", cfg.ReportHandler.StartPolling)
			polling.POST("/stop", cfg.ReportHandler.StopPolling)
			polling.GET("/status", cfg.ReportHandler.PollingStatus)
		}
	}

	return r
}
