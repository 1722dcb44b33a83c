package app

import (
	"github.com/yungbote/commercecrafted-backend/internal/http"
	httpH "github.com/yungbote/commercecrafted-backend/internal/http/handlers"
	httpMW "github.com/yungbote/commercecrafted-backend/internal/http/middleware"
	"github.com/yungbote/commercecrafted-backend/internal/observability"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Niche  *httpH.NicheHandler
	Report *httpH.ReportHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireHandlers(log *logger.Logger, services Services, db httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		Niche:  httpH.NewNicheHandlerWithDeps(httpH.NicheHandlerDeps{Log: log, Niches: services.Niche}),
		Report: httpH.NewReportHandlerWithDeps(httpH.ReportHandlerDeps{Log: log, Reports: services.Reports}),
	}
}

func routerConfig(log *logger.Logger, metrics *observability.Metrics, handlers Handlers, middleware Middleware) http.RouterConfig {
	return http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AuthMiddleware: middleware.Auth,
		NicheHandler:   handlers.Niche,
		ReportHandler:  handlers.Report,
		HealthHandler:  handlers.Health,
	}
}
