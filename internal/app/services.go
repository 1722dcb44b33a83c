package app

import (
	"fmt"

	"github.com/yungbote/commercecrafted-backend/internal/jobs/runtime"
	"github.com/yungbote/commercecrafted-backend/internal/jobs/worker"
	"github.com/yungbote/commercecrafted-backend/internal/modules/niche"
	"github.com/yungbote/commercecrafted-backend/internal/modules/reports"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/services"
	"github.com/yungbote/commercecrafted-backend/internal/temporalx/reportpoll"
	"github.com/yungbote/commercecrafted-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Auth    services.AuthService
	Niche   services.NicheService
	Reports services.ReportService

	NicheWorker    *worker.Worker
	ReportEngine   *reports.Service
	TemporalWorker *temporalworker.Runner // nil without Temporal
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	var notify runtime.Notifier
	if clients.ProgressBus != nil {
		notify = clients.ProgressBus
	}

	processor, err := niche.NewProcessor(niche.Deps{
		Tx:       repos.Tx,
		Products: repos.Product,
		Keywords: repos.Keyword,
		Reviews:  repos.Review,
		Analyses: repos.Analysis,
		Keepa:    clients.Keepa,
		Ads:      clients.Ads,
		Scraper:  clients.Reviews,
		Config:   niche.ConfigFromEnv(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("init niche processor: %w", err)
	}
	nicheWorker := worker.NewWorker(log, repos.Niche, processor, notify)

	reportDeps := reports.Deps{
		Log:     log,
		Tx:      repos.Tx,
		Reports: repos.Report,
		Terms:   repos.SearchTerm,
		SPAPI:   clients.SPAPI,
		Config:  reports.ConfigFromEnv(),
	}
	// Typed nils would defeat the module's nil checks.
	if clients.Archive != nil {
		reportDeps.Archive = clients.Archive
	}
	if clients.Warehouse != nil {
		reportDeps.Warehouse = clients.Warehouse
	}
	engine, err := reports.NewService(reportDeps)
	if err != nil {
		return Services{}, fmt.Errorf("init report service: %w", err)
	}

	var waits services.WaitStarter
	var runner *temporalworker.Runner
	if clients.Temporal != nil {
		waits = &reportpoll.Starter{
			Client:    clients.Temporal,
			TaskQueue: clients.TemporalCfg.TaskQueue,
			Interval:  engine.Config().PollInterval,
			Budget:    envutil.Seconds("REPORT_WAIT_BUDGET_SECONDS", 30*60),
		}
		runner, err = temporalworker.NewRunner(log, clients.TemporalCfg, clients.Temporal, engine)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
	}

	return Services{
		Auth:  services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Niche: services.NewNicheService(log, services.NicheServiceDeps{
			Niches:   repos.Niche,
			Analyses: repos.Analysis,
			Products: repos.Product,
			Keywords: repos.Keyword,
			Reviews:  repos.Review,
			Notify:   notify,
		}),
		Reports:        services.NewReportService(log, engine, waits),
		NicheWorker:    nicheWorker,
		ReportEngine:   engine,
		TemporalWorker: runner,
	}, nil
}
