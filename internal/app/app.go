package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/db"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/http"
	"github.com/yungbote/commercecrafted-backend/internal/observability"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Server   *http.Server
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "commercecrafted-api"),
		Environment: cfg.LogMode,
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	var metrics *observability.Metrics
	if observability.Enabled() {
		metrics = observability.Init(log)
	}

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = db.DSNFromEnv()
	}
	pg, err := db.NewPostgresService(log, dsn)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}

	reposet := wireRepos(pg.DB(), log)
	clientset, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	serviceset, err := wireServices(log, cfg, reposet, clientset)
	if err != nil {
		clientset.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, pg)
	middleware := wireMiddleware(log, serviceset)
	server := http.NewServer(routerConfig(log, metrics, handlerset, middleware), ":"+cfg.Port)

	return &App{
		Log:          log,
		DB:           pg.DB(),
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		Server:       server,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops: the niche worker pool, the Temporal worker, the
// in-process report poller when enabled, and metric collectors.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.NicheWorker != nil {
		a.Services.NicheWorker.Start(ctx)
	}
	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			a.Log.Error("Temporal worker failed to start; relying on in-process polling", "error", err)
		}
	}
	if a.Cfg.PollingOnStart {
		a.Services.Reports.StartPolling(ctx)
	}
	if a.Clients.ProgressBus != nil {
		err := a.Clients.ProgressBus.StartForwarder(ctx, func(ev niches.ProgressEvent) {
			a.Log.Debug("niche progress", "niche_id", ev.NicheID, "status", ev.Status)
		})
		if err != nil {
			a.Log.Warn("progress forwarder not started", "error", err)
		}
	}
	if a.Metrics != nil {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartStatusCollector(ctx, a.Log, a.DB)
		if a.Clients.ProgressBus != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.ProgressBus.Client())
		}
		a.Metrics.StartServer(ctx, a.Log, envutil.String("METRICS_ADDR", ""))
	}
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.ReportEngine != nil {
		a.Services.ReportEngine.Stop()
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
