package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.temporal.io/sdk/client"

	"github.com/yungbote/commercecrafted-backend/internal/clients/adsapi"
	"github.com/yungbote/commercecrafted-backend/internal/clients/keepa"
	"github.com/yungbote/commercecrafted-backend/internal/clients/lwa"
	"github.com/yungbote/commercecrafted-backend/internal/clients/redis"
	"github.com/yungbote/commercecrafted-backend/internal/clients/reviews"
	"github.com/yungbote/commercecrafted-backend/internal/clients/spapi"
	"github.com/yungbote/commercecrafted-backend/internal/platform/gcp"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/temporalx"
)

type Clients struct {
	Keepa   keepa.Client
	Ads     adsapi.Client // nil without Ads API credentials
	SPAPI   spapi.Client
	Reviews reviews.Client // nil without APIFY_API_TOKEN

	ProgressBus redis.ProgressBus // nil without REDIS_ADDR
	Archive     *gcp.ReportArchive
	Warehouse   *gcp.Warehouse

	Temporal    client.Client // nil without TEMPORAL_ADDRESS
	TemporalCfg temporalx.Config
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Keepa
	kc, err := keepa.NewClient(log, keepa.Config{
		APIKey:  cfg.Keepa.APIKey,
		BaseURL: cfg.Keepa.BaseURL,
		Domain:  cfg.Keepa.Domain,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init keepa client: %w", err)
	}
	out.Keepa = kc

	// SP-API
	spTokens, err := lwa.NewTokenSource(log, "sp-api", credentialsOf(cfg.SPAPI), tokenOptions(cfg.SPAPI)...)
	if err != nil {
		return Clients{}, fmt.Errorf("init sp-api token source: %w", err)
	}
	sp, err := spapi.NewClient(log, spTokens, spapi.Config{Region: cfg.SPAPI.Region, BaseURL: cfg.SPAPI.BaseURL})
	if err != nil {
		return Clients{}, fmt.Errorf("init sp-api client: %w", err)
	}
	out.SPAPI = sp

	// Ads API
	if cfg.Ads.configured() {
		adsTokens, err := lwa.NewTokenSource(log, "ads-api", credentialsOf(cfg.Ads), tokenOptions(cfg.Ads)...)
		if err != nil {
			return Clients{}, fmt.Errorf("init ads-api token source: %w", err)
		}
		ads, err := adsapi.NewClient(log, adsTokens, adsapi.Config{
			ClientID:  cfg.Ads.ClientID,
			ProfileID: cfg.Ads.ProfileID,
			BaseURL:   cfg.Ads.BaseURL,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init ads-api client: %w", err)
		}
		out.Ads = ads
	} else {
		log.Warn("Ads API credentials not set; keyword suggestions disabled")
	}

	// Review scraper
	if strings.TrimSpace(cfg.Reviews.Token) != "" {
		rc, err := reviews.NewClient(log, reviews.Config{
			Token:   cfg.Reviews.Token,
			BaseURL: cfg.Reviews.BaseURL,
			Actor:   cfg.Reviews.Actor,
			MaxWait: cfg.Reviews.MaxWait,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init review scraper: %w", err)
		}
		out.Reviews = rc
	} else {
		log.Warn("APIFY_API_TOKEN not set; review scraping disabled")
	}

	// Redis
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		bus, err := redis.NewProgressBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis progress bus: %w", err)
		}
		out.ProgressBus = bus
	}

	// GCP
	archive, err := gcp.NewReportArchive(ctx, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init report archive: %w", err)
	}
	out.Archive = archive
	warehouse, err := gcp.NewWarehouse(ctx, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init warehouse: %w", err)
	}
	out.Warehouse = warehouse

	// Temporal
	out.TemporalCfg = temporalx.LoadConfig()
	tc, err := temporalx.NewClient(out.TemporalCfg, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	out.Temporal = tc

	return out, nil
}

func credentialsOf(c LWAAppConfig) lwa.Credentials {
	return lwa.Credentials{ClientID: c.ClientID, ClientSecret: c.ClientSecret, RefreshToken: c.RefreshToken}
}

func tokenOptions(c LWAAppConfig) []lwa.Option {
	if strings.TrimSpace(c.TokenURL) == "" {
		return nil
	}
	return []lwa.Option{lwa.WithTokenURL(c.TokenURL)}
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.ProgressBus != nil {
		_ = c.ProgressBus.Close()
	}
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
	if c.Warehouse != nil {
		_ = c.Warehouse.Close()
	}
}
