package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/domain/reports"
)

func SeedNiche(tb testing.TB, ctx context.Context, tx *gorm.DB, id string, asins []string, status string) *types.Niche {
	tb.Helper()
	if status == "" {
		status = niches.StatusPending
	}
	n := &types.Niche{
		ID:          id,
		NicheName:   "Niche " + id,
		Slug:        fmt.Sprintf("slug-%s", id),
		Marketplace: "US",
		Status:      status,
	}
	n.SetASINs(asins)
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		tb.Fatalf("seed niche: %v", err)
	}
	return n
}

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, asin string, lastSync *time.Time) *types.Product {
	tb.Helper()
	price := 19.99
	p := &types.Product{
		ID:            uuid.New(),
		ASIN:          asin,
		Title:         "Product " + asin,
		Brand:         "Acme",
		Price:         &price,
		LastKeepaSync: lastSync,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedReport(tb testing.TB, ctx context.Context, tx *gorm.DB, amazonID, status string, lastPolled *time.Time) *types.AmazonReport {
	tb.Helper()
	start := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	rep := &types.AmazonReport{
		ID:             uuid.New(),
		AmazonReportID: amazonID,
		ReportType:     reports.TypeSearchTerms,
		Status:         status,
		MarketplaceID:  "ATVPDKIKX0DER",
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 6),
		LastPolledAt:   lastPolled,
	}
	if err := tx.WithContext(ctx).Create(rep).Error; err != nil {
		tb.Fatalf("seed report: %v", err)
	}
	return rep
}
