package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
)

func AutoMigrateAll(db *gorm.DB) error {
	models := []interface{}{
		// =========================
		// Niches
		// =========================
		&types.Niche{},

		// =========================
		// Catalog (shared across niches)
		// =========================
		&types.Product{},
		&types.ProductKeyword{},
		&types.CustomerReview{},

		// =========================
		// SP-API reports
		// =========================
		&types.AmazonReport{},
		&types.SearchTerm{},
	}
	// Per-niche analysis tables
	models = append(models, niches.AnalysisModels()...)
	return db.AutoMigrate(models...)
}
