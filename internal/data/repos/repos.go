package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/repos/catalog"
	"github.com/yungbote/commercecrafted-backend/internal/data/repos/niches"
	"github.com/yungbote/commercecrafted-backend/internal/data/repos/reports"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type NicheRepo = niches.NicheRepo
type AnalysisRepo = niches.AnalysisRepo

type ProductRepo = catalog.ProductRepo
type KeywordRepo = catalog.KeywordRepo
type ReviewRepo = catalog.ReviewRepo

type ReportRepo = reports.ReportRepo
type SearchTermRepo = reports.SearchTermRepo

func NewNicheRepo(db *gorm.DB, log *logger.Logger) NicheRepo { return niches.NewNicheRepo(db, log) }
func NewAnalysisRepo(db *gorm.DB, log *logger.Logger) AnalysisRepo {
	return niches.NewAnalysisRepo(db, log)
}

func NewProductRepo(db *gorm.DB, log *logger.Logger) ProductRepo { return catalog.NewProductRepo(db, log) }
func NewKeywordRepo(db *gorm.DB, log *logger.Logger) KeywordRepo { return catalog.NewKeywordRepo(db, log) }
func NewReviewRepo(db *gorm.DB, log *logger.Logger) ReviewRepo   { return catalog.NewReviewRepo(db, log) }

func NewReportRepo(db *gorm.DB, log *logger.Logger) ReportRepo { return reports.NewReportRepo(db, log) }
func NewSearchTermRepo(db *gorm.DB, log *logger.Logger) SearchTermRepo {
	return reports.NewSearchTermRepo(db, log)
}
