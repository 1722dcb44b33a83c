package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/repos"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type Repos struct {
	Tx repos.TxRunner

	Niche    repos.NicheRepo
	Analysis repos.AnalysisRepo

	Product repos.ProductRepo
	Keyword repos.KeywordRepo
	Review  repos.ReviewRepo

	Report     repos.ReportRepo
	SearchTerm repos.SearchTermRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Tx:         repos.NewGormTxRunner(db),
		Niche:      repos.NewNicheRepo(db, log),
		Analysis:   repos.NewAnalysisRepo(db, log),
		Product:    repos.NewProductRepo(db, log),
		Keyword:    repos.NewKeywordRepo(db, log),
		Review:     repos.NewReviewRepo(db, log),
		Report:     repos.NewReportRepo(db, log),
		SearchTerm: repos.NewSearchTermRepo(db, log),
	}
}
