package reports

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type SearchTermRepo interface {
	ReplaceForReport(dbc dbctx.Context, reportID uuid.UUID, rows []*types.SearchTerm) error
	ListByReport(dbc dbctx.Context, reportID uuid.UUID, limit int) ([]*types.SearchTerm, error)
}

type searchTermRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchTermRepo(db *gorm.DB, baseLog *logger.Logger) SearchTermRepo {
	return &searchTermRepo{
		db:  db,
		log: baseLog.With("repo", "SearchTermRepo"),
	}
}

func (r *searchTermRepo) ReplaceForReport(dbc dbctx.Context, reportID uuid.UUID, rows []*types.SearchTerm) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if reportID == uuid.Nil {
		return nil
	}
	for _, row := range rows {
		row.ID = uuid.Nil
		row.ReportID = reportID
	}
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("report_id = ?", reportID).Delete(&types.SearchTerm{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return dberr.Wrap("search_terms.replace", err)
	}
	return nil
}

func (r *searchTermRepo) ListByReport(dbc dbctx.Context, reportID uuid.UUID, limit int) ([]*types.SearchTerm, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SearchTerm
	q := transaction.WithContext(dbc.Ctx).
		Where("report_id = ?", reportID).
		Order("search_frequency_rank ASC, rank_position ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, dberr.Wrap("search_terms.list", err)
	}
	return out, nil
}
