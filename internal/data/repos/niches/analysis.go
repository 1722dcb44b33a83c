package niches

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	domainniches "github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type AnalysisRepo interface {
	Upsert(dbc dbctx.Context, row domainniches.AnalysisRow) error
	Get(dbc dbctx.Context, nicheID string, category domainniches.Category) (domainniches.AnalysisRow, error)
	Count(dbc dbctx.Context, nicheID string) (map[domainniches.Category]int64, error)
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{
		db:  db,
		log: baseLog.With("repo", "AnalysisRepo"),
	}
}

// Upsert writes one row per niche per category; a rerun overwrites payload and summary columns.
func (r *analysisRepo) Upsert(dbc dbctx.Context, row domainniches.AnalysisRow) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	base := row.Base()
	now := time.Now()
	if base.AnalysisDate.IsZero() {
		base.AnalysisDate = now
	}
	base.UpdatedAt = now
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	cols := append([]string{"payload", "analysis_date", "updated_at"}, row.SummaryColumns()...)
	err := transaction.WithContext(dbc.Ctx).
		Table(row.TableName()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "niche_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(row).Error
	if err != nil {
		return dberr.Wrap("analysis.upsert."+row.TableName(), err)
	}
	return nil
}

func (r *analysisRepo) Get(dbc dbctx.Context, nicheID string, category domainniches.Category) (domainniches.AnalysisRow, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	row, err := domainniches.NewAnalysisRow(category)
	if err != nil {
		return nil, err
	}
	res := transaction.WithContext(dbc.Ctx).
		Table(row.TableName()).
		Where("niche_id = ?", nicheID).
		Limit(1).
		Find(row)
	if res.Error != nil {
		return nil, dberr.Wrap("analysis.get."+row.TableName(), res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return row, nil
}

func (r *analysisRepo) Count(dbc dbctx.Context, nicheID string) (map[domainniches.Category]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[domainniches.Category]int64, len(domainniches.Categories))
	for _, c := range domainniches.Categories {
		row, err := domainniches.NewAnalysisRow(c)
		if err != nil {
			return nil, err
		}
		var n int64
		if err := transaction.WithContext(dbc.Ctx).
			Table(row.TableName()).
			Where("niche_id = ?", nicheID).
			Count(&n).Error; err != nil {
			return nil, dberr.Wrap("analysis.count."+row.TableName(), err)
		}
		out[c] = n
	}
	return out, nil
}
