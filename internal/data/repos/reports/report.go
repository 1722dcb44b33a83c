package reports

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	domainreports "github.com/yungbote/commercecrafted-backend/internal/domain/reports"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type ReportRepo interface {
	Create(dbc dbctx.Context, report *types.AmazonReport) (*types.AmazonReport, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AmazonReport, error)
	ListPollable(dbc dbctx.Context, limit int) ([]*types.AmazonReport, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{
		db:  db,
		log: baseLog.With("repo", "ReportRepo"),
	}
}

func (r *reportRepo) Create(dbc dbctx.Context, report *types.AmazonReport) (*types.AmazonReport, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if report.Status == "" {
		report.Status = domainreports.StatusPending
	}
	if err := transaction.WithContext(dbc.Ctx).Create(report).Error; err != nil {
		return nil, dberr.Wrap("amazon_reports.create", err)
	}
	return report, nil
}

func (r *reportRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AmazonReport, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var rep types.AmazonReport
	res := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&rep)
	if res.Error != nil {
		return nil, dberr.Wrap("amazon_reports.get", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &rep, nil
}

// ListPollable returns non-terminal reports, least recently polled first. TIMEOUT reports are
// included so a wait that gave up is picked up again by the background loop.
func (r *reportRepo) ListPollable(dbc dbctx.Context, limit int) ([]*types.AmazonReport, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	var out []*types.AmazonReport
	if err := transaction.WithContext(dbc.Ctx).
		Where("status IN ?", []string{domainreports.StatusPending, domainreports.StatusProcessing, domainreports.StatusTimeout}).
		Order("last_polled_at ASC NULLS FIRST").
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, dberr.Wrap("amazon_reports.list_pollable", err)
	}
	return out, nil
}

func (r *reportRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := r.UpdateFieldsUnlessStatus(dbc, id, nil, updates)
	return err
}

func (r *reportRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.AmazonReport{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, dberr.Wrap("amazon_reports.update", res.Error)
	}
	return res.RowsAffected > 0, nil
}
