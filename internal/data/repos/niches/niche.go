package niches

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	domainniches "github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type NicheRepo interface {
	Upsert(dbc dbctx.Context, niche *types.Niche) (bool, error)
	GetByID(dbc dbctx.Context, id string) (*types.Niche, error)
	GetByIDOrSlug(dbc dbctx.Context, key string) (*types.Niche, error)
	ClaimNextPending(dbc dbctx.Context) (*types.Niche, error)
	UpdateFieldsForEpoch(dbc dbctx.Context, id string, epoch int64, updates map[string]interface{}) (bool, error)
	Reset(dbc dbctx.Context, id string) (bool, error)
	ResetStale(dbc dbctx.Context, staleAfter time.Duration) (int64, error)
}

type nicheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNicheRepo(db *gorm.DB, baseLog *logger.Logger) NicheRepo {
	return &nicheRepo{
		db:  db,
		log: baseLog.With("repo", "NicheRepo"),
	}
}

// Upsert queues a niche run. An existing niche is re-queued with a fresh epoch unless it is
// currently processing, in which case nothing changes and false is returned.
func (r *nicheRepo) Upsert(dbc dbctx.Context, niche *types.Niche) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if niche == nil || strings.TrimSpace(niche.ID) == "" {
		return false, nil
	}
	now := time.Now()
	niche.Status = domainniches.StatusPending
	niche.ErrorMessage = ""
	niche.ProcessingProgress = nil
	if niche.CreatedAt.IsZero() {
		niche.CreatedAt = now
	}
	niche.UpdatedAt = now

	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"niche_name":           niche.NicheName,
				"slug":                 niche.Slug,
				"asins":                niche.ASINs,
				"marketplace":          niche.Marketplace,
				"status":               domainniches.StatusPending,
				"processing_progress":  nil,
				"error_message":        "",
				"process_started_at":   nil,
				"process_completed_at": nil,
				"heartbeat_at":         nil,
				"run_epoch":            gorm.Expr("niches.run_epoch + 1"),
				"updated_at":           now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "niches.status <> ?", Vars: []interface{}{domainniches.StatusProcessing}},
			}},
		}).
		Create(niche)
	if res.Error != nil {
		return false, dberr.Wrap("niches.upsert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *nicheRepo) GetByID(dbc dbctx.Context, id string) (*types.Niche, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.first(dbc, transaction.Where("id = ?", id))
}

// GetByIDOrSlug tries the id first, then the slug. Missing is (nil, nil).
func (r *nicheRepo) GetByIDOrSlug(dbc dbctx.Context, key string) (*types.Niche, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	n, err := r.first(dbc, transaction.Where("id = ?", key))
	if err != nil || n != nil {
		return n, err
	}
	return r.first(dbc, transaction.Where("slug = ?", key))
}

func (r *nicheRepo) first(dbc dbctx.Context, q *gorm.DB) (*types.Niche, error) {
	var n types.Niche
	res := q.WithContext(dbc.Ctx).Limit(1).Find(&n)
	if res.Error != nil {
		return nil, dberr.Wrap("niches.get", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &n, nil
}

// ClaimNextPending moves the oldest pending niche to processing and bumps its epoch.
// Concurrent workers skip rows another worker holds.
func (r *nicheRepo) ClaimNextPending(dbc dbctx.Context) (*types.Niche, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	var claimed *types.Niche
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var n types.Niche
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", domainniches.StatusPending).
			Order("updated_at ASC").
			First(&n).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.Niche{}).
			Where("id = ?", n.ID).
			Updates(map[string]interface{}{
				"status":               domainniches.StatusProcessing,
				"run_epoch":            gorm.Expr("run_epoch + 1"),
				"process_started_at":   now,
				"process_completed_at": nil,
				"heartbeat_at":         now,
				"error_message":        "",
				"processing_progress":  nil,
				"updated_at":           now,
			}).Error
		if uErr != nil {
			return uErr
		}
		n.Status = domainniches.StatusProcessing
		n.RunEpoch++
		n.ProcessStartedAt = &now
		n.ProcessCompletedAt = nil
		n.HeartbeatAt = &now
		n.ErrorMessage = ""
		n.ProcessingProgress = nil
		claimed = &n
		return nil
	})
	if err != nil {
		return nil, dberr.Wrap("niches.claim", err)
	}
	return claimed, nil
}

// UpdateFieldsForEpoch applies updates only while epoch is still the niche's active run.
// A false return means the run was superseded and the write was dropped.
func (r *nicheRepo) UpdateFieldsForEpoch(dbc dbctx.Context, id string, epoch int64, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Niche{}).
		Where("id = ? AND run_epoch = ?", id, epoch).
		Updates(updates)
	if res.Error != nil {
		return false, dberr.Wrap("niches.update_for_epoch", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Reset returns a processing or failed niche to pending. Progress and error are cleared in the
// same UPDATE that bumps the epoch, which fences any run still in flight.
func (r *nicheRepo) Reset(dbc dbctx.Context, id string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Niche{}).
		Where("id = ? AND status IN ?", id, []string{domainniches.StatusProcessing, domainniches.StatusFailed}).
		Updates(resetUpdates(""))
	if res.Error != nil {
		return false, dberr.Wrap("niches.reset", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResetStale re-queues processing niches whose heartbeat is older than staleAfter.
func (r *nicheRepo) ResetStale(dbc dbctx.Context, staleAfter time.Duration) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	cutoff := time.Now().Add(-staleAfter)
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Niche{}).
		Where("status = ?", domainniches.StatusProcessing).
		Where("COALESCE(heartbeat_at, process_started_at, updated_at) < ?", cutoff).
		Updates(resetUpdates("run reset after missing heartbeat"))
	if res.Error != nil {
		return 0, dberr.Wrap("niches.reset_stale", res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.Warn("Reset stale niche runs", "count", res.RowsAffected, "stale_after", staleAfter.String())
	}
	return res.RowsAffected, nil
}

func resetUpdates(reason string) map[string]interface{} {
	return map[string]interface{}{
		"status":               domainniches.StatusPending,
		"run_epoch":            gorm.Expr("run_epoch + 1"),
		"processing_progress":  nil,
		"error_message":        reason,
		"process_started_at":   nil,
		"process_completed_at": nil,
		"heartbeat_at":         nil,
		"updated_at":           time.Now(),
	}
}
