package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/catalog"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type ReviewRepo interface {
	ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, reviews []*types.CustomerReview) (int, error)
	ListByProductIDs(dbc dbctx.Context, productIDs []uuid.UUID, limit int) ([]*types.CustomerReview, error)
}

type reviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewRepo(db *gorm.DB, baseLog *logger.Logger) ReviewRepo {
	return &reviewRepo{
		db:  db,
		log: baseLog.With("repo", "ReviewRepo"),
	}
}

// ReplaceForProduct swaps the stored reviews for a product. Duplicates by (reviewer, content)
// are dropped both within the batch and by the unique index. Returns rows kept.
func (r *reviewRepo) ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, reviews []*types.CustomerReview) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if productID == uuid.Nil {
		return 0, nil
	}
	rows := make([]*types.CustomerReview, 0, len(reviews))
	seen := make(map[string]struct{}, len(reviews))
	for _, rv := range reviews {
		if rv == nil {
			continue
		}
		key := catalog.ReviewDedupeKey(rv.ReviewerID, rv.Content)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		rv.ID = uuid.Nil
		rv.ProductID = productID
		rv.DedupeKey = key
		rows = append(rows, rv)
	}
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("product_id = ?", productID).Delete(&types.CustomerReview{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return 0, dberr.Wrap("product_customer_reviews.replace", err)
	}
	return len(rows), nil
}

func (r *reviewRepo) ListByProductIDs(dbc dbctx.Context, productIDs []uuid.UUID, limit int) ([]*types.CustomerReview, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CustomerReview
	if len(productIDs) == 0 {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("product_id IN ?", productIDs).
		Order("helpful_votes DESC, review_date DESC NULLS LAST")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, dberr.Wrap("product_customer_reviews.list", err)
	}
	return out, nil
}
