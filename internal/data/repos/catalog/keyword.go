package catalog

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type KeywordRepo interface {
	ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, keywords []*types.ProductKeyword) error
	ListByProductIDs(dbc dbctx.Context, productIDs []uuid.UUID) ([]*types.ProductKeyword, error)
}

type keywordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKeywordRepo(db *gorm.DB, baseLog *logger.Logger) KeywordRepo {
	return &keywordRepo{
		db:  db,
		log: baseLog.With("repo", "KeywordRepo"),
	}
}

// ReplaceForProduct swaps the product's keyword snapshot for keywords inside one transaction.
// Rows are keyed by the exact keyword text; an exact repeat keeps the first occurrence and blank
// entries are skipped.
func (r *keywordRepo) ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, keywords []*types.ProductKeyword) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if productID == uuid.Nil {
		return nil
	}
	rows := make([]*types.ProductKeyword, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		if k == nil {
			continue
		}
		if strings.TrimSpace(k.Keyword) == "" {
			continue
		}
		if _, ok := seen[k.Keyword]; ok {
			continue
		}
		seen[k.Keyword] = struct{}{}
		k.ID = uuid.Nil
		k.ProductID = productID
		rows = append(rows, k)
	}
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("product_id = ?", productID).Delete(&types.ProductKeyword{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return dberr.Wrap("product_keywords.replace", err)
	}
	return nil
}

func (r *keywordRepo) ListByProductIDs(dbc dbctx.Context, productIDs []uuid.UUID) ([]*types.ProductKeyword, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProductKeyword
	if len(productIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("product_id IN ?", productIDs).
		Order("estimated_clicks DESC, keyword ASC").
		Find(&out).Error; err != nil {
		return nil, dberr.Wrap("product_keywords.list", err)
	}
	return out, nil
}
