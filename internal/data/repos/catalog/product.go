package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type ProductRepo interface {
	Upsert(dbc dbctx.Context, asin string, fields map[string]interface{}) (*types.Product, error)
	GetByASIN(dbc dbctx.Context, asin string) (*types.Product, error)
	GetByASINs(dbc dbctx.Context, asins []string) ([]*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{
		db:  db,
		log: baseLog.With("repo", "ProductRepo"),
	}
}

// Column names Upsert accepts in its partial field map.
var productColumns = map[string]struct{}{
	"title": {}, "brand": {}, "category": {}, "subcategory": {},
	"price": {}, "rating": {}, "review_count": {}, "bsr": {}, "monthly_sold": {},
	"image_urls": {}, "length": {}, "width": {}, "height": {}, "weight": {},
	"first_seen_at": {}, "product_age_months": {}, "product_age_category": {},
	"fba_fees": {}, "last_keepa_sync": {},
}

// Upsert merges fields into the product keyed by asin. Keys absent from fields are left as they
// are; a key present with a nil value is written as NULL.
func (r *productRepo) Upsert(dbc dbctx.Context, asin string, fields map[string]interface{}) (*types.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	asin = strings.ToUpper(strings.TrimSpace(asin))
	if asin == "" {
		return nil, fmt.Errorf("product upsert: empty asin: %w", apperrors.ErrValidation)
	}

	updateCols := make([]string, 0, len(fields)+1)
	values := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		if _, ok := productColumns[k]; !ok {
			return nil, fmt.Errorf("product upsert: unknown column %q: %w", k, apperrors.ErrValidation)
		}
		values[k] = v
		updateCols = append(updateCols, k)
	}
	sort.Strings(updateCols)
	updateCols = append(updateCols, "updated_at")

	now := time.Now()
	values["id"] = uuid.New()
	values["asin"] = asin
	values["created_at"] = now
	values["updated_at"] = now

	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Product{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asin"}},
			DoUpdates: clause.AssignmentColumns(updateCols),
		}).
		Create(values).Error
	if err != nil {
		return nil, dberr.Wrap("products.upsert", err)
	}
	return r.GetByASIN(dbc, asin)
}

func (r *productRepo) GetByASIN(dbc dbctx.Context, asin string) (*types.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var p types.Product
	res := transaction.WithContext(dbc.Ctx).
		Where("asin = ?", strings.ToUpper(strings.TrimSpace(asin))).
		Limit(1).
		Find(&p)
	if res.Error != nil {
		return nil, dberr.Wrap("products.get", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *productRepo) GetByASINs(dbc dbctx.Context, asins []string) ([]*types.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Product
	if len(asins) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("asin IN ?", asins).
		Order("asin ASC").
		Find(&out).Error; err != nil {
		return nil, dberr.Wrap("products.get_many", err)
	}
	return out, nil
}
