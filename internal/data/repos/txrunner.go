package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/dberr"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
)

// TxRunner provides a shared transaction boundary for multi-repo writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return errors.New("transaction runner has nil db")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
	if err != nil {
		return dberr.Wrap("tx", err)
	}
	return nil
}
