package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/commercecrafted-backend/internal/data/repos/testutil"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
)

func TestProductRepoUpsertLeavesOmittedFields(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewProductRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	fields := map[string]interface{}{"title": "Widget", "brand": "Acme", "price": 12.5}
	first, err := repo.Upsert(dbc, "B000000001", fields)
	if err != nil || first == nil {
		t.Fatalf("Upsert: %v %v", first, err)
	}
	second, err := repo.Upsert(dbc, "B000000001", map[string]interface{}{"title": "Widget", "brand": "Acme", "price": 12.5})
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if second.ID != first.ID || second.Title != first.Title || *second.Price != *first.Price {
		t.Fatalf("repeat upsert changed the row: %+v vs %+v", first, second)
	}

	// Omitted brand survives; explicit nil clears price.
	third, err := repo.Upsert(dbc, "B000000001", map[string]interface{}{"title": "Widget v2", "price": nil})
	if err != nil {
		t.Fatalf("partial upsert: %v", err)
	}
	if third.Brand != "Acme" {
		t.Fatalf("omitted field clobbered: brand=%q", third.Brand)
	}
	if third.Price != nil {
		t.Fatalf("explicit nil not written: price=%v", *third.Price)
	}

	if _, err := repo.Upsert(dbc, "B000000001", map[string]interface{}{"id; drop table": 1}); err == nil {
		t.Fatalf("unknown column must be rejected")
	}
}

func TestKeywordRepoReplaceIsExact(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewKeywordRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now()
	p := testutil.SeedProduct(t, ctx, tx, "B000000009", &now)

	first := []*types.ProductKeyword{
		{ASIN: p.ASIN, Keyword: "garlic press"},
		{ASIN: p.ASIN, Keyword: "kitchen gadget"},
	}
	if err := repo.ReplaceForProduct(dbc, p.ID, first); err != nil {
		t.Fatalf("Replace first: %v", err)
	}
	second := []*types.ProductKeyword{
		{ASIN: p.ASIN, Keyword: "garlic crusher", EstimatedClicks: 10},
		{ASIN: p.ASIN, Keyword: "Garlic Crusher"},
		{ASIN: p.ASIN, Keyword: "garlic crusher"},
	}
	if err := repo.ReplaceForProduct(dbc, p.ID, second); err != nil {
		t.Fatalf("Replace second: %v", err)
	}
	got, err := repo.ListByProductIDs(dbc, []uuid.UUID{p.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	stored := map[string]bool{}
	for _, k := range got {
		stored[k.Keyword] = true
	}
	if len(got) != 2 || !stored["garlic crusher"] || !stored["Garlic Crusher"] {
		t.Fatalf("want exactly [garlic crusher, Garlic Crusher], got %+v", got)
	}
}

func TestReviewRepoReplaceDedupes(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewReviewRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	p := testutil.SeedProduct(t, ctx, tx, "B000000010", nil)
	kept, err := repo.ReplaceForProduct(dbc, p.ID, []*types.CustomerReview{
		{ASIN: p.ASIN, ReviewerID: "R1", Rating: 5, Content: "Love it"},
		{ASIN: p.ASIN, ReviewerID: "R1", Rating: 5, Content: "love  it"},
		{ASIN: p.ASIN, ReviewerID: "R2", Rating: 1, Content: "Broke"},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if kept != 2 {
		t.Fatalf("kept: want=2 got=%d", kept)
	}
	got, err := repo.ListByProductIDs(dbc, []uuid.UUID{p.ID}, 0)
	if err != nil || len(got) != 2 {
		t.Fatalf("List: want 2 rows got %d err=%v", len(got), err)
	}
}
