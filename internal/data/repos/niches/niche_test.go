package niches

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/data/repos/testutil"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	domainniches "github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
)

func TestNicheRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewNicheRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	n := &types.Niche{ID: "demo_123", NicheName: "Demo", Slug: "demo", Marketplace: "US"}
	n.SetASINs([]string{"B000000001", "B000000002"})
	queued, err := repo.Upsert(dbc, n)
	if err != nil || !queued {
		t.Fatalf("Upsert: queued=%v err=%v", queued, err)
	}

	bySlug, err := repo.GetByIDOrSlug(dbc, "demo")
	if err != nil || bySlug == nil || bySlug.ID != "demo_123" {
		t.Fatalf("GetByIDOrSlug(slug): %+v err=%v", bySlug, err)
	}
	missing, err := repo.GetByIDOrSlug(dbc, "nope")
	if err != nil || missing != nil {
		t.Fatalf("GetByIDOrSlug(missing): want nil,nil got %+v,%v", missing, err)
	}

	claimed, err := repo.ClaimNextPending(dbc)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending: %+v err=%v", claimed, err)
	}
	if claimed.Status != domainniches.StatusProcessing {
		t.Fatalf("claimed status: want=%s got=%s", domainniches.StatusProcessing, claimed.Status)
	}
	epoch := claimed.RunEpoch

	again, err := repo.Upsert(dbc, &types.Niche{ID: "demo_123", NicheName: "Demo", Slug: "demo", ASINs: "B000000001"})
	if err != nil || again {
		t.Fatalf("Upsert while processing: want not queued, got %v err=%v", again, err)
	}

	ok, err := repo.UpdateFieldsForEpoch(dbc, "demo_123", epoch, map[string]interface{}{"total_products": 2})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsForEpoch(current): ok=%v err=%v", ok, err)
	}

	reset, err := repo.Reset(dbc, "demo_123")
	if err != nil || !reset {
		t.Fatalf("Reset: ok=%v err=%v", reset, err)
	}

	ok, err = repo.UpdateFieldsForEpoch(dbc, "demo_123", epoch, map[string]interface{}{"status": domainniches.StatusCompleted})
	if err != nil {
		t.Fatalf("UpdateFieldsForEpoch(stale): %v", err)
	}
	if ok {
		t.Fatalf("stale epoch write must be dropped")
	}

	got, err := repo.GetByID(dbc, "demo_123")
	if err != nil || got == nil {
		t.Fatalf("GetByID: %+v err=%v", got, err)
	}
	if got.Status != domainniches.StatusPending || got.RunEpoch <= epoch {
		t.Fatalf("after reset: status=%s epoch=%d (old %d)", got.Status, got.RunEpoch, epoch)
	}
}

func TestNicheRepoResetStale(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewNicheRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	testutil.SeedNiche(t, ctx, tx, "stale_1", []string{"B000000001"}, domainniches.StatusProcessing)
	old := time.Now().Add(-2 * time.Hour)
	if err := tx.Model(&types.Niche{}).Where("id = ?", "stale_1").Update("heartbeat_at", old).Error; err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}
	testutil.SeedNiche(t, ctx, tx, "fresh_1", []string{"B000000002"}, domainniches.StatusProcessing)
	if err := tx.Model(&types.Niche{}).Where("id = ?", "fresh_1").Update("heartbeat_at", time.Now()).Error; err != nil {
		t.Fatalf("fresh heartbeat: %v", err)
	}

	n, err := repo.ResetStale(dbc, 30*time.Minute)
	if err != nil {
		t.Fatalf("ResetStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("ResetStale: want=1 got=%d", n)
	}
	fresh, _ := repo.GetByID(dbc, "fresh_1")
	if fresh.Status != domainniches.StatusProcessing {
		t.Fatalf("fresh run must be untouched, got %s", fresh.Status)
	}
}
