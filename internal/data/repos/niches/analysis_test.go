package niches

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/commercecrafted-backend/internal/data/repos/testutil"
	domainniches "github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
)

func TestAnalysisRepoUpsertIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewAnalysisRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	for run := 0; run < 2; run++ {
		for _, c := range domainniches.Categories {
			row, err := domainniches.NewAnalysisRow(c)
			if err != nil {
				t.Fatalf("NewAnalysisRow(%s): %v", c, err)
			}
			row.Base().NicheID = "demo_123"
			row.Base().Payload = datatypes.JSON([]byte(`{"run":` + string(rune('0'+run)) + `}`))
			if err := repo.Upsert(dbc, row); err != nil {
				t.Fatalf("Upsert(%s) run %d: %v", c, run, err)
			}
		}
	}

	counts, err := repo.Count(dbc, "demo_123")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	for _, c := range domainniches.Categories {
		if counts[c] != 1 {
			t.Fatalf("%s: want exactly one row, got %d", c, counts[c])
		}
	}

	row, err := repo.Get(dbc, "demo_123", domainniches.CategoryOverall)
	if err != nil || row == nil {
		t.Fatalf("Get: %v %v", row, err)
	}
	if string(row.Base().Payload) != `{"run": 1}` && string(row.Base().Payload) != `{"run":1}` {
		t.Fatalf("payload not overwritten: %s", row.Base().Payload)
	}

	none, err := repo.Get(dbc, "other", domainniches.CategoryDemand)
	if err != nil || none != nil {
		t.Fatalf("Get(missing): want nil,nil got %v,%v", none, err)
	}
}
