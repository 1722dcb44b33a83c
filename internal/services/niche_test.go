package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type memNiches struct {
	rows map[string]*types.Niche
}

func (m *memNiches) Upsert(dbc dbctx.Context, n *types.Niche) (bool, error) {
	if m.rows == nil {
		m.rows = map[string]*types.Niche{}
	}
	if cur := m.rows[n.ID]; cur != nil {
		if cur.Status == niches.StatusProcessing {
			return false, nil
		}
		n.RunEpoch = cur.RunEpoch + 1
	}
	n.Status = niches.StatusPending
	cp := *n
	m.rows[n.ID] = &cp
	return true, nil
}

func (m *memNiches) GetByID(dbc dbctx.Context, id string) (*types.Niche, error) {
	if n := m.rows[id]; n != nil {
		cp := *n
		return &cp, nil
	}
	return nil, nil
}

func (m *memNiches) GetByIDOrSlug(dbc dbctx.Context, key string) (*types.Niche, error) {
	if n, _ := m.GetByID(dbc, key); n != nil {
		return n, nil
	}
	for _, n := range m.rows {
		if n.Slug == key {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memNiches) ClaimNextPending(dbc dbctx.Context) (*types.Niche, error) { return nil, nil }

func (m *memNiches) UpdateFieldsForEpoch(dbc dbctx.Context, id string, epoch int64, updates map[string]interface{}) (bool, error) {
	return false, nil
}

func (m *memNiches) Reset(dbc dbctx.Context, id string) (bool, error) {
	n := m.rows[id]
	if n == nil || (n.Status != niches.StatusProcessing && n.Status != niches.StatusFailed) {
		return false, nil
	}
	n.Status = niches.StatusPending
	n.RunEpoch++
	return true, nil
}

func (m *memNiches) ResetStale(dbc dbctx.Context, staleAfter time.Duration) (int64, error) {
	return 0, nil
}

type memAnalyses struct {
	rows map[niches.Category]types.AnalysisRow
}

func (m *memAnalyses) Upsert(dbc dbctx.Context, row types.AnalysisRow) error { return nil }

func (m *memAnalyses) Get(dbc dbctx.Context, nicheID string, c niches.Category) (types.AnalysisRow, error) {
	return m.rows[c], nil
}

func (m *memAnalyses) Count(dbc dbctx.Context, nicheID string) (map[niches.Category]int64, error) {
	return nil, nil
}

type memCatalog struct {
	products []*types.Product
	keywords []*types.ProductKeyword
	reviews  []*types.CustomerReview
}

func (m *memCatalog) Upsert(dbc dbctx.Context, asin string, fields map[string]interface{}) (*types.Product, error) {
	return nil, nil
}

func (m *memCatalog) GetByASIN(dbc dbctx.Context, asin string) (*types.Product, error) {
	return nil, nil
}

func (m *memCatalog) GetByASINs(dbc dbctx.Context, asins []string) ([]*types.Product, error) {
	return m.products, nil
}

type memKeywords struct{ c *memCatalog }

func (m memKeywords) ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, kws []*types.ProductKeyword) error {
	return nil
}

func (m memKeywords) ListByProductIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ProductKeyword, error) {
	return m.c.keywords, nil
}

type memReviews struct{ c *memCatalog }

func (m memReviews) ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, rs []*types.CustomerReview) (int, error) {
	return 0, nil
}

func (m memReviews) ListByProductIDs(dbc dbctx.Context, ids []uuid.UUID, limit int) ([]*types.CustomerReview, error) {
	return m.c.reviews, nil
}

type recordingNotifier struct{ events []niches.ProgressEvent }

func (r *recordingNotifier) Publish(ctx context.Context, ev niches.ProgressEvent) error {
	r.events = append(r.events, ev)
	return nil
}

type nicheFixture struct {
	niches   *memNiches
	analyses *memAnalyses
	catalog  *memCatalog
	notify   *recordingNotifier
	svc      *nicheService
}

func newNicheFixture() *nicheFixture {
	f := &nicheFixture{
		niches:   &memNiches{},
		analyses: &memAnalyses{rows: map[niches.Category]types.AnalysisRow{}},
		catalog:  &memCatalog{},
		notify:   &recordingNotifier{},
	}
	svc := NewNicheService(logger.Nop(), NicheServiceDeps{
		Niches:   f.niches,
		Analyses: f.analyses,
		Products: f.catalog,
		Keywords: memKeywords{f.catalog},
		Reviews:  memReviews{f.catalog},
		Notify:   f.notify,
	}).(*nicheService)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	f.svc = svc
	return f
}

func TestProcessQueuesNiche(t *testing.T) {
	f := newNicheFixture()
	q, err := f.svc.Process(context.Background(), ProcessInput{
		NicheName: "Bamboo Cutting Boards!",
		ASINs:     []string{"b000000001", " B000000002 ", "B000000001"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if q.ID != "bamboo-cutting-boards_1700000000000" || q.ASINCount != 2 || q.Status != niches.StatusPending {
		t.Fatalf("queued = %+v", q)
	}
	stored := f.niches.rows[q.ID]
	if stored.ASINs != "B000000001,B000000002" || stored.Marketplace != "US" {
		t.Fatalf("stored = %+v", stored)
	}
	if len(f.notify.events) != 1 || f.notify.events[0].NicheID != q.ID {
		t.Fatalf("events = %+v", f.notify.events)
	}
}

func TestProcessValidation(t *testing.T) {
	f := newNicheFixture()
	for name, in := range map[string]ProcessInput{
		"no name":  {ASINs: []string{"B000000001"}},
		"no asins": {NicheName: "x", ASINs: []string{" "}},
		"bad asin": {NicheName: "x", ASINs: []string{"B0-short"}},
		"no slug":  {NicheName: "!!!", ASINs: []string{"B000000001"}},
	} {
		if _, err := f.svc.Process(context.Background(), in); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("%s: want validation error, got %v", name, err)
		}
	}
}

func TestProcessRefusesRunningNiche(t *testing.T) {
	f := newNicheFixture()
	f.niches.rows = map[string]*types.Niche{"demo_123": {ID: "demo_123", Status: niches.StatusProcessing}}
	_, err := f.svc.Process(context.Background(), ProcessInput{NicheID: "demo_123", NicheName: "Demo", ASINs: []string{"B000000001"}})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestStatusDecodesProgress(t *testing.T) {
	f := newNicheFixture()
	p, _ := json.Marshal(niches.Progress{Current: 1, Total: 2, Percentage: 50, CompletedASINs: []string{"B000000001"}, FailedASINs: []string{"B000000002"}})
	f.niches.rows = map[string]*types.Niche{"demo_123": {ID: "demo_123", NicheName: "Demo", Status: niches.StatusProcessing, ProcessingProgress: p}}

	st, err := f.svc.Status(context.Background(), "demo_123")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Progress == nil || st.Progress.Percentage != 50 || st.CompletedProducts != 1 || st.FailedProducts != 1 {
		t.Fatalf("status = %+v", st)
	}
	if _, err := f.svc.Status(context.Background(), "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestResetBumpsEpoch(t *testing.T) {
	f := newNicheFixture()
	f.niches.rows = map[string]*types.Niche{"demo_123": {ID: "demo_123", Status: niches.StatusProcessing, RunEpoch: 3}}
	n, err := f.svc.Reset(context.Background(), "demo_123")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n.Status != niches.StatusPending || n.RunEpoch != 4 {
		t.Fatalf("niche = %+v", n)
	}
}

func TestResetRejectsIdleNiche(t *testing.T) {
	f := newNicheFixture()
	f.niches.rows = map[string]*types.Niche{
		"pending_1":   {ID: "pending_1", Status: niches.StatusPending, RunEpoch: 2},
		"completed_1": {ID: "completed_1", Status: niches.StatusCompleted, RunEpoch: 5},
	}
	for id, epoch := range map[string]int64{"pending_1": 2, "completed_1": 5} {
		if _, err := f.svc.Reset(context.Background(), id); !errors.Is(err, apperrors.ErrConflict) {
			t.Fatalf("%s: want conflict, got %v", id, err)
		}
		if got := f.niches.rows[id].RunEpoch; got != epoch {
			t.Fatalf("%s: epoch moved to %d", id, got)
		}
	}
	if _, err := f.svc.Reset(context.Background(), "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing: want not found, got %v", err)
	}
}

func TestAnalysisHasData(t *testing.T) {
	f := newNicheFixture()
	f.niches.rows = map[string]*types.Niche{"demo_123": {ID: "demo_123", Slug: "demo", ASINs: "B000000001"}}
	f.catalog.products = []*types.Product{{ID: uuid.New(), ASIN: "B000000001"}}
	f.catalog.keywords = []*types.ProductKeyword{{Keyword: "baking mat"}}
	tab, ok := TabByPath("keywords")
	if !ok {
		t.Fatalf("keywords tab missing")
	}

	view, err := f.svc.Analysis(context.Background(), "demo", tab)
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if view.HasData || len(view.Products) != 1 || len(view.Keywords) != 1 {
		t.Fatalf("before analysis: %+v", view)
	}

	f.analyses.rows[niches.CategoryKeyword] = &types.KeywordAnalysis{AnalysisBase: types.AnalysisBase{NicheID: "demo_123", Payload: []byte(`{"totalKeywords":1}`)}}
	view, err = f.svc.Analysis(context.Background(), "demo_123", tab)
	if err != nil || !view.HasData || string(view.Payload) != `{"totalKeywords":1}` {
		t.Fatalf("after analysis: %+v err=%v", view, err)
	}

	if _, err := f.svc.Analysis(context.Background(), "nope", tab); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if _, ok := TabByPath("seasonality"); ok {
		t.Fatalf("unknown tab should not resolve")
	}
}

func TestExportFormats(t *testing.T) {
	f := newNicheFixture()
	f.niches.rows = map[string]*types.Niche{"demo_123": {ID: "demo_123", Slug: "demo", ASINs: "B000000001"}}
	price, bsr := 19.99, 1200
	f.catalog.products = []*types.Product{{ID: uuid.New(), ASIN: "B000000001", Title: "Mat, silicone", Price: &price, BSR: &bsr}}
	f.analyses.rows[niches.CategoryOverall] = &types.OverallAnalysis{AnalysisBase: types.AnalysisBase{Payload: []byte(`{"opportunityScore":71}`)}}

	file, err := f.svc.Export(context.Background(), "demo_123", "CSV")
	if err != nil {
		t.Fatalf("csv export: %v", err)
	}
	if file.Filename != "niche-demo-export.csv" || file.ContentType != "text/csv" {
		t.Fatalf("file = %s %s", file.Filename, file.ContentType)
	}
	recs, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	if err != nil || len(recs) != 2 || recs[1][1] != "Mat, silicone" || recs[1][4] != "19.99" || recs[1][7] != "1200" {
		t.Fatalf("csv = %v err=%v", recs, err)
	}

	file, err = f.svc.Export(context.Background(), "demo_123", "")
	if err != nil {
		t.Fatalf("json export: %v", err)
	}
	var doc struct {
		Niche    map[string]interface{}     `json:"niche"`
		Analyses map[string]json.RawMessage `json:"analyses"`
	}
	if err := json.Unmarshal(file.Data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Niche["id"] != "demo_123" || !strings.Contains(string(doc.Analyses["overall"]), "71") {
		t.Fatalf("json export = %s", file.Data)
	}

	if _, err := f.svc.Export(context.Background(), "demo_123", "xml"); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}
