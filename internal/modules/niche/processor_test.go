package niche

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/commercecrafted-backend/internal/clients/keepa"
	"github.com/yungbote/commercecrafted-backend/internal/clients/reviews"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/catalog"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/jobs/runtime"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	keepa    *fakeKeepa
	products *memProducts
	keywords *memKeywords
	reviews  *memReviews
	analyses *memAnalyses
	row      *nicheRow
	proc     *Processor
}

func newHarness(t *testing.T, fn func(asin string) (*keepa.ProductSnapshot, error)) *harness {
	t.Helper()
	return newHarnessWithScraper(t, fn, nil)
}

func newHarnessWithScraper(t *testing.T, fn func(asin string) (*keepa.ProductSnapshot, error), scraper reviews.Client) *harness {
	t.Helper()
	h := &harness{
		keepa:    &fakeKeepa{fn: fn},
		products: newMemProducts(),
		keywords: &memKeywords{},
		reviews:  &memReviews{},
		analyses: &memAnalyses{},
		row:      &nicheRow{epoch: 1},
	}
	proc, err := NewProcessor(Deps{
		Tx:       inlineTx{},
		Products: h.products,
		Keywords: h.keywords,
		Reviews:  h.reviews,
		Analyses: h.analyses,
		Keepa:    h.keepa,
		Ads:      &fakeAds{},
		Scraper:  scraper,
		Config:   Config{FetchConcurrency: 4, KeepaStaleAfter: 24 * time.Hour},
		Clock:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	h.proc = proc
	return h
}

func (h *harness) run(t *testing.T) *runtime.Context {
	t.Helper()
	n := &types.Niche{ID: "demo_123", NicheName: "Demo", Status: niches.StatusProcessing, RunEpoch: h.row.epoch}
	n.SetASINs([]string{"B000000001", "B000000002"})
	jc := runtime.NewContext(context.Background(), logger.Nop(), n, h.row, nil)
	if err := h.proc.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return jc
}

func (h *harness) progress(t *testing.T) niches.Progress {
	t.Helper()
	raw, ok := h.row.get("processing_progress").(datatypes.JSON)
	if !ok {
		t.Fatalf("no progress written")
	}
	var p niches.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	return p
}

func validKeepa(asin string) (*keepa.ProductSnapshot, error) {
	if asin == "B000000001" {
		return snapshot(asin, 24.99, 850, 1200, testNow.AddDate(0, -4, 0)), nil
	}
	return snapshot(asin, 19.99, 12000, 90, testNow.AddDate(-2, -1, 0)), nil
}

func TestRunCompletesWithAllAnalyses(t *testing.T) {
	h := newHarness(t, validKeepa)
	jc := h.run(t)

	if jc.Outcome() != runtime.OutcomeCompleted {
		t.Fatalf("outcome = %s", jc.Outcome())
	}
	if got := h.row.get("status"); got != niches.StatusCompleted {
		t.Fatalf("status = %v", got)
	}
	if got := h.row.get("total_products"); got != 2 {
		t.Fatalf("total_products = %v", got)
	}
	counts, _ := h.analyses.Count(dbctx.Context{}, "demo_123")
	for _, c := range niches.Categories {
		if counts[c] != 1 {
			t.Fatalf("category %s rows = %d", c, counts[c])
		}
	}
	if p := h.progress(t); p.Percentage != 100 || len(p.CompletedASINs) != 2 || len(p.FailedASINs) != 0 {
		t.Fatalf("unexpected final progress %+v", p)
	}
	// 2 shared + 1 unique per ASIN.
	if got := h.row.get("total_keywords"); got != 3 {
		t.Fatalf("total_keywords = %v", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, validKeepa)
	h.run(t)
	h.row.epoch++
	h.run(t)
	if n := len(h.analyses.rows); n != 8 {
		t.Fatalf("want 8 analysis rows after two runs, got %d", n)
	}
	// Second run reuses fresh products.
	if calls := h.keepa.total(); calls != 2 {
		t.Fatalf("keepa calls = %d, want 2", calls)
	}
}

func TestRunScrapesReviewsForRefreshedProducts(t *testing.T) {
	scraper := &fakeScraper{}
	h := newHarnessWithScraper(t, validKeepa, scraper)
	h.run(t)

	if got := scraper.scraped(); len(got) != 2 || got[0] != "B000000001" || got[1] != "B000000002" {
		t.Fatalf("scraped = %v", got)
	}
	p := h.products.rows["B000000001"]
	rows := h.reviews.forProduct(p.ID)
	if len(rows) != 3 {
		t.Fatalf("stored %d reviews, want 3", len(rows))
	}
	want := []string{"R1B000000001", "R2B000000001", "Dana"}
	for i, r := range rows {
		if r.ReviewerID != want[i] {
			t.Fatalf("review %d reviewer id = %q, want %q", i, r.ReviewerID, want[i])
		}
	}
	if catalog.ReviewDedupeKey(rows[0].ReviewerID, rows[0].Content) == catalog.ReviewDedupeKey(rows[1].ReviewerID, rows[1].Content) {
		t.Fatalf("distinct reviews from the same display name collapsed")
	}

	// Products are fresh now, so a rerun skips both Keepa and the scraper.
	h.row.epoch++
	h.run(t)
	if got := scraper.scraped(); len(got) != 2 {
		t.Fatalf("rerun scraped again: %v", got)
	}
}

func TestRunSkipsReviewsForFreshProducts(t *testing.T) {
	scraper := &fakeScraper{}
	h := newHarnessWithScraper(t, validKeepa, scraper)
	synced := testNow.Add(-time.Hour)
	h.products.rows["B000000002"] = &types.Product{ID: uuid.New(), ASIN: "B000000002", LastKeepaSync: &synced}
	h.run(t)

	if got := scraper.scraped(); len(got) != 1 || got[0] != "B000000001" {
		t.Fatalf("scraped = %v, want only the refreshed ASIN", got)
	}
	if rows := h.reviews.forProduct(h.products.rows["B000000002"].ID); len(rows) != 0 {
		t.Fatalf("fresh product got %d reviews", len(rows))
	}
}

func TestRunSurvivesScrapeFailure(t *testing.T) {
	scraper := &fakeScraper{fail: map[string]error{"B000000001": errors.New("actor run failed")}}
	h := newHarnessWithScraper(t, validKeepa, scraper)
	jc := h.run(t)

	if jc.Outcome() != runtime.OutcomeCompleted {
		t.Fatalf("outcome = %s", jc.Outcome())
	}
	if rows := h.reviews.forProduct(h.products.rows["B000000001"].ID); len(rows) != 0 {
		t.Fatalf("failed scrape stored %d reviews", len(rows))
	}
	if rows := h.reviews.forProduct(h.products.rows["B000000002"].ID); len(rows) != 3 {
		t.Fatalf("other ASIN stored %d reviews, want 3", len(rows))
	}
	if p := h.progress(t); len(p.FailedASINs) != 0 {
		t.Fatalf("scrape failure marked ASINs failed: %+v", p.FailedASINs)
	}
}

func TestRunRecordsRateLimitedASIN(t *testing.T) {
	h := newHarness(t, func(asin string) (*keepa.ProductSnapshot, error) {
		if asin == "B000000002" {
			return nil, &keepa.RateLimitError{}
		}
		return validKeepa(asin)
	})
	jc := h.run(t)

	if jc.Outcome() != runtime.OutcomeCompleted {
		t.Fatalf("outcome = %s", jc.Outcome())
	}
	if got := h.row.get("total_products"); got != 1 {
		t.Fatalf("total_products = %v", got)
	}
	if got := h.row.get("failed_products"); got != 1 {
		t.Fatalf("failed_products = %v", got)
	}
	p := h.progress(t)
	if len(p.FailedASINs) != 1 || p.FailedASINs[0] != "B000000002" {
		t.Fatalf("failedAsins = %v", p.FailedASINs)
	}
	if p.FailureReasons["B000000002"] != ReasonRateLimited {
		t.Fatalf("reason = %q", p.FailureReasons["B000000002"])
	}
	counts, _ := h.analyses.Count(dbctx.Context{}, "demo_123")
	if len(counts) != 8 {
		t.Fatalf("analysis categories written = %d", len(counts))
	}
}

func TestRunFailsWhenEveryASINFails(t *testing.T) {
	h := newHarness(t, func(asin string) (*keepa.ProductSnapshot, error) {
		return nil, keepa.ErrNotFound
	})
	jc := h.run(t)
	if jc.Outcome() != runtime.OutcomeFailed {
		t.Fatalf("outcome = %s", jc.Outcome())
	}
	if msg, _ := h.row.get("error_message").(string); msg == "" {
		t.Fatalf("error_message not set")
	}
	if len(h.analyses.rows) != 0 {
		t.Fatalf("no analyses expected, got %d", len(h.analyses.rows))
	}
}

func TestRunDropsWritesAfterReset(t *testing.T) {
	var h *harness
	h = newHarness(t, func(asin string) (*keepa.ProductSnapshot, error) {
		// An operator reset lands while the first fetch is in flight.
		h.row.mu.Lock()
		h.row.epoch = 2
		h.row.mu.Unlock()
		return validKeepa(asin)
	})
	h.row.epoch = 1
	jc := h.run(t)
	if jc.Outcome() != runtime.OutcomeFenced {
		t.Fatalf("outcome = %s", jc.Outcome())
	}
	if h.row.get("status") == niches.StatusCompleted {
		t.Fatalf("fenced run must not complete the niche")
	}
	if len(h.analyses.rows) != 0 {
		t.Fatalf("fenced run wrote %d analysis rows", len(h.analyses.rows))
	}
}

func TestFailureReason(t *testing.T) {
	cases := map[string]error{
		ReasonRateLimited: &keepa.RateLimitError{},
		ReasonNotFound:    keepa.ErrNotFound,
		ReasonTimeout:     context.DeadlineExceeded,
		ReasonOther:       errors.New("boom"),
	}
	for want, err := range cases {
		if got := failureReason(err); got != want {
			t.Fatalf("failureReason(%v) = %s, want %s", err, got, want)
		}
	}
}
