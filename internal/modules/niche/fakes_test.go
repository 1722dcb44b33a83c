package niche

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/commercecrafted-backend/internal/clients/adsapi"
	"github.com/yungbote/commercecrafted-backend/internal/clients/keepa"
	"github.com/yungbote/commercecrafted-backend/internal/clients/reviews"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
)

type fakeKeepa struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(asin string) (*keepa.ProductSnapshot, error)
}

func (f *fakeKeepa) GetProduct(ctx context.Context, asin string) (*keepa.ProductSnapshot, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[asin]++
	f.mu.Unlock()
	return f.fn(asin)
}

func (f *fakeKeepa) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func snapshot(asin string, price float64, bsr, reviews int, firstSeen time.Time) *keepa.ProductSnapshot {
	rating := 4.3
	weight := 400.0
	return &keepa.ProductSnapshot{
		ASIN:        asin,
		Title:       "Silicone Baking Mat Set " + asin,
		Brand:       "Acme",
		Category:    "Home & Kitchen",
		Price:       &price,
		BSR:         &bsr,
		Rating:      &rating,
		ReviewCount: &reviews,
		ImageURLs:   []string{"https://m.media-amazon.com/images/I/a.jpg"},
		WeightGrams: &weight,
		FirstSeenAt: &firstSeen,
	}
}

type fakeAds struct {
	err error
}

func (f *fakeAds) GetKeywordSuggestions(ctx context.Context, asins []string) ([]adsapi.Keyword, error) {
	if f.err != nil {
		return nil, f.err
	}
	bid := 0.85
	var out []adsapi.Keyword
	for _, a := range asins {
		out = append(out,
			adsapi.Keyword{ASIN: a, Keyword: "baking mat", MatchType: "BROAD", SuggestedBid: &bid, EstimatedClicks: 10},
			adsapi.Keyword{ASIN: a, Keyword: "silicone mat " + a, MatchType: "EXACT"},
		)
	}
	return out, nil
}

type memProducts struct {
	mu   sync.Mutex
	rows map[string]*types.Product
}

func newMemProducts() *memProducts { return &memProducts{rows: map[string]*types.Product{}} }

func (m *memProducts) Upsert(dbc dbctx.Context, asin string, fields map[string]interface{}) (*types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.rows[asin]
	if p == nil {
		p = &types.Product{ID: uuid.New(), ASIN: asin}
		m.rows[asin] = p
	}
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "brand":
			p.Brand = v.(string)
		case "category":
			p.Category = v.(string)
		case "price":
			p.Price = v.(*float64)
		case "rating":
			p.Rating = v.(*float64)
		case "review_count":
			p.ReviewCount = v.(*int)
		case "bsr":
			p.BSR = v.(*int)
		case "monthly_sold":
			p.MonthlySold = v.(*int)
		case "image_urls":
			p.ImageURLs = v.(string)
		case "weight":
			p.WeightGrams = v.(*float64)
		case "first_seen_at":
			p.FirstSeenAt = v.(*time.Time)
		case "product_age_months":
			p.ProductAgeMonths = v.(*int)
		case "product_age_category":
			p.ProductAgeCategory = v.(string)
		case "last_keepa_sync":
			t := v.(time.Time)
			p.LastKeepaSync = &t
		}
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByASIN(dbc dbctx.Context, asin string) (*types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.rows[asin]; p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memProducts) GetByASINs(dbc dbctx.Context, asins []string) ([]*types.Product, error) {
	var out []*types.Product
	for _, a := range asins {
		if p, _ := m.GetByASIN(dbc, a); p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

type memKeywords struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]*types.ProductKeyword
}

func (m *memKeywords) ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, keywords []*types.ProductKeyword) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[uuid.UUID][]*types.ProductKeyword{}
	}
	for _, k := range keywords {
		k.ProductID = productID
	}
	m.rows[productID] = keywords
	return nil
}

func (m *memKeywords) ListByProductIDs(dbc dbctx.Context, productIDs []uuid.UUID) ([]*types.ProductKeyword, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.ProductKeyword
	for _, id := range productIDs {
		out = append(out, m.rows[id]...)
	}
	return out, nil
}

type memReviews struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]*types.CustomerReview
}

func (m *memReviews) ReplaceForProduct(dbc dbctx.Context, productID uuid.UUID, reviews []*types.CustomerReview) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[uuid.UUID][]*types.CustomerReview{}
	}
	for _, r := range reviews {
		r.ProductID = productID
	}
	m.rows[productID] = reviews
	return len(reviews), nil
}

func (m *memReviews) ListByProductIDs(dbc dbctx.Context, productIDs []uuid.UUID, limit int) ([]*types.CustomerReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.CustomerReview
	for _, id := range productIDs {
		out = append(out, m.rows[id]...)
	}
	return out, nil
}

func (m *memReviews) forProduct(id uuid.UUID) []*types.CustomerReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

// fakeScraper returns two reviews per ASIN that share a display name and text, plus one without a review id.
type fakeScraper struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeScraper) ScrapeReviews(ctx context.Context, asin string, opts reviews.Options) (*reviews.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, asin)
	err := f.fail[asin]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &reviews.Result{Reviews: []reviews.Review{
		{ReviewID: "R1" + asin, ASIN: asin, ReviewerName: "Amazon Customer", Rating: 5, Content: "Great product!"},
		{ReviewID: "R2" + asin, ASIN: asin, ReviewerName: "Amazon Customer", Rating: 5, Content: "Great product!"},
		{ASIN: asin, ReviewerName: "Dana", Rating: 2, Content: "Too thin"},
	}}, nil
}

func (f *fakeScraper) scraped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

type memAnalyses struct {
	mu   sync.Mutex
	rows map[string]types.AnalysisRow
}

func (m *memAnalyses) Upsert(dbc dbctx.Context, row types.AnalysisRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]types.AnalysisRow{}
	}
	m.rows[row.Base().NicheID+"|"+row.TableName()] = row
	return nil
}

func (m *memAnalyses) Get(dbc dbctx.Context, nicheID string, category niches.Category) (types.AnalysisRow, error) {
	empty, err := niches.NewAnalysisRow(category)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[nicheID+"|"+empty.TableName()], nil
}

func (m *memAnalyses) Count(dbc dbctx.Context, nicheID string) (map[niches.Category]int64, error) {
	out := map[niches.Category]int64{}
	for _, c := range niches.Categories {
		if row, _ := m.Get(dbc, nicheID, c); row != nil {
			out[c]++
		}
	}
	return out, nil
}

type inlineTx struct{}

func (inlineTx) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

// nicheRow plays the niches table: writes land only while epoch matches.
type nicheRow struct {
	mu     sync.Mutex
	epoch  int64
	fields map[string]interface{}
}

func (n *nicheRow) UpdateFieldsForEpoch(dbc dbctx.Context, id string, epoch int64, updates map[string]interface{}) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if epoch != n.epoch {
		return false, nil
	}
	if n.fields == nil {
		n.fields = map[string]interface{}{}
	}
	for k, v := range updates {
		n.fields[k] = v
	}
	return true, nil
}

func (n *nicheRow) get(k string) interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fields[k]
}
