package niche

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/commercecrafted-backend/internal/clients/adsapi"
	"github.com/yungbote/commercecrafted-backend/internal/clients/keepa"
	"github.com/yungbote/commercecrafted-backend/internal/clients/reviews"
	"github.com/yungbote/commercecrafted-backend/internal/data/repos"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/jobs/runtime"
	"github.com/yungbote/commercecrafted-backend/internal/observability"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const (
	StageFetching  = "fetching_products"
	StageKeywords  = "keywords"
	StageReviews   = "reviews"
	StageAnalyzing = "analyzing"
)

// Failure reasons recorded per ASIN in progress metadata.
const (
	ReasonRateLimited = "rate_limited"
	ReasonNotFound    = "not_found"
	ReasonTimeout     = "timeout"
	ReasonUpstream    = "upstream_unavailable"
	ReasonPersistence = "persistence"
	ReasonOther       = "error"
)

var errFenced = errors.New("niche run superseded")

type Config struct {
	FetchConcurrency  int
	KeepaStaleAfter   time.Duration
	MaxReviewsPerASIN int
	// Longest Retry-After honoured before a rate-limited ASIN is recorded as failed.
	MaxRateLimitWait time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		FetchConcurrency:  envutil.Int("NICHE_FETCH_CONCURRENCY", 6),
		KeepaStaleAfter:   envutil.Seconds("KEEPA_STALE_AFTER_SECONDS", 24*60*60),
		MaxReviewsPerASIN: envutil.Int("REVIEWS_MAX_PER_ASIN", reviews.DefaultMaxReviews),
		MaxRateLimitWait:  envutil.Seconds("KEEPA_MAX_RATE_LIMIT_WAIT_SECONDS", 60),
	}
}

type Deps struct {
	Tx       repos.TxRunner
	Products repos.ProductRepo
	Keywords repos.KeywordRepo
	Reviews  repos.ReviewRepo
	Analyses repos.AnalysisRepo
	Keepa    keepa.Client
	Ads      adsapi.Client  // optional
	Scraper  reviews.Client // optional
	Config   Config
	Clock    func() time.Time
}

// Processor runs one niche through fetch, aggregate and analysis persistence.
type Processor struct {
	deps Deps
}

func NewProcessor(deps Deps) (*Processor, error) {
	if deps.Keepa == nil {
		return nil, fmt.Errorf("niche processor: keepa client required")
	}
	if deps.Tx == nil || deps.Products == nil || deps.Keywords == nil || deps.Reviews == nil || deps.Analyses == nil {
		return nil, fmt.Errorf("niche processor: repos required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Config.FetchConcurrency < 1 {
		deps.Config.FetchConcurrency = 1
	}
	if deps.Config.KeepaStaleAfter <= 0 {
		deps.Config.KeepaStaleAfter = 24 * time.Hour
	}
	return &Processor{deps: deps}, nil
}

// fetchState is shared by the fetch goroutines. mu also serializes progress writes.
type fetchState struct {
	mu        sync.Mutex
	progress  niches.Progress
	products  map[string]*types.Product
	refreshed map[string]bool
}

// Run implements worker.Handler. Terminal status is always written through jc.
func (p *Processor) Run(jc *runtime.Context) error {
	ctx, span := observability.StartSpan(jc.Ctx, "niche.process", attribute.String("niche_id", jc.Niche.ID))
	defer span.End()
	log := jc.Log()

	asins := jc.Niche.ASINList()
	if len(asins) == 0 {
		jc.Fail("load", fmt.Errorf("niche %s has no ASINs: %w", jc.Niche.ID, apperrors.ErrValidation))
		return nil
	}
	span.SetAttributes(attribute.Int("asin_count", len(asins)))

	st := &fetchState{
		progress: niches.Progress{
			Total:          len(asins),
			Stage:          StageFetching,
			CompletedASINs: []string{},
			FailedASINs:    []string{},
			FailureReasons: map[string]string{},
		},
		products:  make(map[string]*types.Product, len(asins)),
		refreshed: make(map[string]bool, len(asins)),
	}
	if !jc.Progress(st.progress) && jc.Fenced() {
		return nil
	}

	cached, err := p.deps.Products.GetByASINs(dbctx.Context{Ctx: ctx}, asins)
	if err != nil {
		return fmt.Errorf("load cached products: %w", err)
	}
	byASIN := make(map[string]*types.Product, len(cached))
	for _, prod := range cached {
		byASIN[prod.ASIN] = prod
	}

	if err := p.fetchAll(ctx, jc, asins, byASIN, st); err != nil {
		if errors.Is(err, errFenced) || jc.Fenced() {
			return nil
		}
		return err
	}

	products := make([]*types.Product, 0, len(st.products))
	for _, a := range asins {
		if prod := st.products[a]; prod != nil {
			products = append(products, prod)
		}
	}
	if len(products) == 0 {
		jc.Fail(StageFetching, fmt.Errorf("no product data for any of %d ASINs", len(asins)))
		return nil
	}

	p.setStage(jc, st, StageKeywords)
	p.refreshKeywords(ctx, log, products)
	if jc.Fenced() {
		return nil
	}

	p.setStage(jc, st, StageReviews)
	p.refreshReviews(ctx, log, products, st.refreshed)
	if jc.Fenced() {
		return nil
	}

	p.setStage(jc, st, StageAnalyzing)
	ids := make([]uuid.UUID, 0, len(products))
	for _, prod := range products {
		ids = append(ids, prod.ID)
	}
	kws, err := p.deps.Keywords.ListByProductIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}
	revs, err := p.deps.Reviews.ListByProductIDs(dbctx.Context{Ctx: ctx}, ids, 0)
	if err != nil {
		return fmt.Errorf("load reviews: %w", err)
	}

	rollup := BuildRollup(jc.Niche.ID, products, kws, revs, st.progress.FailedASINs, p.deps.Clock().UTC())
	rows, err := BuildAnalyses(rollup)
	if err != nil {
		return err
	}
	err = p.deps.Tx.InTx(ctx, func(dbc dbctx.Context) error {
		ok, err := jc.Guard(dbc)
		if err != nil {
			return err
		}
		if !ok {
			return errFenced
		}
		for _, row := range rows {
			if err := p.deps.Analyses.Upsert(dbc, row); err != nil {
				return fmt.Errorf("upsert %s: %w", row.TableName(), err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errFenced) || jc.Fenced() {
			return nil
		}
		return err
	}

	if jc.Succeed(rollup.Summary()) {
		log.Info("niche processed",
			"products", len(products),
			"failed", len(st.progress.FailedASINs),
			"keywords", rollup.UniqueKeywords,
			"competition_level", rollup.CompetitionLevel,
		)
	}
	return nil
}

func (p *Processor) fetchAll(ctx context.Context, jc *runtime.Context, asins []string, cached map[string]*types.Product, st *fetchState) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Config.FetchConcurrency)
	now := p.deps.Clock().UTC()

	for _, asin := range asins {
		asin := asin
		g.Go(func() error {
			if jc.Fenced() {
				return errFenced
			}
			prod := cached[asin]
			fresh := prod != nil && !prod.IsStale(now, p.deps.Config.KeepaStaleAfter)
			var reason string
			if !fresh {
				var err error
				prod, err = p.refreshProduct(gctx, asin)
				if err != nil {
					if gctx.Err() != nil && errors.Is(err, gctx.Err()) {
						return err
					}
					reason = failureReason(err)
					jc.Log().Warn("asin fetch failed", "asin", asin, "reason", reason, "error", err)
					observability.Current().IncNicheASINFailure(reason)
				}
			}

			st.mu.Lock()
			defer st.mu.Unlock()
			st.progress.Current++
			st.progress.CurrentASIN = asin
			if reason != "" {
				st.progress.FailedASINs = append(st.progress.FailedASINs, asin)
				st.progress.FailureReasons[asin] = reason
			} else {
				st.progress.CompletedASINs = append(st.progress.CompletedASINs, asin)
				st.products[asin] = prod
				st.refreshed[asin] = !fresh
			}
			st.progress.Percentage = niches.Percent(st.progress.Current, st.progress.Total)
			if !jc.Progress(st.progress) && jc.Fenced() {
				return errFenced
			}
			return nil
		})
	}
	return g.Wait()
}

// refreshProduct fetches from Keepa and upserts. A rate limit within MaxRateLimitWait is waited
// out once before the ASIN is given up.
func (p *Processor) refreshProduct(ctx context.Context, asin string) (*types.Product, error) {
	snap, err := p.deps.Keepa.GetProduct(ctx, asin)
	var rl *keepa.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter <= p.deps.Config.MaxRateLimitWait {
		if serr := httpx.Sleep(ctx, rl.RetryAfter); serr != nil {
			return nil, serr
		}
		snap, err = p.deps.Keepa.GetProduct(ctx, asin)
	}
	if err != nil {
		return nil, err
	}

	now := p.deps.Clock().UTC()
	fields := snap.Fields(now)
	months := AgeMonths(snap.FirstSeenAt, now)
	fields["product_age_months"] = months
	fields["product_age_category"] = AgeBucket(months)
	prod, err := p.deps.Products.Upsert(dbctx.Context{Ctx: ctx}, asin, fields)
	if err != nil {
		return nil, err
	}
	if prod == nil {
		return nil, fmt.Errorf("product %s missing after upsert: %w", asin, apperrors.ErrPersistence)
	}
	return prod, nil
}

// refreshKeywords asks the Ads API once for every product and replaces each product's keywords.
// Failures keep the previously stored keywords.
func (p *Processor) refreshKeywords(ctx context.Context, log *logger.Logger, products []*types.Product) {
	if p.deps.Ads == nil {
		return
	}
	asins := make([]string, 0, len(products))
	for _, prod := range products {
		asins = append(asins, prod.ASIN)
	}
	suggestions, err := p.deps.Ads.GetKeywordSuggestions(ctx, asins)
	if err != nil {
		log.Warn("keyword suggestions failed, keeping stored keywords", "error", err)
		return
	}
	byASIN := make(map[string][]*types.ProductKeyword, len(products))
	for _, k := range suggestions {
		byASIN[k.ASIN] = append(byASIN[k.ASIN], &types.ProductKeyword{
			ASIN:            k.ASIN,
			Keyword:         k.Keyword,
			MatchType:       k.MatchType,
			SuggestedBid:    k.SuggestedBid,
			EstimatedClicks: k.EstimatedClicks,
			EstimatedOrders: k.EstimatedOrders,
			State:           k.State,
		})
	}
	for _, prod := range products {
		rows := dedupeKeywords(byASIN[prod.ASIN])
		if err := p.deps.Keywords.ReplaceForProduct(dbctx.Context{Ctx: ctx}, prod.ID, rows); err != nil {
			log.Warn("keyword replace failed", "asin", prod.ASIN, "error", err)
		}
	}
}

func dedupeKeywords(in []*types.ProductKeyword) []*types.ProductKeyword {
	seen := make(map[string]struct{}, len(in))
	out := make([]*types.ProductKeyword, 0, len(in))
	for _, k := range in {
		if _, ok := seen[k.Keyword]; ok {
			continue
		}
		seen[k.Keyword] = struct{}{}
		out = append(out, k)
	}
	return out
}

// refreshReviews scrapes only products whose Keepa data was refreshed in this run, so a resumed
// run does not pay for reviews it already has.
func (p *Processor) refreshReviews(ctx context.Context, log *logger.Logger, products []*types.Product, refreshed map[string]bool) {
	if p.deps.Scraper == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Config.FetchConcurrency)
	for _, prod := range products {
		prod := prod
		if !refreshed[prod.ASIN] {
			continue
		}
		g.Go(func() error {
			res, err := p.deps.Scraper.ScrapeReviews(gctx, prod.ASIN, reviews.Options{MaxReviews: p.deps.Config.MaxReviewsPerASIN})
			if err != nil {
				log.Warn("review scrape failed", "asin", prod.ASIN, "error", err)
				return nil
			}
			rows := make([]*types.CustomerReview, 0, len(res.Reviews))
			for _, rv := range res.Reviews {
				// Display names like "Amazon Customer" repeat, so they only stand in when the review id is missing.
				reviewerID := rv.ReviewID
				if reviewerID == "" {
					reviewerID = rv.ReviewerName
				}
				rows = append(rows, &types.CustomerReview{
					ASIN:             prod.ASIN,
					ReviewerID:       reviewerID,
					ReviewerName:     rv.ReviewerName,
					Rating:           rv.Rating,
					Title:            rv.Title,
					Content:          rv.Content,
					VerifiedPurchase: rv.Verified,
					HelpfulVotes:     rv.HelpfulVotes,
					ReviewDate:       rv.ReviewDate,
				})
			}
			kept, err := p.deps.Reviews.ReplaceForProduct(dbctx.Context{Ctx: gctx}, prod.ID, rows)
			if err != nil {
				log.Warn("review replace failed", "asin", prod.ASIN, "error", err)
				return nil
			}
			log.Debug("reviews refreshed", "asin", prod.ASIN, "kept", kept, "cost_usd", res.Usage.EstimatedCostUSD)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Processor) setStage(jc *runtime.Context, st *fetchState, stage string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.progress.Stage = stage
	st.progress.CurrentASIN = ""
	jc.Progress(st.progress)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUpstreamRateLimited):
		return ReasonRateLimited
	case errors.Is(err, apperrors.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return ReasonUpstream
	case errors.Is(err, apperrors.ErrPersistence), errors.Is(err, apperrors.ErrValidation):
		return ReasonPersistence
	default:
		return ReasonOther
	}
}
