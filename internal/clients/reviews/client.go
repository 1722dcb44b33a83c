package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/clients/upstream"
	"github.com/yungbote/commercecrafted-backend/internal/observability"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://api.apify.com/v2"
	DefaultActor   = "axesso_data~amazon-reviews-scraper"

	DefaultMaxReviews = 100
	MaxReviewsCap     = 500

	// USD per Apify compute unit.
	computeUnitPrice = 0.00025
	reviewsPerPage   = 10
)

type Options struct {
	MaxReviews int
	SortBy     string
}

// Normalized applies the default and the cap to MaxReviews.
func (o Options) Normalized() Options {
	if o.MaxReviews <= 0 {
		o.MaxReviews = DefaultMaxReviews
	}
	if o.MaxReviews > MaxReviewsCap {
		o.MaxReviews = MaxReviewsCap
	}
	if o.SortBy == "" {
		o.SortBy = "recent"
	}
	return o
}

type Review struct {
	ReviewID     string
	ASIN         string
	ReviewerName string
	Rating       int
	Title        string
	Content      string
	Verified     bool
	HelpfulVotes int
	ReviewDate   *time.Time
}

type Usage struct {
	RunID            string
	ComputeUnits     float64
	EstimatedCostUSD float64
}

type Result struct {
	Reviews []Review
	Usage   Usage
}

type Client interface {
	ScrapeReviews(ctx context.Context, asin string, opts Options) (*Result, error)
}

type Config struct {
	Token        string
	BaseURL      string
	Actor        string
	PollInterval time.Duration
	MaxWait      time.Duration
	MaxRetries   int
	Backoff      time.Duration
	HTTPClient   *http.Client
}

type client struct {
	log          *logger.Logger
	httpClient   *http.Client
	token        string
	baseURL      string
	actor        string
	pollInterval time.Duration
	maxWait      time.Duration
	maxRetries   int
	backoff      time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("missing APIFY_API_TOKEN")
	}
	c := &client{
		log:          log.With("client", "ReviewScraper"),
		httpClient:   cfg.HTTPClient,
		token:        strings.TrimSpace(cfg.Token),
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		actor:        strings.TrimSpace(cfg.Actor),
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		maxRetries:   cfg.MaxRetries,
		backoff:      cfg.Backoff,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.actor == "" {
		c.actor = DefaultActor
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 5 * time.Second
	}
	if c.maxWait <= 0 {
		c.maxWait = 300 * time.Second
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	return c, nil
}

type actorInput struct {
	Input []actorInputItem `json:"input"`
}

type actorInputItem struct {
	ASIN         string `json:"asin"`
	DomainCode   string `json:"domainCode"`
	SortBy       string `json:"sortBy"`
	MaxPages     int    `json:"maxPages"`
	ReviewerType string `json:"reviewerType"`
	FormatType   string `json:"formatType"`
	MediaType    string `json:"mediaType"`
}

type runEnvelope struct {
	Data runInfo `json:"data"`
}

type runInfo struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
	Usage            struct {
		ComputeUnits float64 `json:"computeUnits"`
	} `json:"usage"`
	Stats struct {
		ComputeUnits float64 `json:"computeUnits"`
	} `json:"stats"`
}

func (r runInfo) computeUnits() float64 {
	if r.Usage.ComputeUnits > 0 {
		return r.Usage.ComputeUnits
	}
	return r.Stats.ComputeUnits
}

func (c *client) ScrapeReviews(ctx context.Context, asin string, opts Options) (*Result, error) {
	asin = strings.ToUpper(strings.TrimSpace(asin))
	if asin == "" {
		return nil, fmt.Errorf("reviews: empty asin: %w", apperrors.ErrValidation)
	}
	opts = opts.Normalized()

	in := actorInput{Input: []actorInputItem{{
		ASIN:         asin,
		DomainCode:   "com",
		SortBy:       opts.SortBy,
		MaxPages:     (opts.MaxReviews + reviewsPerPage - 1) / reviewsPerPage,
		ReviewerType: "all_reviews",
		FormatType:   "current_format",
		MediaType:    "all_contents",
	}}}

	var started runEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/acts/"+url.PathEscape(c.actor)+"/runs", in, &started); err != nil {
		return nil, err
	}
	run, err := c.waitForRun(ctx, started.Data)
	if err != nil {
		return nil, err
	}

	var items []rawReview
	q := url.Values{}
	q.Set("format", "json")
	q.Set("clean", "1")
	if err := c.doJSON(ctx, http.MethodGet, "/datasets/"+url.PathEscape(run.DefaultDatasetID)+"/items?"+q.Encode(), nil, &items); err != nil {
		return nil, err
	}

	reviews, err := convertReviews(items, asin, opts.MaxReviews)
	if err != nil {
		return nil, err
	}
	units := run.computeUnits()
	res := &Result{
		Reviews: reviews,
		Usage: Usage{
			RunID:            run.ID,
			ComputeUnits:     units,
			EstimatedCostUSD: units * computeUnitPrice,
		},
	}
	observability.Current().AddCost("reviews", "apify", res.Usage.EstimatedCostUSD)
	c.log.Info("reviews scraped", "asin", asin, "reviews", len(reviews), "compute_units", units, "estimated_cost_usd", res.Usage.EstimatedCostUSD)
	return res, nil
}

func (c *client) waitForRun(ctx context.Context, run runInfo) (runInfo, error) {
	deadline := time.Now().Add(c.maxWait)
	for {
		switch strings.ToUpper(run.Status) {
		case "SUCCEEDED":
			return run, nil
		case "FAILED", "ABORTED", "TIMED-OUT", "TIMED_OUT":
			return run, fmt.Errorf("reviews: actor run %s ended %s: %w", run.ID, run.Status, apperrors.ErrUpstreamUnavailable)
		}
		if time.Now().After(deadline) {
			return run, fmt.Errorf("reviews: actor run %s still %s after %s: %w", run.ID, run.Status, c.maxWait, apperrors.ErrUpstreamUnavailable)
		}
		if err := httpx.Sleep(ctx, c.pollInterval); err != nil {
			return run, err
		}
		var env runEnvelope
		if err := c.doJSON(ctx, http.MethodGet, "/actor-runs/"+url.PathEscape(run.ID), nil, &env); err != nil {
			return run, err
		}
		run = env.Data
	}
}

func (c *client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	return upstream.Do(ctx, c.log, upstream.Policy{Service: "apify", MaxRetries: c.maxRetries, BaseBackoff: c.backoff}, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		raw, err := upstream.ReadResponse("apify", resp, 0)
		if err != nil {
			return resp, err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("apify decode: %w", err)
		}
		return resp, nil
	})
}
