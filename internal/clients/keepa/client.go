package keepa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/clients/upstream"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const DefaultBaseURL = "https://api.keepa.com"

// ErrNotFound is returned when Keepa has no product for the ASIN.
var ErrNotFound = fmt.Errorf("keepa product %w", apperrors.ErrNotFound)

// RateLimitError means the Keepa token bucket is empty. RetryAfter is when it refills.
type RateLimitError struct {
	RetryAfter time.Duration
	TokensLeft int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("keepa rate limited (tokens_left=%d, retry_after=%s)", e.TokensLeft, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return apperrors.ErrUpstreamRateLimited }

type Client interface {
	GetProduct(ctx context.Context, asin string) (*ProductSnapshot, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	Domain     int
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	domain     int
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing KEEPA_API_KEY")
	}
	c := &client{
		log:        log.With("client", "Keepa"),
		httpClient: cfg.HTTPClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		domain:     cfg.Domain,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		now:        time.Now,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.domain <= 0 {
		c.domain = 1
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	return c, nil
}

type productResponse struct {
	Products       []rawProduct `json:"products"`
	TokensLeft     int          `json:"tokensLeft"`
	TokensConsumed int          `json:"tokensConsumed"`
	RefillIn       int64        `json:"refillIn"`
}

func (c *client) GetProduct(ctx context.Context, asin string) (*ProductSnapshot, error) {
	asin = strings.ToUpper(strings.TrimSpace(asin))
	if asin == "" {
		return nil, fmt.Errorf("keepa: empty asin: %w", apperrors.ErrValidation)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("domain", strconv.Itoa(c.domain))
	q.Set("asin", asin)
	q.Set("stats", "1")
	q.Set("history", "1")
	q.Set("offers", "20")
	q.Set("fbafees", "1")
	q.Set("buybox", "1")
	q.Set("rating", "1")
	q.Set("update", "0")
	endpoint := c.baseURL + "/product?" + q.Encode()

	var out productResponse
	err := upstream.Do(ctx, c.log, upstream.Policy{Service: "keepa", MaxRetries: c.maxRetries, BaseBackoff: c.backoff}, func(ctx context.Context) (*http.Response, error) {
		return c.doOnce(ctx, endpoint, &out)
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("keepa product fetched", "asin", asin, "tokens_consumed", out.TokensConsumed, "tokens_left", out.TokensLeft)

	for i := range out.Products {
		p := &out.Products[i]
		if !strings.EqualFold(p.ASIN, asin) {
			continue
		}
		if p.empty() {
			return nil, ErrNotFound
		}
		snap := transform(p)
		snap.TokensLeft = out.TokensLeft
		return snap, nil
	}
	return nil, ErrNotFound
}

func (c *client) doOnce(ctx context.Context, endpoint string, out *productResponse) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, err := upstream.ReadResponse("keepa", resp, 0)
	if err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
			return resp, rateLimitFrom(resp, raw)
		}
		return resp, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp, fmt.Errorf("keepa decode: %w", err)
	}
	return resp, nil
}

// rateLimitFrom prefers Keepa's refillIn (milliseconds) over Retry-After.
func rateLimitFrom(resp *http.Response, raw []byte) *RateLimitError {
	rl := &RateLimitError{RetryAfter: httpx.RetryAfterDuration(resp, time.Minute, 0)}
	var body productResponse
	if json.Unmarshal(raw, &body) == nil {
		rl.TokensLeft = body.TokensLeft
		if body.RefillIn > 0 {
			rl.RetryAfter = time.Duration(body.RefillIn) * time.Millisecond
		}
	}
	return rl
}
