package adsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/clients/lwa"
	"github.com/yungbote/commercecrafted-backend/internal/clients/upstream"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const (
	DefaultBaseURL    = "https://advertising-api.amazon.com"
	suggestedKeywords = "/v2/asins/suggested/keywords"
)

// Keyword is one suggestion returned for an ASIN.
type Keyword struct {
	ASIN            string
	Keyword         string
	MatchType       string
	SuggestedBid    *float64
	EstimatedClicks int
	EstimatedOrders int
	State           string
}

type Client interface {
	GetKeywordSuggestions(ctx context.Context, asins []string) ([]Keyword, error)
}

type Config struct {
	ClientID   string
	ProfileID  string
	BaseURL    string
	MaxResults int
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	tokens     *lwa.TokenSource
	baseURL    string
	clientID   string
	profileID  string
	maxResults int
	maxRetries int
	backoff    time.Duration
}

func NewClient(log *logger.Logger, tokens *lwa.TokenSource, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ProfileID) == "" {
		return nil, fmt.Errorf("missing ADS_API_CLIENT_ID or ADS_API_PROFILE_ID")
	}
	c := &client{
		log:        log.With("client", "AdsAPI"),
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		clientID:   strings.TrimSpace(cfg.ClientID),
		profileID:  strings.TrimSpace(cfg.ProfileID),
		maxResults: cfg.MaxResults,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxResults <= 0 {
		c.maxResults = 100
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	return c, nil
}

type suggestRequest struct {
	ASINs         []string `json:"asins"`
	MaxNumTargets int      `json:"maxNumTargets"`
	SortDimension string   `json:"sortDimension"`
}

func (c *client) GetKeywordSuggestions(ctx context.Context, asins []string) ([]Keyword, error) {
	clean := make([]string, 0, len(asins))
	for _, a := range asins {
		if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("ads: no asins: %w", apperrors.ErrValidation)
	}
	body, err := json.Marshal(suggestRequest{ASINs: clean, MaxNumTargets: c.maxResults, SortDimension: "CLICKS"})
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = lwa.Authorized(ctx, c.tokens, func(ctx context.Context, token string) error {
		return upstream.Do(ctx, c.log, upstream.Policy{Service: "ads", MaxRetries: c.maxRetries, BaseBackoff: c.backoff}, func(ctx context.Context) (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+suggestedKeywords, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Amazon-Advertising-API-ClientId", c.clientID)
			req.Header.Set("Amazon-Advertising-API-Scope", c.profileID)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			raw, err = upstream.ReadResponse("ads", resp, 0)
			return resp, err
		})
	})
	if err != nil {
		return nil, err
	}

	out, err := decodeSuggestions(raw, clean)
	if err != nil {
		return nil, fmt.Errorf("ads decode: %w", err)
	}
	c.log.Debug("keyword suggestions fetched", "asins", len(clean), "keywords", len(out))
	return out, nil
}
