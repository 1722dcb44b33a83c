package lwa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/clients/upstream"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const (
	DefaultTokenURL = "https://api.amazon.com/auth/o2/token"
	// Tokens are refreshed this long before Amazon says they expire.
	expirySkew = 300 * time.Second
)

type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.RefreshToken) != ""
}

// TokenSource exchanges a Login with Amazon refresh token for access tokens and caches them.
// Safe for concurrent use.
type TokenSource struct {
	log        *logger.Logger
	httpClient *http.Client
	tokenURL   string
	service    string
	creds      Credentials
	maxRetries int
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type Option func(*TokenSource)

func WithTokenURL(u string) Option {
	return func(s *TokenSource) { s.tokenURL = strings.TrimSpace(u) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *TokenSource) { s.httpClient = hc }
}

func WithMaxRetries(n int) Option {
	return func(s *TokenSource) { s.maxRetries = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *TokenSource) { s.now = now }
}

func NewTokenSource(log *logger.Logger, service string, creds Credentials, opts ...Option) (*TokenSource, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !creds.Valid() {
		return nil, fmt.Errorf("lwa %s: client id, client secret and refresh token are required", service)
	}
	s := &TokenSource{
		log:        log.With("client", "LWA", "service", service),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokenURL:   DefaultTokenURL,
		service:    service,
		creds:      creds,
		maxRetries: 2,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a cached access token or fetches a new one.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.creds.RefreshToken)
	form.Set("client_id", s.creds.ClientID)
	form.Set("client_secret", s.creds.ClientSecret)

	var out tokenResponse
	err := upstream.Do(ctx, s.log, upstream.Policy{Service: "lwa", MaxRetries: s.maxRetries}, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		raw, err := upstream.ReadResponse("lwa", resp, 1<<20)
		if err != nil {
			return resp, err
		}
		return resp, json.Unmarshal(raw, &out)
	})
	if err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusUnauthorized) {
			return "", fmt.Errorf("lwa token refresh rejected: %w", apperrors.ErrUpstreamUnauthorized)
		}
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", fmt.Errorf("lwa token response missing access_token: %w", apperrors.ErrUpstreamUnavailable)
	}

	ttl := time.Duration(out.ExpiresIn)*time.Second - expirySkew
	if ttl < 0 {
		ttl = 0
	}
	s.token = out.AccessToken
	s.expiresAt = s.now().Add(ttl)
	s.log.Debug("lwa access token refreshed", "expires_in", out.ExpiresIn)
	return s.token, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}
