package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/clients/lwa"
	"github.com/yungbote/commercecrafted-backend/internal/clients/upstream"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const reportsPath = "/reports/2021-06-30"

// Amazon processing statuses.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusCancelled  = "CANCELLED"
	StatusFatal      = "FATAL"
)

var reportTypes = map[string]string{
	"SEARCH_TERMS":    "GET_BRAND_ANALYTICS_SEARCH_TERMS_REPORT",
	"MARKET_BASKET":   "GET_BRAND_ANALYTICS_MARKET_BASKET_REPORT",
	"REPEAT_PURCHASE": "GET_BRAND_ANALYTICS_REPEAT_PURCHASE_REPORT",
	"ITEM_COMPARISON": "GET_BRAND_ANALYTICS_ITEM_COMPARISON_REPORT",
}

// AmazonReportType maps our report type to the SP-API reportType.
func AmazonReportType(t string) (string, bool) {
	v, ok := reportTypes[strings.ToUpper(strings.TrimSpace(t))]
	return v, ok
}

// BaseURLForRegion returns the SP-API endpoint for na, eu or fe.
func BaseURLForRegion(region string) string {
	switch strings.ToLower(strings.TrimSpace(region)) {
	case "eu":
		return "https://sellingpartnerapi-eu.amazon.com"
	case "fe":
		return "https://sellingpartnerapi-fe.amazon.com"
	default:
		return "https://sellingpartnerapi-na.amazon.com"
	}
}

type ReportStatus struct {
	ReportID         string `json:"reportId"`
	ProcessingStatus string `json:"processingStatus"`
	DocumentID       string `json:"reportDocumentId"`
}

type Client interface {
	RequestReport(ctx context.Context, reportType string, start, end time.Time, marketplaceID string) (string, error)
	GetReport(ctx context.Context, reportID string) (*ReportStatus, error)
	DownloadReport(ctx context.Context, documentID string, opts ...DownloadOption) ([]SearchTermRow, error)
}

type Config struct {
	Region     string
	BaseURL    string
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	tokens     *lwa.TokenSource
	baseURL    string
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
	c := &client{
		log:        log.With("client", "SPAPI"),
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = BaseURLForRegion(cfg.Region)
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	return c, nil
}

type createReportRequest struct {
	ReportType     string            `json:"reportType"`
	MarketplaceIDs []string          `json:"marketplaceIds"`
	DataStartTime  string            `json:"dataStartTime"`
	DataEndTime    string            `json:"dataEndTime"`
	ReportOptions  map[string]string `json:"reportOptions,omitempty"`
}

func (c *client) RequestReport(ctx context.Context, reportType string, start, end time.Time, marketplaceID string) (string, error) {
	amazonType, ok := AmazonReportType(reportType)
	if !ok {
		return "", fmt.Errorf("spapi: unknown report type %q: %w", reportType, apperrors.ErrValidation)
	}
	if strings.TrimSpace(marketplaceID) == "" {
		return "", fmt.Errorf("spapi: marketplace id required: %w", apperrors.ErrValidation)
	}
	body := createReportRequest{
		ReportType:     amazonType,
		MarketplaceIDs: []string{marketplaceID},
		DataStartTime:  start.UTC().Format(time.RFC3339),
		DataEndTime:    end.UTC().Format(time.RFC3339),
		ReportOptions:  map[string]string{"reportPeriod": "WEEK"},
	}
	var out struct {
		ReportID string `json:"reportId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, reportsPath+"/reports", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ReportID) == "" {
		return "", fmt.Errorf("spapi: createReport returned no reportId: %w", apperrors.ErrUpstreamUnavailable)
	}
	c.log.Info("report requested", "report_type", amazonType, "amazon_report_id", out.ReportID)
	return out.ReportID, nil
}

func (c *client) GetReport(ctx context.Context, reportID string) (*ReportStatus, error) {
	if strings.TrimSpace(reportID) == "" {
		return nil, fmt.Errorf("spapi: report id required: %w", apperrors.ErrValidation)
	}
	var out ReportStatus
	if err := c.doJSON(ctx, http.MethodGet, reportsPath+"/reports/"+url.PathEscape(reportID), nil, &out); err != nil {
		return nil, err
	}
	if out.ReportID == "" {
		out.ReportID = reportID
	}
	return &out, nil
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
	return lwa.Authorized(ctx, c.tokens, func(ctx context.Context, token string) error {
		return upstream.Do(ctx, c.log, upstream.Policy{Service: "spapi", MaxRetries: c.maxRetries, BaseBackoff: c.backoff}, func(ctx context.Context) (*http.Response, error) {
			var rdr io.Reader
			if payload != nil {
				rdr = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
			if err != nil {
				return nil, err
			}
			req.Header.Set("x-amz-access-token", token)
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			raw, err := upstream.ReadResponse("spapi", resp, 0)
			if err != nil {
				return resp, err
			}
			if out == nil {
				return resp, nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return resp, fmt.Errorf("spapi decode: %w", err)
			}
			return resp, nil
		})
	})
}
