package spapi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yungbote/commercecrafted-backend/internal/clients/upstream"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
)

// SearchTermRow is one entry of a Brand Analytics search terms document.
type SearchTermRow struct {
	DepartmentName      string  `json:"departmentName"`
	SearchTerm          string  `json:"searchTerm"`
	SearchFrequencyRank int     `json:"searchFrequencyRank"`
	ClickedASIN         string  `json:"clickedAsin"`
	ClickedItemName     string  `json:"clickedItemName"`
	ClickShareRank      int     `json:"clickShareRank"`
	ClickShare          float64 `json:"clickShare"`
	ConversionShare     float64 `json:"conversionShare"`
}

type downloadOptions struct {
	raw io.Writer
}

type DownloadOption func(*downloadOptions)

// WithRawSink copies the decompressed document to w while it is parsed.
func WithRawSink(w io.Writer) DownloadOption {
	return func(o *downloadOptions) { o.raw = w }
}

type documentInfo struct {
	URL                  string `json:"url"`
	CompressionAlgorithm string `json:"compressionAlgorithm"`
}

// DownloadReport fetches a report document and parses search term rows from it as a stream.
// Documents without search term data yield no rows.
func (c *client) DownloadReport(ctx context.Context, documentID string, opts ...DownloadOption) ([]SearchTermRow, error) {
	o := downloadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var info documentInfo
	if err := c.doJSON(ctx, http.MethodGet, reportsPath+"/documents/"+url.PathEscape(documentID), nil, &info); err != nil {
		return nil, err
	}
	if strings.TrimSpace(info.URL) == "" {
		return nil, fmt.Errorf("spapi: document %s has no url", documentID)
	}

	var rows []SearchTermRow
	err := upstream.Do(ctx, c.log, upstream.Policy{Service: "spapi_document", MaxRetries: c.maxRetries, BaseBackoff: c.backoff}, func(ctx context.Context) (*http.Response, error) {
		rows = rows[:0]
		if rs, ok := o.raw.(interface{ Reset() }); ok {
			rs.Reset()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return resp, httpx.NewStatusError("spapi_document", resp, raw)
		}

		var body io.Reader = resp.Body
		if strings.EqualFold(info.CompressionAlgorithm, "GZIP") {
			zr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return resp, fmt.Errorf("spapi: gunzip document: %w", err)
			}
			defer zr.Close()
			body = zr
		}
		if o.raw != nil {
			body = io.TeeReader(body, o.raw)
		}
		rows, err = parseSearchTerms(body, rows)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("report document parsed", "document_id", documentID, "rows", len(rows))
	return rows, nil
}

const searchTermsKey = "dataByDepartmentAndSearchTerm"

// parseSearchTerms walks the top-level object and decodes the search term array one element at
// a time. Remaining input is drained so a raw sink sees the whole document.
func parseSearchTerms(r io.Reader, rows []SearchTermRow) ([]SearchTermRow, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err == io.EOF {
		return rows, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spapi: parse document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("spapi: document is not a json object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("spapi: parse document: %w", err)
		}
		key, _ := keyTok.(string)
		if key != searchTermsKey {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("spapi: parse document: %w", err)
			}
			continue
		}
		open, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("spapi: parse document: %w", err)
		}
		if d, ok := open.(json.Delim); !ok || d != '[' {
			return nil, fmt.Errorf("spapi: %s is not an array", searchTermsKey)
		}
		for dec.More() {
			var row SearchTermRow
			if err := dec.Decode(&row); err != nil {
				return nil, fmt.Errorf("spapi: parse row %d: %w", len(rows), err)
			}
			if strings.TrimSpace(row.SearchTerm) == "" {
				continue
			}
			rows = append(rows, row)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("spapi: parse document: %w", err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("spapi: parse document: %w", err)
	}
	_, _ = io.Copy(io.Discard, r)
	return rows, nil
}
