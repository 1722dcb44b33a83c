package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
)

const (
	ExportJSON = "json"
	ExportCSV  = "csv"
)

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type nicheExport struct {
	Niche      *types.Niche                        `json:"niche"`
	ASINs      []string                            `json:"asins"`
	Products   []*types.Product                    `json:"products"`
	Analyses   map[niches.Category]json.RawMessage `json:"analyses"`
	ExportedAt time.Time                           `json:"exportedAt"`
}

var csvHeader = []string{
	"asin", "title", "brand", "category", "price", "rating", "review_count", "bsr",
	"monthly_sold", "product_age_months", "product_age_category", "fba_fees", "last_keepa_sync",
}

// Export renders a niche with its products and analyses. csv carries one row per product.
func (s *nicheService) Export(ctx context.Context, idOrSlug, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportJSON
	}
	if format != ExportJSON && format != ExportCSV {
		return nil, fmt.Errorf("format must be json or csv: %w", apperrors.ErrValidation)
	}
	n, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	products, err := s.deps.Products.GetByASINs(dbc, n.ASINList())
	if err != nil {
		return nil, err
	}
	name := "niche-" + n.Slug + "-export." + format

	if format == ExportCSV {
		data, err := productsCSV(products)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Filename: name, ContentType: "text/csv", Data: data}, nil
	}

	out := nicheExport{
		Niche:      n,
		ASINs:      n.ASINList(),
		Products:   products,
		Analyses:   make(map[niches.Category]json.RawMessage, len(niches.Categories)),
		ExportedAt: s.now().UTC(),
	}
	for _, c := range niches.Categories {
		row, err := s.deps.Analyses.Get(dbc, n.ID, c)
		if err != nil {
			return nil, err
		}
		if row != nil && len(row.Base().Payload) > 0 {
			out.Analyses[c] = json.RawMessage(row.Base().Payload)
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return &ExportFile{Filename: name, ContentType: "application/json", Data: data}, nil
}

func productsCSV(products []*types.Product) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, p := range products {
		if p == nil {
			continue
		}
		rec := []string{
			p.ASIN, p.Title, p.Brand, p.Category,
			floatCell(p.Price), floatCell(p.Rating), intCell(p.ReviewCount), intCell(p.BSR),
			intCell(p.MonthlySold), intCell(p.ProductAgeMonths), p.ProductAgeCategory, floatCell(p.FBAFees),
			timeCell(p.LastKeepaSync),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func timeCell(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
