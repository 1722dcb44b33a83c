package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

// SearchTermRow is the warehouse shape of one search-term report line.
type SearchTermRow struct {
	ReportID            string    `bigquery:"report_id"`
	MarketplaceID       string    `bigquery:"marketplace_id"`
	WeekStart           time.Time `bigquery:"week_start"`
	SearchTerm          string    `bigquery:"search_term"`
	SearchFrequencyRank int64     `bigquery:"search_frequency_rank"`
	ClickedASIN         string    `bigquery:"clicked_asin"`
	ClickedTitle        string    `bigquery:"clicked_title"`
	ClickShare          float64   `bigquery:"click_share"`
	ConversionShare     float64   `bigquery:"conversion_share"`
	RankPosition        int64     `bigquery:"rank_position"`
	LoadedAt            time.Time `bigquery:"loaded_at"`
}

// Warehouse streams completed report rows into BigQuery.
type Warehouse struct {
	log     *logger.Logger
	client  *bigquery.Client
	dataset string
	table   string
}

// NewWarehouse returns nil, nil unless BIGQUERY_PROJECT_ID is set.
func NewWarehouse(ctx context.Context, log *logger.Logger) (*Warehouse, error) {
	project := strings.TrimSpace(os.Getenv("BIGQUERY_PROJECT_ID"))
	if project == "" {
		return nil, nil
	}
	dataset := strings.TrimSpace(os.Getenv("BIGQUERY_DATASET"))
	if dataset == "" {
		dataset = "amazon_analytics"
	}
	table := strings.TrimSpace(os.Getenv("BIGQUERY_SEARCH_TERMS_TABLE"))
	if table == "" {
		table = "search_terms"
	}
	client, err := bigquery.NewClient(ctx, project, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	w := &Warehouse{
		log:     log.With("service", "Warehouse"),
		client:  client,
		dataset: dataset,
		table:   table,
	}
	if err := w.ensureTable(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	w.log.Info("Warehouse initialized", "project", project, "dataset", dataset, "table", table)
	return w, nil
}

func (w *Warehouse) ensureTable(ctx context.Context) error {
	t := w.client.Dataset(w.dataset).Table(w.table)
	if _, err := t.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("bigquery table metadata: %w", err)
	}
	schema, err := bigquery.InferSchema(SearchTermRow{})
	if err != nil {
		return fmt.Errorf("infer search term schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "week_start",
		},
	}
	if err := t.Create(ctx, meta); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("create bigquery table: %w", err)
	}
	return nil
}

const warehouseBatch = 500

func (w *Warehouse) LoadSearchTerms(ctx context.Context, rows []SearchTermRow) error {
	if len(rows) == 0 {
		return nil
	}
	ins := w.client.Dataset(w.dataset).Table(w.table).Inserter()
	for start := 0; start < len(rows); start += warehouseBatch {
		end := start + warehouseBatch
		if end > len(rows) {
			end = len(rows)
		}
		if err := ins.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("bigquery insert rows %d-%d: %w", start, end, err)
		}
	}
	w.log.Info("Loaded search terms into warehouse", "rows", len(rows), "report_id", rows[0].ReportID)
	return nil
}

func (w *Warehouse) Close() error {
	if w == nil || w.client == nil {
		return nil
	}
	return w.client.Close()
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
