package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/commercecrafted-backend/internal/clients/spapi"
	"github.com/yungbote/commercecrafted-backend/internal/data/repos"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	domainreports "github.com/yungbote/commercecrafted-backend/internal/domain/reports"
	"github.com/yungbote/commercecrafted-backend/internal/observability"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/gcp"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const DefaultMarketplaceID = "ATVPDKIKX0DER"

// Outcomes of waiting on a single report.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
)

// Archiver keeps the raw report document. *gcp.ReportArchive implements it.
type Archiver interface {
	ObjectKey(reportType, reportID, ext string, at time.Time) string
	Archive(ctx context.Context, key, contentType string, data []byte) error
}

// WarehouseLoader receives parsed rows of completed reports. *gcp.Warehouse implements it.
type WarehouseLoader interface {
	LoadSearchTerms(ctx context.Context, rows []gcp.SearchTermRow) error
}

type Config struct {
	PollInterval       time.Duration
	MaxRetries         int
	BatchSize          int
	DefaultMarketplace string
}

func ConfigFromEnv() Config {
	return Config{
		PollInterval:       envutil.Seconds("REPORT_POLL_INTERVAL_SECONDS", 30),
		MaxRetries:         envutil.Int("REPORT_POLL_MAX_RETRIES", 60),
		BatchSize:          envutil.Int("REPORT_POLL_BATCH_SIZE", 10),
		DefaultMarketplace: envutil.String("SPAPI_MARKETPLACE_ID", DefaultMarketplaceID),
	}
}

type Deps struct {
	Log       *logger.Logger
	Tx        repos.TxRunner
	Reports   repos.ReportRepo
	Terms     repos.SearchTermRepo
	SPAPI     spapi.Client
	Archive   Archiver        // optional
	Warehouse WarehouseLoader // optional
	Config    Config
	Clock     func() time.Time
}

type RequestInput struct {
	ReportType    string
	StartDate     time.Time
	EndDate       time.Time
	MarketplaceID string
	UserID        string
}

// PollSummary counts what one polling cycle did.
type PollSummary struct {
	Polled    int `json:"polled"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}

type LoopStatus struct {
	Running     bool         `json:"isRunning"`
	Interval    string       `json:"interval"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	LastCycleAt *time.Time   `json:"lastCycleAt,omitempty"`
	LastCycle   *PollSummary `json:"lastCycle,omitempty"`
}

// Service owns the lifecycle of SP-API reports: request, poll, download, store.
type Service struct {
	deps Deps
	log  *logger.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt *time.Time
	lastAt    *time.Time
	last      *PollSummary
}

func NewService(deps Deps) (*Service, error) {
	if deps.SPAPI == nil {
		return nil, fmt.Errorf("report service: sp-api client required")
	}
	if deps.Reports == nil || deps.Terms == nil || deps.Tx == nil {
		return nil, fmt.Errorf("report service: repos required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Config.PollInterval <= 0 {
		deps.Config.PollInterval = 30 * time.Second
	}
	if deps.Config.MaxRetries <= 0 {
		deps.Config.MaxRetries = 60
	}
	if deps.Config.BatchSize <= 0 {
		deps.Config.BatchSize = 10
	}
	if deps.Config.DefaultMarketplace == "" {
		deps.Config.DefaultMarketplace = DefaultMarketplaceID
	}
	return &Service{deps: deps, log: deps.Log.With("service", "ReportService")}, nil
}

func (s *Service) Config() Config { return s.deps.Config }

// RequestReport validates the request, asks Amazon for the report and records it as PENDING.
func (s *Service) RequestReport(ctx context.Context, in RequestInput) (*types.AmazonReport, error) {
	in.ReportType = strings.ToUpper(strings.TrimSpace(in.ReportType))
	if err := ValidateRequest(in.ReportType, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.MarketplaceID) == "" {
		in.MarketplaceID = s.deps.Config.DefaultMarketplace
	}

	amazonID, err := s.deps.SPAPI.RequestReport(ctx, in.ReportType, in.StartDate, in.EndDate, in.MarketplaceID)
	if err != nil {
		return nil, err
	}
	rep, err := s.deps.Reports.Create(dbctx.Context{Ctx: ctx}, &types.AmazonReport{
		AmazonReportID: amazonID,
		ReportType:     in.ReportType,
		Status:         domainreports.StatusPending,
		MarketplaceID:  in.MarketplaceID,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		UserID:         in.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report requested", "report_id", rep.ID, "amazon_report_id", amazonID, "type", in.ReportType)
	return rep, nil
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*types.AmazonReport, error) {
	rep, err := s.deps.Reports.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
	}
	return rep, nil
}

// PollOnce runs one cycle over the least recently polled open reports.
func (s *Service) PollOnce(ctx context.Context) (PollSummary, error) {
	var sum PollSummary
	list, err := s.deps.Reports.ListPollable(dbctx.Context{Ctx: ctx}, s.deps.Config.BatchSize)
	if err != nil {
		return sum, err
	}
	for _, rep := range list {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Polled++
		updated, err := s.poll(ctx, rep)
		if err != nil {
			sum.Errors++
			s.log.Warn("report poll failed", "report_id", rep.ID, "error", err)
			continue
		}
		switch updated.Status {
		case domainreports.StatusCompleted:
			sum.Completed++
		case domainreports.StatusFailed:
			sum.Failed++
		case domainreports.StatusExpired:
			sum.Expired++
		default:
			sum.Pending++
		}
	}
	now := s.deps.Clock().UTC()
	s.mu.Lock()
	s.lastAt = &now
	s.last = &sum
	s.mu.Unlock()
	if sum.Polled > 0 {
		s.log.Info("report poll cycle", "polled", sum.Polled, "completed", sum.Completed, "failed", sum.Failed, "expired", sum.Expired, "errors", sum.Errors)
	}
	return sum, nil
}

// CheckReport polls one report by id and returns its updated row.
func (s *Service) CheckReport(ctx context.Context, id uuid.UUID) (*types.AmazonReport, error) {
	rep, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if domainreports.Terminal(rep.Status) {
		return rep, nil
	}
	return s.poll(ctx, rep)
}

// WaitForReport polls until the report is terminal or budget runs out. Running out of budget
// marks the report TIMEOUT and returns OutcomeTimeout with a nil error; the background loop
// keeps polling it.
func (s *Service) WaitForReport(ctx context.Context, id uuid.UUID, interval, budget time.Duration) (string, *types.AmazonReport, error) {
	if interval <= 0 {
		interval = s.deps.Config.PollInterval
	}
	deadline := s.deps.Clock().Add(budget)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-timer.C:
		}
		rep, err := s.CheckReport(ctx, id)
		if err != nil {
			return "", nil, err
		}
		if outcome, done := OutcomeFor(rep.Status); done {
			return outcome, rep, nil
		}
		if !s.deps.Clock().Add(interval).Before(deadline) {
			rep, err = s.MarkTimeout(ctx, rep)
			return OutcomeTimeout, rep, err
		}
		timer.Reset(interval)
	}
}

// OutcomeFor maps a stored status to a wait outcome. done is false while polling should go on.
func OutcomeFor(status string) (outcome string, done bool) {
	switch status {
	case domainreports.StatusCompleted:
		return OutcomeCompleted, true
	case domainreports.StatusFailed, domainreports.StatusExpired:
		return OutcomeFailed, true
	}
	return "", false
}

// MarkTimeout records that a waiter gave up. Terminal rows are left alone.
func (s *Service) MarkTimeout(ctx context.Context, rep *types.AmazonReport) (*types.AmazonReport, error) {
	ok, err := s.deps.Reports.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, rep.ID,
		[]string{domainreports.StatusCompleted, domainreports.StatusFailed, domainreports.StatusExpired},
		map[string]interface{}{"status": domainreports.StatusTimeout})
	if err != nil {
		return rep, err
	}
	if ok {
		rep.Status = domainreports.StatusTimeout
		observability.Current().IncReportPoll(strings.ToLower(domainreports.StatusTimeout))
	}
	return rep, nil
}

func (s *Service) poll(ctx context.Context, rep *types.AmazonReport) (*types.AmazonReport, error) {
	ctx, span := observability.StartSpan(ctx, "report.poll", attribute.String("report_id", rep.ID.String()))
	defer span.End()

	now := s.deps.Clock().UTC()
	terminal := []string{domainreports.StatusCompleted, domainreports.StatusFailed, domainreports.StatusExpired}
	st, err := s.deps.SPAPI.GetReport(ctx, rep.AmazonReportID)
	if err != nil {
		observability.Current().IncReportPoll("error")
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.finish(ctx, rep, domainreports.StatusFailed, "report not found at Amazon")
		}
		return nil, s.noteFailure(ctx, rep, err)
	}
	observability.Current().IncReportPoll(strings.ToLower(st.ProcessingStatus))

	switch st.ProcessingStatus {
	case spapi.StatusDone:
		rep.DocumentID = st.DocumentID
		if err := s.complete(ctx, rep); err != nil {
			return nil, s.noteFailure(ctx, rep, err)
		}
		return rep, nil
	case spapi.StatusCancelled, spapi.StatusFatal:
		return s.finish(ctx, rep, domainreports.StatusFailed, "Amazon report "+strings.ToLower(st.ProcessingStatus))
	}

	retries := rep.RetryCount + 1
	if retries >= s.deps.Config.MaxRetries {
		rep.RetryCount = retries
		return s.finish(ctx, rep, domainreports.StatusExpired, fmt.Sprintf("report not ready after %d polls", retries))
	}
	updates := map[string]interface{}{
		"status":         domainreports.StatusProcessing,
		"retry_count":    retries,
		"last_polled_at": now,
	}
	if _, err := s.deps.Reports.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, rep.ID, terminal, updates); err != nil {
		return nil, err
	}
	rep.Status = domainreports.StatusProcessing
	rep.RetryCount = retries
	rep.LastPolledAt = &now
	return rep, nil
}

// noteFailure counts a failed poll against the retry budget and returns cause. A report that
// keeps failing is expired like one that never finishes.
func (s *Service) noteFailure(ctx context.Context, rep *types.AmazonReport, cause error) error {
	retries := rep.RetryCount + 1
	if retries >= s.deps.Config.MaxRetries {
		rep.RetryCount = retries
		if _, err := s.finish(ctx, rep, domainreports.StatusExpired, cause.Error()); err != nil {
			s.log.Warn("report expire failed", "report_id", rep.ID, "error", err)
		}
		return cause
	}
	_, err := s.deps.Reports.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, rep.ID,
		[]string{domainreports.StatusCompleted, domainreports.StatusFailed, domainreports.StatusExpired},
		map[string]interface{}{
			"last_polled_at": s.deps.Clock().UTC(),
			"retry_count":    retries,
			"error_message":  cause.Error(),
		})
	if err != nil {
		s.log.Warn("report retry bookkeeping failed", "report_id", rep.ID, "error", err)
	}
	return cause
}

func (s *Service) finish(ctx context.Context, rep *types.AmazonReport, status, msg string) (*types.AmazonReport, error) {
	now := s.deps.Clock().UTC()
	_, err := s.deps.Reports.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, rep.ID,
		[]string{domainreports.StatusCompleted},
		map[string]interface{}{
			"status":         status,
			"error_message":  msg,
			"retry_count":    rep.RetryCount,
			"last_polled_at": now,
		})
	if err != nil {
		return nil, err
	}
	rep.Status = status
	rep.ErrorMessage = msg
	rep.LastPolledAt = &now
	s.log.Warn("report finished without data", "report_id", rep.ID, "status", status, "reason", msg)
	return rep, nil
}

// complete downloads the document and stores its rows and the COMPLETED status in one
// transaction. Archive and warehouse copies are best effort afterwards.
func (s *Service) complete(ctx context.Context, rep *types.AmazonReport) error {
	var raw *bytes.Buffer
	var opts []spapi.DownloadOption
	if s.deps.Archive != nil {
		raw = &bytes.Buffer{}
		opts = append(opts, spapi.WithRawSink(raw))
	}
	rows, err := s.deps.SPAPI.DownloadReport(ctx, rep.DocumentID, opts...)
	if err != nil {
		return fmt.Errorf("download report %s: %w", rep.ID, err)
	}
	terms := ToSearchTerms(rep, rows)

	now := s.deps.Clock().UTC()
	err = s.deps.Tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := s.deps.Terms.ReplaceForReport(dbc, rep.ID, terms); err != nil {
			return err
		}
		return s.deps.Reports.UpdateFields(dbc, rep.ID, map[string]interface{}{
			"status":         domainreports.StatusCompleted,
			"document_id":    rep.DocumentID,
			"row_count":      len(terms),
			"completed_at":   now,
			"last_polled_at": now,
			"error_message":  "",
		})
	})
	if err != nil {
		return err
	}
	rep.Status = domainreports.StatusCompleted
	rep.RowCount = len(terms)
	rep.CompletedAt = &now
	rep.LastPolledAt = &now
	s.log.Info("report completed", "report_id", rep.ID, "rows", len(terms))

	if raw != nil && raw.Len() > 0 {
		key := s.deps.Archive.ObjectKey(rep.ReportType, rep.ID.String(), "json", now)
		if err := s.deps.Archive.Archive(ctx, key, "application/json", raw.Bytes()); err != nil {
			s.log.Warn("report archive failed", "report_id", rep.ID, "error", err)
		}
	}
	if s.deps.Warehouse != nil && len(terms) > 0 {
		if err := s.deps.Warehouse.LoadSearchTerms(ctx, WarehouseRows(rep, terms, now)); err != nil {
			s.log.Warn("warehouse load failed", "report_id", rep.ID, "error", err)
		} else {
			observability.Current().AddWarehouseRows("search_terms", len(terms))
		}
	}
	return nil
}

func ToSearchTerms(rep *types.AmazonReport, rows []spapi.SearchTermRow) []*types.SearchTerm {
	out := make([]*types.SearchTerm, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.SearchTerm) == "" {
			continue
		}
		out = append(out, &types.SearchTerm{
			ReportID:            rep.ID,
			SearchTerm:          strings.TrimSpace(r.SearchTerm),
			SearchFrequencyRank: r.SearchFrequencyRank,
			ClickedASIN:         strings.ToUpper(strings.TrimSpace(r.ClickedASIN)),
			ClickedTitle:        r.ClickedItemName,
			ClickShare:          r.ClickShare,
			ConversionShare:     r.ConversionShare,
			RankPosition:        r.ClickShareRank,
			WeekStart:           rep.StartDate,
		})
	}
	return out
}

func WarehouseRows(rep *types.AmazonReport, terms []*types.SearchTerm, loadedAt time.Time) []gcp.SearchTermRow {
	out := make([]gcp.SearchTermRow, 0, len(terms))
	for _, t := range terms {
		out = append(out, gcp.SearchTermRow{
			ReportID:            rep.ID.String(),
			MarketplaceID:       rep.MarketplaceID,
			WeekStart:           t.WeekStart,
			SearchTerm:          t.SearchTerm,
			SearchFrequencyRank: int64(t.SearchFrequencyRank),
			ClickedASIN:         t.ClickedASIN,
			ClickedTitle:        t.ClickedTitle,
			ClickShare:          t.ClickShare,
			ConversionShare:     t.ConversionShare,
			RankPosition:        int64(t.RankPosition),
			LoadedAt:            loadedAt,
		})
	}
	return out
}

// Start launches the background polling loop. It reports false when already running.
func (s *Service) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	now := s.deps.Clock().UTC()
	s.startedAt = &now
	go s.loop(loopCtx, s.done)
	s.log.Info("report polling started", "interval", s.deps.Config.PollInterval.String())
	return true
}

// Stop ends the polling loop and waits for the current cycle. It reports false when not running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done, s.startedAt = nil, nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	s.log.Info("report polling stopped")
	return true
}

func (s *Service) Status() LoopStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoopStatus{
		Running:     s.cancel != nil,
		Interval:    s.deps.Config.PollInterval.String(),
		StartedAt:   s.startedAt,
		LastCycleAt: s.lastAt,
		LastCycle:   s.last,
	}
}

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.deps.Config.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("report poll cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
