package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/commercecrafted-backend/internal/data/repos"
	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/jobs/runtime"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

var asinPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

type ProcessInput struct {
	NicheID     string
	NicheName   string
	ASINs       []string
	Marketplace string
	UserID      string
}

type QueuedNiche struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ASINCount int    `json:"asinCount"`
	Status    string `json:"status"`
}

type NicheStatus struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Status            string           `json:"status"`
	Progress          *niches.Progress `json:"progress,omitempty"`
	TotalProducts     int              `json:"totalProducts"`
	CompletedProducts int              `json:"completedProducts"`
	FailedProducts    int              `json:"failedProducts"`
	MarketSize        *float64         `json:"marketSize,omitempty"`
	CompetitionLevel  string           `json:"competitionLevel,omitempty"`
	StartedAt         *time.Time       `json:"startedAt,omitempty"`
	CompletedAt       *time.Time       `json:"completedAt,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// Tab describes one analysis endpoint: its URL segment, category and response key.
type Tab struct {
	Path     string
	Category niches.Category
	Key      string
}

var Tabs = []Tab{
	{Path: "competition", Category: niches.CategoryCompetition, Key: "competitionAnalysis"},
	{Path: "demand-analysis", Category: niches.CategoryDemand, Key: "demandAnalysis"},
	{Path: "financial", Category: niches.CategoryFinancial, Key: "financialAnalysis"},
	{Path: "keywords", Category: niches.CategoryKeyword, Key: "keywordAnalysis"},
	{Path: "launch", Category: niches.CategoryLaunch, Key: "launchAnalysis"},
	{Path: "listing", Category: niches.CategoryListing, Key: "listingAnalysis"},
	{Path: "market-intelligence", Category: niches.CategoryMarketIntelligence, Key: "marketIntelligence"},
	{Path: "overview", Category: niches.CategoryOverall, Key: "overviewAnalysis"},
}

// AnalysisView is one analysis tab plus the rows it was computed from.
type AnalysisView struct {
	Niche    *types.Niche
	Tab      Tab
	HasData  bool
	Payload  json.RawMessage
	Analysis types.AnalysisRow
	Products []*types.Product
	Keywords []*types.ProductKeyword
	Reviews  []*types.CustomerReview
}

type NicheService interface {
	Process(ctx context.Context, in ProcessInput) (*QueuedNiche, error)
	Get(ctx context.Context, idOrSlug string) (*types.Niche, error)
	Status(ctx context.Context, id string) (*NicheStatus, error)
	Reset(ctx context.Context, id string) (*types.Niche, error)
	Analysis(ctx context.Context, idOrSlug string, tab Tab) (*AnalysisView, error)
	Export(ctx context.Context, idOrSlug, format string) (*ExportFile, error)
}

type NicheServiceDeps struct {
	Niches   repos.NicheRepo
	Analyses repos.AnalysisRepo
	Products repos.ProductRepo
	Keywords repos.KeywordRepo
	Reviews  repos.ReviewRepo
	Notify   runtime.Notifier // optional
}

type nicheService struct {
	log        *logger.Logger
	deps       NicheServiceDeps
	maxASINs   int
	reviewRows int
	now        func() time.Time
}

func NewNicheService(baseLog *logger.Logger, deps NicheServiceDeps) NicheService {
	return &nicheService{
		log:        baseLog.With("service", "NicheService"),
		deps:       deps,
		maxASINs:   envutil.Int("NICHE_MAX_ASINS", 100),
		reviewRows: envutil.Int("NICHE_TAB_MAX_REVIEWS", 200),
		now:        time.Now,
	}
}

// Process creates or re-queues a niche. A niche that is processing right now is left alone and
// reported as a conflict.
func (s *nicheService) Process(ctx context.Context, in ProcessInput) (*QueuedNiche, error) {
	name := strings.TrimSpace(in.NicheName)
	if name == "" {
		return nil, fmt.Errorf("nicheName is required: %w", apperrors.ErrValidation)
	}
	asins := niches.NormalizeASINs(in.ASINs)
	if len(asins) == 0 {
		return nil, fmt.Errorf("at least one ASIN is required: %w", apperrors.ErrValidation)
	}
	if s.maxASINs > 0 && len(asins) > s.maxASINs {
		return nil, fmt.Errorf("at most %d ASINs per niche: %w", s.maxASINs, apperrors.ErrValidation)
	}
	for _, a := range asins {
		if !asinPattern.MatchString(a) {
			return nil, fmt.Errorf("invalid ASIN %q: %w", a, apperrors.ErrValidation)
		}
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("nicheName must contain letters or digits: %w", apperrors.ErrValidation)
	}
	id := strings.TrimSpace(in.NicheID)
	if id == "" {
		id = fmt.Sprintf("%s_%d", slug, s.now().UnixMilli())
	}
	marketplace := strings.ToUpper(strings.TrimSpace(in.Marketplace))
	if marketplace == "" {
		marketplace = "US"
	}

	niche := &types.Niche{
		ID:          id,
		NicheName:   name,
		Slug:        slug,
		Marketplace: marketplace,
		CreatedBy:   in.UserID,
	}
	niche.SetASINs(asins)

	queued, err := s.deps.Niches.Upsert(dbctx.Context{Ctx: ctx}, niche)
	if err != nil {
		return nil, err
	}
	if !queued {
		return nil, fmt.Errorf("niche %s is already processing: %w", id, apperrors.ErrConflict)
	}
	s.log.Info("niche queued", "niche_id", id, "asins", len(asins), "user_id", in.UserID)
	if s.deps.Notify != nil {
		ev := niches.ProgressEvent{NicheID: id, Status: niches.StatusPending, At: s.now().UTC()}
		if err := s.deps.Notify.Publish(ctx, ev); err != nil {
			s.log.Warn("publish queued event failed", "niche_id", id, "error", err)
		}
	}
	return &QueuedNiche{ID: id, Name: name, Slug: slug, ASINCount: len(asins), Status: niches.StatusPending}, nil
}

func (s *nicheService) Get(ctx context.Context, idOrSlug string) (*types.Niche, error) {
	n, err := s.deps.Niches.GetByIDOrSlug(dbctx.Context{Ctx: ctx}, idOrSlug)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("niche %q: %w", idOrSlug, apperrors.ErrNotFound)
	}
	return n, nil
}

func (s *nicheService) Status(ctx context.Context, id string) (*NicheStatus, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("nicheId is required: %w", apperrors.ErrValidation)
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &NicheStatus{
		ID:               n.ID,
		Name:             n.NicheName,
		Status:           n.Status,
		TotalProducts:    n.TotalProducts,
		FailedProducts:   n.FailedProducts,
		MarketSize:       n.MarketSize,
		CompetitionLevel: n.CompetitionLevel,
		StartedAt:        n.ProcessStartedAt,
		CompletedAt:      n.ProcessCompletedAt,
		Error:            n.ErrorMessage,
	}
	if len(n.ProcessingProgress) > 0 {
		var p niches.Progress
		if err := json.Unmarshal(n.ProcessingProgress, &p); err != nil {
			s.log.Warn("undecodable processing_progress", "niche_id", n.ID, "error", err)
		} else {
			p.Normalize()
			st.Progress = &p
			st.CompletedProducts = len(p.CompletedASINs)
			if st.FailedProducts == 0 {
				st.FailedProducts = len(p.FailedASINs)
			}
		}
	}
	return st, nil
}

// Reset returns a niche to pending under a new epoch. A run still in flight is fenced.
func (s *nicheService) Reset(ctx context.Context, id string) (*types.Niche, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.deps.Niches.Reset(dbctx.Context{Ctx: ctx}, n.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Only processing and failed niches can be reset.
		return nil, fmt.Errorf("niche %q is %s: %w", id, n.Status, apperrors.ErrConflict)
	}
	s.log.Warn("niche reset", "niche_id", n.ID, "previous_status", n.Status, "previous_epoch", n.RunEpoch)
	return s.Get(ctx, n.ID)
}

func (s *nicheService) Analysis(ctx context.Context, idOrSlug string, tab Tab) (*AnalysisView, error) {
	n, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	view := &AnalysisView{Niche: n, Tab: tab}

	row, err := s.deps.Analyses.Get(dbc, n.ID, tab.Category)
	if err != nil {
		return nil, err
	}
	if row != nil && len(row.Base().Payload) > 0 {
		view.HasData = true
		view.Analysis = row
		view.Payload = json.RawMessage(row.Base().Payload)
	}

	products, err := s.deps.Products.GetByASINs(dbc, n.ASINList())
	if err != nil {
		return nil, err
	}
	view.Products = products

	switch tab.Category {
	case niches.CategoryKeyword:
		view.Keywords, err = s.deps.Keywords.ListByProductIDs(dbc, productIDs(products))
	case niches.CategoryMarketIntelligence:
		view.Reviews, err = s.deps.Reviews.ListByProductIDs(dbc, productIDs(products), s.reviewRows)
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

// TabByPath finds the analysis tab served at a URL segment.
func TabByPath(path string) (Tab, bool) {
	for _, t := range Tabs {
		if t.Path == path {
			return t, true
		}
	}
	return Tab{}, false
}

func productIDs(products []*types.Product) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		if p != nil {
			out = append(out, p.ID)
		}
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
