package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/http/middleware"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/services"
)

type fakeNicheService struct {
	processed  []services.ProcessInput
	processErr error
	exports    int
}

func (f *fakeNicheService) Process(ctx context.Context, in services.ProcessInput) (*services.QueuedNiche, error) {
	if f.processErr != nil {
		return nil, f.processErr
	}
	f.processed = append(f.processed, in)
	return &services.QueuedNiche{ID: "kitchen_1", Name: in.NicheName, Slug: "kitchen", ASINCount: len(in.ASINs), Status: niches.StatusPending}, nil
}

func (f *fakeNicheService) Get(ctx context.Context, id string) (*types.Niche, error) {
	if id != "kitchen_1" {
		return nil, fmt.Errorf("niche %q: %w", id, apperrors.ErrNotFound)
	}
	n := &types.Niche{ID: id, NicheName: "Kitchen", Slug: "kitchen", Status: niches.StatusCompleted}
	n.SetASINs([]string{"B000000001"})
	return n, nil
}

func (f *fakeNicheService) Status(ctx context.Context, id string) (*services.NicheStatus, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return &services.NicheStatus{ID: id, Status: niches.StatusProcessing, TotalProducts: 4, CompletedProducts: 2}, nil
}

func (f *fakeNicheService) Reset(ctx context.Context, id string) (*types.Niche, error) {
	return f.Get(ctx, id)
}

func (f *fakeNicheService) Analysis(ctx context.Context, id string, tab services.Tab) (*services.AnalysisView, error) {
	n, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &services.AnalysisView{Niche: n, Tab: tab}, nil
}

func (f *fakeNicheService) Export(ctx context.Context, id, format string) (*services.ExportFile, error) {
	if format != services.ExportCSV && format != services.ExportJSON {
		return nil, fmt.Errorf("unsupported format %q: %w", format, apperrors.ErrValidation)
	}
	f.exports++
	return &services.ExportFile{Filename: "niche-kitchen-export.csv", ContentType: "text/csv", Data: []byte("asin\nB000000001\n")}, nil
}

func newNicheRouter(t *testing.T, svc services.NicheService) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService(logger.Nop(), "test-secret", "")
	am := middleware.NewAuthMiddleware(logger.Nop(), auth)
	h := NewNicheHandlerWithDeps(NicheHandlerDeps{Niches: svc})

	r := gin.New()
	api := r.Group("/api", am.RequireAuth())
	api.POST("/niches/process", h.Process)
	api.GET("/niches/process", h.ProcessStatus)
	api.GET("/niches/:id", h.GetNiche)
	api.GET("/niches/:id/export", am.RequireTier(services.TierPro), h.Export)
	for _, tab := range services.Tabs {
		api.GET("/niches/:id/"+tab.Path, h.Tab(tab))
	}
	return r, auth
}

func bearer(t *testing.T, auth services.AuthService, rd ctxutil.RequestData) string {
	t.Helper()
	tok, err := auth.IssueToken(rd, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return "Bearer " + tok
}

func TestProcessNicheAccepted(t *testing.T) {
	svc := &fakeNicheService{}
	r, auth := newNicheRouter(t, svc)

	body := `{"nicheName":"Kitchen","asins":["B000000001","B000000002"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/niches/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, auth, ctxutil.RequestData{UserID: "u1"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		Success bool `json:"success"`
		Niche   struct {
			ID        string `json:"id"`
			ASINCount int    `json:"asinCount"`
			Status    string `json:"status"`
		} `json:"niche"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.Niche.ID != "kitchen_1" || got.Niche.ASINCount != 2 || got.Niche.Status != niches.StatusPending {
		t.Fatalf("body = %+v", got)
	}
	if len(svc.processed) != 1 || svc.processed[0].UserID != "u1" {
		t.Fatalf("processed = %+v", svc.processed)
	}
}

func TestProcessNicheErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed body", `{"asins":`, nil, http.StatusBadRequest},
		{"validation", `{"nicheName":"x","asins":[]}`, apperrors.ErrValidation, http.StatusBadRequest},
		{"already processing", `{"nicheName":"x","asins":["B000000001"]}`, apperrors.ErrConflict, http.StatusConflict},
		{"database down", `{"nicheName":"x","asins":["B000000001"]}`, fmt.Errorf("pq: connection refused: %w", apperrors.ErrPersistence), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, auth := newNicheRouter(t, &fakeNicheService{processErr: tc.err})
			req := httptest.NewRequest(http.MethodPost, "/api/niches/process", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", bearer(t, auth, ctxutil.RequestData{UserID: "u1"}))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "pq:") {
				t.Fatalf("driver error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestNicheRequiresAuth(t *testing.T) {
	r, _ := newNicheRouter(t, &fakeNicheService{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/niches/kitchen_1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessStatusAndMissingNiche(t *testing.T) {
	r, auth := newNicheRouter(t, &fakeNicheService{})
	h := bearer(t, auth, ctxutil.RequestData{UserID: "u1"})

	for path, want := range map[string]int{
		"/api/niches/process?nicheId=kitchen_1": http.StatusOK,
		"/api/niches/process":                   http.StatusBadRequest,
		"/api/niches/process?nicheId=nope":      http.StatusNotFound,
		"/api/niches/nope":                      http.StatusNotFound,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", h)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: status = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestTabWithoutAnalysisReturnsNullKey(t *testing.T) {
	r, auth := newNicheRouter(t, &fakeNicheService{})
	req := httptest.NewRequest(http.MethodGet, "/api/niches/kitchen_1/competition", nil)
	req.Header.Set("Authorization", bearer(t, auth, ctxutil.RequestData{UserID: "u1"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, ok := got["competitionAnalysis"]; !ok || string(v) != "null" {
		t.Fatalf("competitionAnalysis = %q (present=%v)", v, ok)
	}
	if string(got["hasData"]) != "false" {
		t.Fatalf("hasData = %s", got["hasData"])
	}
}

func TestExportTierGate(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	cases := []struct {
		name     string
		rd       ctxutil.RequestData
		want     int
		linkKey  string
		exported bool
	}{
		{"free", ctxutil.RequestData{UserID: "u1", Tier: "free"}, http.StatusForbidden, "upgradeUrl", false},
		{"lapsed pro", ctxutil.RequestData{UserID: "u1", Tier: "pro", SubscriptionExpiresAt: &past}, http.StatusForbidden, "renewUrl", false},
		{"pro", ctxutil.RequestData{UserID: "u1", Tier: "pro"}, http.StatusOK, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeNicheService{}
			r, auth := newNicheRouter(t, svc)
			req := httptest.NewRequest(http.MethodGet, "/api/niches/kitchen_1/export?format=csv", nil)
			req.Header.Set("Authorization", bearer(t, auth, tc.rd))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if (svc.exports == 1) != tc.exported {
				t.Fatalf("exports = %d", svc.exports)
			}
			if !tc.exported {
				if rec.Header().Get("Content-Disposition") != "" {
					t.Fatalf("denied response carried a file")
				}
				var got map[string]any
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if _, ok := got[tc.linkKey]; !ok {
					t.Fatalf("missing %s in %v", tc.linkKey, got)
				}
				return
			}
			if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="niche-kitchen-export.csv"` {
				t.Fatalf("Content-Disposition = %q", cd)
			}
			if rec.Header().Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
				t.Fatalf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	r, auth := newNicheRouter(t, &fakeNicheService{})
	req := httptest.NewRequest(http.MethodGet, "/api/niches/kitchen_1/export?format=xml", nil)
	req.Header.Set("Authorization", bearer(t, auth, ctxutil.RequestData{UserID: "u1", Tier: "enterprise"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
