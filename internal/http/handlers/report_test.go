package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/http/middleware"
	"github.com/yungbote/commercecrafted-backend/internal/modules/reports"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/services"
)

type fakeReportService struct {
	id      uuid.UUID
	running bool
	last    services.ReportRequest
}

func (f *fakeReportService) Request(ctx context.Context, in services.ReportRequest) (*types.AmazonReport, error) {
	if in.StartDate == "" || in.EndDate == "" {
		return nil, fmt.Errorf("dates required: %w", apperrors.ErrValidation)
	}
	f.last = in
	return &types.AmazonReport{ID: f.id, ReportType: in.Type, Status: "PENDING"}, nil
}

func (f *fakeReportService) Get(ctx context.Context, id string) (*types.AmazonReport, error) {
	if id != f.id.String() {
		return nil, apperrors.ErrNotFound
	}
	return &types.AmazonReport{ID: f.id, Status: "DONE"}, nil
}

func (f *fakeReportService) StartPolling(ctx context.Context) (reports.LoopStatus, bool) {
	was := f.running
	f.running = true
	return reports.LoopStatus{Running: true}, !was
}

func (f *fakeReportService) StopPolling() (reports.LoopStatus, bool) {
	was := f.running
	f.running = false
	return reports.LoopStatus{}, was
}

func (f *fakeReportService) PollingStatus() reports.LoopStatus {
	return reports.LoopStatus{Running: f.running}
}

func newReportRouter(t *testing.T, svc services.ReportService) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService(logger.Nop(), "test-secret", "")
	am := middleware.NewAuthMiddleware(logger.Nop(), auth)
	h := NewReportHandlerWithDeps(ReportHandlerDeps{Reports: svc})

	r := gin.New()
	api := r.Group("/api", am.RequireAuth())
	api.POST("/reports/request", h.Request)
	api.GET("/reports/:id", h.GetReport)
	admin := api.Group("/reports/polling", am.RequireAdmin())
	admin.POST("/start", h.StartPolling)
	admin.POST("/stop", h.StopPolling)
	admin.GET("/status", h.PollingStatus)
	return r, auth
}

func TestRequestReport(t *testing.T) {
	svc := &fakeReportService{id: uuid.New()}
	r, auth := newReportRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/reports/request",
		strings.NewReader(`{"type":"SEARCH_TERMS","startDate":"2024-01-07","endDate":"2024-01-13","marketplaceId":"ATVPDKIKX0DER"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, auth, ctxutil.RequestData{UserID: "u1"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.last.Type != "SEARCH_TERMS" || svc.last.MarketplaceID != "ATVPDKIKX0DER" || svc.last.UserID != "u1" {
		t.Fatalf("service saw %+v", svc.last)
	}
	var got struct {
		Success       bool   `json:"success"`
		ReportID      string `json:"reportId"`
		EstimatedTime string `json:"estimatedTime"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.ReportID != svc.id.String() || got.EstimatedTime != services.EstimatedReportTime {
		t.Fatalf("body = %+v", got)
	}
}

func TestGetReportStatuses(t *testing.T) {
	svc := &fakeReportService{id: uuid.New()}
	r, auth := newReportRouter(t, svc)
	h := bearer(t, auth, ctxutil.RequestData{UserID: "u1"})

	for path, want := range map[string]int{
		"/api/reports/" + svc.id.String():  http.StatusOK,
		"/api/reports/" + uuid.NewString(): http.StatusNotFound,
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

func TestPollingControlIsAdminOnly(t *testing.T) {
	svc := &fakeReportService{id: uuid.New()}
	r, auth := newReportRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/reports/polling/start", nil)
	req.Header.Set("Authorization", bearer(t, auth, ctxutil.RequestData{UserID: "u1", Role: "user"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || svc.running {
		t.Fatalf("non-admin start: status=%d running=%v", rec.Code, svc.running)
	}

	admin := bearer(t, auth, ctxutil.RequestData{UserID: "a1", Role: "ADMIN"})
	for _, step := range []struct {
		method, path string
		running      bool
	}{
		{http.MethodPost, "/api/reports/polling/start", true},
		{http.MethodGet, "/api/reports/polling/status", true},
		{http.MethodPost, "/api/reports/polling/stop", false},
	} {
		req := httptest.NewRequest(step.method, step.path, nil)
		req.Header.Set("Authorization", admin)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || svc.running != step.running {
			t.Fatalf("%s: status=%d running=%v", step.path, rec.Code, svc.running)
		}
	}
}
