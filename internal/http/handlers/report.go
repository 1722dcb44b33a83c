package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/commercecrafted-backend/internal/http/response"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/services"
)

type ReportHandlerDeps struct {
	Log     *logger.Logger
	Reports services.ReportService
}

type ReportHandler struct {
	log     *logger.Logger
	reports services.ReportService
}

func NewReportHandlerWithDeps(deps ReportHandlerDeps) *ReportHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &ReportHandler{log: log.With("handler", "ReportHandler"), reports: deps.Reports}
}

type reportRequest struct {
	Type          string `json:"type"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	MarketplaceID string `json:"marketplaceId"`
}

// POST /api/reports/request
func (h *ReportHandler) Request(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("required: type, startDate, endDate"))
		return
	}
	in := services.ReportRequest{
		Type:          req.Type,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		MarketplaceID: req.MarketplaceID,
	}
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		in.UserID = rd.UserID
	}
	rep, err := h.reports.Request(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"reportId":      rep.ID,
		"message":       "Report requested. Processing will continue in the background.",
		"estimatedTime": services.EstimatedReportTime,
	})
}

// GET /api/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	rep, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": rep})
}

// POST /api/reports/polling/start
func (h *ReportHandler) StartPolling(c *gin.Context) {
	st, started := h.reports.StartPolling(c.Request.Context())
	msg := "Report polling started"
	if !started {
		msg = "Report polling already running"
	}
	response.RespondOK(c, gin.H{"success": true, "message": msg, "status": st})
}

// POST /api/reports/polling/stop
func (h *ReportHandler) StopPolling(c *gin.Context) {
	st, stopped := h.reports.StopPolling()
	msg := "Report polling stopped"
	if !stopped {
		msg = "Report polling was not running"
	}
	response.RespondOK(c, gin.H{"success": true, "message": msg, "status": st})
}

// GET /api/reports/polling/status
func (h *ReportHandler) PollingStatus(c *gin.Context) {
	response.RespondOK(c, gin.H{"status": h.reports.PollingStatus()})
}
