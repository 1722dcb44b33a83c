package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/commercecrafted-backend/internal/http/response"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/services"
)

type NicheHandlerDeps struct {
	Log    *logger.Logger
	Niches services.NicheService
}

type NicheHandler struct {
	log    *logger.Logger
	niches services.NicheService
}

func NewNicheHandlerWithDeps(deps NicheHandlerDeps) *NicheHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &NicheHandler{log: log.With("handler", "NicheHandler"), niches: deps.Niches}
}

type processRequest struct {
	NicheID     string   `json:"nicheId"`
	NicheName   string   `json:"nicheName"`
	ASINs       []string `json:"asins"`
	Marketplace string   `json:"marketplace"`
}

// POST /api/niches/process
func (h *NicheHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("required: nicheName, asins array"))
		return
	}
	in := services.ProcessInput{
		NicheID:     req.NicheID,
		NicheName:   req.NicheName,
		ASINs:       req.ASINs,
		Marketplace: req.Marketplace,
	}
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		in.UserID = rd.UserID
	}
	q, err := h.niches.Process(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"niche":   q,
		"message": "Niche processing started successfully",
	})
}

// GET /api/niches/process?nicheId=
func (h *NicheHandler) ProcessStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Query("nicheId"))
	if id == "" {
		response.RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("nicheId parameter required"))
		return
	}
	st, err := h.niches.Status(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "niche": st})
}

// GET /api/niches/:id
func (h *NicheHandler) GetNiche(c *gin.Context) {
	n, err := h.niches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"niche": n, "asins": n.ASINList()})
}

// Tab serves GET /api/niches/:id/<tab> for one analysis category.
func (h *NicheHandler) Tab(tab services.Tab) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := h.niches.Analysis(c.Request.Context(), c.Param("id"), tab)
		if err != nil {
			response.RespondErr(c, err)
			return
		}
		body := gin.H{
			"niche":    view.Niche,
			tab.Key:    nil,
			"hasData":  view.HasData,
			"products": view.Products,
		}
		if view.HasData {
			body[tab.Key] = view.Payload
			body["summary"] = view.Analysis
			body["analysisDate"] = view.Analysis.Base().AnalysisDate
		}
		if view.Keywords != nil {
			body["keywords"] = view.Keywords
		}
		if view.Reviews != nil {
			body["reviews"] = view.Reviews
		}
		response.RespondOK(c, body)
	}
}

// POST /api/niches/:id/reset
func (h *NicheHandler) Reset(c *gin.Context) {
	n, err := h.niches.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "niche": gin.H{"id": n.ID, "status": n.Status, "runEpoch": n.RunEpoch}})
}

// GET /api/niches/:id/export?format=json|csv
func (h *NicheHandler) Export(c *gin.Context) {
	file, err := h.niches.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", services.ExportJSON))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
