package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

type handlers struct {
	svc      Services
	hub      *LiveHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func (h *handlers) register(r *gin.RouterGroup) {
	projects := r.Group("/projects/:id")
	{
		projects.GET("", h.getProject)
		projects.POST("/transitions", h.advanceProject)
		projects.GET("/criteria", h.listCriteria)
		projects.PUT("/criteria", h.defineCriteria)
		projects.GET("/ranking/preview", h.previewRanking)
		projects.POST("/ranking/finalize", h.finalizeRanking)
		projects.GET("/ranking", h.getRanking)
		projects.POST("/complete", h.completeProject)
		projects.GET("/awards", h.getAwards)
		projects.GET("/live", h.live)
	}

	submissions := r.Group("/submissions/:id")
	{
		submissions.GET("/judgements", h.listJudgements)
		submissions.PUT("/judgements/:criterionId", h.recordJudgement)
	}
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

type transitionRequest struct {
	Event string `json:"event" binding:"required"`
}

type criteriaRequest struct {
	Criteria []domain.CriterionInput `json:"criteria"`
}

type judgementRequest struct {
	Score int    `json:"score"`
	Notes string `json:"notes" binding:"max=4000"`
}

type finalizeRequest struct {
	ManualOrder []string `json:"manual_order"`
}

type completeRequest struct {
	ManualOrder []string           `json:"manual_order"`
	Awards      map[string]*string `json:"awards"`
}

func (h *handlers) getProject(c *gin.Context) {
	p, err := h.svc.Lifecycle.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, p)
}

func (h *handlers) advanceProject(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	event, err := domain.ParseProjectEvent(req.Event)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	p, err := h.svc.Lifecycle.AdvanceProject(c.Request.Context(), principalFrom(c), c.Param("id"), event)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, p)
}

func (h *handlers) listCriteria(c *gin.Context) {
	criteria, err := h.svc.Criteria.ListCriteria(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, criteria)
}

func (h *handlers) defineCriteria(c *gin.Context) {
	var req criteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	criteria, err := h.svc.Criteria.DefineCriteria(c.Request.Context(), principalFrom(c), c.Param("id"), req.Criteria)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, criteria)
}

func (h *handlers) recordJudgement(c *gin.Context) {
	var req judgementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	j, err := h.svc.Judging.RecordJudgement(c.Request.Context(), principalFrom(c),
		c.Param("id"), c.Param("criterionId"), req.Score, req.Notes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, j)
}

func (h *handlers) listJudgements(c *gin.Context) {
	var judgeID *string
	if judge, ok := c.GetQuery("judge"); ok && judge != "" {
		judgeID = &judge
	}
	rows, err := h.svc.Judging.JudgementsForSubmission(c.Request.Context(), principalFrom(c), c.Param("id"), judgeID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, rows)
}

func (h *handlers) previewRanking(c *gin.Context) {
	entries, err := h.svc.Ranking.PreviewRanking(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, entries)
}

func (h *handlers) finalizeRanking(c *gin.Context) {
	var req finalizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	rankings, err := h.svc.Ranking.FinalizeRanking(c.Request.Context(), principalFrom(c), c.Param("id"), req.ManualOrder)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, rankings)
}

func (h *handlers) completeProject(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	p, err := h.svc.Lifecycle.CompleteProject(c.Request.Context(), principalFrom(c), c.Param("id"), req.ManualOrder, req.Awards)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, p)
}

func (h *handlers) getRanking(c *gin.Context) {
	rankings, err := h.svc.Lifecycle.GetRanking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, rankings)
}

func (h *handlers) getAwards(c *gin.Context) {
	awards, err := h.svc.Lifecycle.GetAwards(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	success(c, http.StatusOK, awards)
}

// live upgrades an admin connection to the project's judging feed.
func (h *handlers) live(c *gin.Context) {
	principal := principalFrom(c)
	if err := domain.RequireRole(principal, "watch live judging", domain.RoleAdmin); err != nil {
		writeError(c, h.logger, err)
		return
	}
	projectID := c.Param("id")
	if _, err := h.svc.Lifecycle.GetProject(c.Request.Context(), projectID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "project_id", projectID, "error", err)
		return
	}
	h.hub.Serve(projectID, principal.ID, conn)
}
