package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

// WorkerHandler is the callback surface consumed by conversational workers.
// Routes are guarded by the worker token middleware, not end-user JWTs.
type WorkerHandler struct {
	sessions    services.SessionService
	transcripts services.TranscriptService
}

func NewWorkerHandler(sessions services.SessionService, transcripts services.TranscriptService) *WorkerHandler {
	return &WorkerHandler{sessions: sessions, transcripts: transcripts}
}

type ReportFragmentRequest struct {
	Speaker  string `json:"speaker" binding:"required"` // agent|participant
	Text     string `json:"text" binding:"required"`
	OffsetMS int64  `json:"offset_ms"`
}

func (h *WorkerHandler) ReportFragment(c *gin.Context) {
	var req ReportFragmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WorkerHandler.ReportFragment", "invalid request body", err))
		return
	}

	frag, err := h.transcripts.Report(c.Request.Context(), c.Param("session_id"), req.Speaker, req.Text, req.OffsetMS)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"seq": frag.Seq})
}

type ReportSignalRequest struct {
	Signal string `json:"signal" binding:"required"` // connected|completed|failed
}

func (h *WorkerHandler) ReportSignal(c *gin.Context) {
	var req ReportSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WorkerHandler.ReportSignal", "invalid request body", err))
		return
	}

	if err := h.sessions.HandleSignal(c.Request.Context(), c.Param("session_id"), req.Signal); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
