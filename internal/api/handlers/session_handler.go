package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

type SessionHandler struct {
	svc services.SessionService
}

func NewSessionHandler(svc services.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionRequest struct {
	TemplateID string                 `json:"template_id" binding:"required"`
	Metadata   models.SessionMetadata `json:"metadata"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "invalid request body", err))
		return
	}

	sess, err := h.svc.Create(c.Request.Context(), orgID, req.TemplateID, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sess)
}

// Start blocks through room and worker provisioning. A provisioning failure
// comes back as HTTP 200 with state=failed; the session record carries the
// reason.
func (h *SessionHandler) Start(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	res, err := h.svc.Start(c.Request.Context(), orgID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *SessionHandler) Cancel(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	sess, err := h.svc.Cancel(c.Request.Context(), orgID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) Get(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	sess, err := h.svc.Get(c.Request.Context(), orgID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) List(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context(), orgID, 0)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": rows})
}
