package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

type TemplateHandler struct {
	svc services.TemplateService
}

func NewTemplateHandler(svc services.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

type UpsertTemplateRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name" binding:"required"`
	Persona   string   `json:"persona"`
	Voice     string   `json:"voice"`
	Language  string   `json:"language"`
	Questions []string        `json:"questions"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func (h *TemplateHandler) Upsert(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	var req UpsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TemplateHandler.Upsert", "invalid request body", err))
		return
	}

	t := &models.InterviewTemplate{
		ID:        req.ID,
		OrgID:     orgID,
		Name:      req.Name,
		Persona:   req.Persona,
		Voice:     req.Voice,
		Language:  req.Language,
		Questions: pq.StringArray(req.Questions),
		Params:    datatypes.JSON(req.Params),
	}
	out, err := h.svc.Upsert(c.Request.Context(), t)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *TemplateHandler) List(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context(), orgID, 0)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": rows})
}
