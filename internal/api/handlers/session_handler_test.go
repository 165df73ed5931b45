package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/hireloop/internal/broadcast"
	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

// stubSessions returns canned values; handler tests only exercise the HTTP
// mapping, not the state machine.
type stubSessions struct {
	session   *models.Session
	sessions  []models.Session
	start     *services.StartResult
	err       error
	signalErr error

	lastOrg    string
	lastSignal string
}

func (s *stubSessions) Create(_ context.Context, orgID, templateID string, _ models.SessionMetadata) (*models.Session, error) {
	s.lastOrg = orgID
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubSessions) Get(_ context.Context, orgID, _ string) (*models.Session, error) {
	s.lastOrg = orgID
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubSessions) List(_ context.Context, orgID string, _ int) ([]models.Session, error) {
	s.lastOrg = orgID
	if s.err != nil {
		return nil, s.err
	}
	return s.sessions, nil
}

func (s *stubSessions) Start(_ context.Context, orgID, _ string) (*services.StartResult, error) {
	s.lastOrg = orgID
	if s.err != nil {
		return nil, s.err
	}
	return s.start, nil
}

func (s *stubSessions) Cancel(_ context.Context, orgID, _ string) (*models.Session, error) {
	s.lastOrg = orgID
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubSessions) Transition(_ context.Context, _ string, _ models.SessionState, _ string) (*models.Session, error) {
	return s.session, s.err
}

func (s *stubSessions) HandleSignal(_ context.Context, _, signal string) error {
	s.lastSignal = signal
	return s.signalErr
}

func (s *stubSessions) Subscribe(_ context.Context, _ string) (*broadcast.Subscription, error) {
	return nil, s.err
}

type stubTranscripts struct {
	frag *models.TranscriptFragment
	err  error
}

func (s *stubTranscripts) Report(_ context.Context, _, _, _ string, _ int64) (*models.TranscriptFragment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.frag, nil
}

func (s *stubTranscripts) ListBySession(_ context.Context, _, _ string, _ int64) ([]models.TranscriptFragment, error) {
	return nil, s.err
}

func withOrg(orgID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("org_id", orgID)
		c.Next()
	}
}

func newSessionRouter(stub *stubSessions, orgID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSessionHandler(stub)

	r := gin.New()
	g := r.Group("/")
	if orgID != "" {
		g.Use(withOrg(orgID))
	}
	g.POST("/session", h.Create)
	g.GET("/sessions", h.List)
	g.GET("/session/:session_id", h.Get)
	g.POST("/session/:session_id/start", h.Start)
	g.POST("/session/:session_id/cancel", h.Cancel)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSessionEndpoint(t *testing.T) {
	stub := &stubSessions{session: &models.Session{ID: "s1", OrgID: "org-1", State: models.StatePending}}
	r := newSessionRouter(stub, "org-1")

	w := doJSON(t, r, http.MethodPost, "/session", gin.H{"template_id": "tpl-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "org-1", stub.lastOrg)

	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, models.StatePending, got.State)
}

func TestCreateSessionMissingTemplateID(t *testing.T) {
	stub := &stubSessions{}
	r := newSessionRouter(stub, "org-1")

	w := doJSON(t, r, http.MethodPost, "/session", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, utils.CodeInvalidArgument, apiErr.Code)
}

func TestCreateSessionWithoutOrg(t *testing.T) {
	stub := &stubSessions{}
	r := newSessionRouter(stub, "")

	w := doJSON(t, r, http.MethodPost, "/session", gin.H{"template_id": "tpl-1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStartEndpointAbsorbedFailureIs200(t *testing.T) {
	stub := &stubSessions{start: &services.StartResult{
		Session: &models.Session{ID: "s1", State: models.StateFailed, FailureReason: "worker capacity exhausted"},
	}}
	r := newSessionRouter(stub, "org-1")

	w := doJSON(t, r, http.MethodPost, "/session/s1/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got services.StartResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StateFailed, got.Session.State)
	assert.Empty(t, got.RoomURL)
}

func TestStartEndpointConflict(t *testing.T) {
	stub := &stubSessions{err: utils.E(utils.CodeInvalidTransition, "SessionService.Start", "session is ready, expected pending", nil)}
	r := newSessionRouter(stub, "org-1")

	w := doJSON(t, r, http.MethodPost, "/session/s1/start", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, utils.CodeInvalidTransition, apiErr.Code)
}

func TestGetEndpointNotFound(t *testing.T) {
	stub := &stubSessions{err: utils.E(utils.CodeNotFound, "SessionService.Get", "session not found", nil)}
	r := newSessionRouter(stub, "org-1")

	w := doJSON(t, r, http.MethodGet, "/session/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEndpoint(t *testing.T) {
	stub := &stubSessions{sessions: []models.Session{
		{ID: "s1", State: models.StateCompleted},
		{ID: "s2", State: models.StatePending},
	}}
	r := newSessionRouter(stub, "org-1")

	w := doJSON(t, r, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Sessions []models.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Sessions, 2)
}

func TestCancelEndpoint(t *testing.T) {
	stub := &stubSessions{session: &models.Session{ID: "s1", State: models.StateCancelled}}
	r := newSessionRouter(stub, "org-1")

	w := doJSON(t, r, http.MethodPost, "/session/s1/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StateCancelled, got.State)
}
