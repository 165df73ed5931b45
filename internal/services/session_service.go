package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/hireloop/hireloop/internal/archive"
	"github.com/hireloop/hireloop/internal/broadcast"
	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/providers/compute"
	"github.com/hireloop/hireloop/internal/providers/room"
	mongorepo "github.com/hireloop/hireloop/internal/repositories/mongo"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/utils"
)

// Worker signals accepted on the callback channel.
const (
	SignalConnected = "connected"
	SignalCompleted = "completed"
	SignalFailed    = "failed"
)

// WorkerPool is the slice of the pool the session service drives.
type WorkerPool interface {
	Acquire(ctx context.Context, sessionID string) (compute.Handle, error)
	Release(ctx context.Context, sessionID string)
}

// StartResult is what a successful (or absorbed-failure) start returns. When
// provisioning fails the session comes back with state=failed and empty
// room/token fields; the record itself carries the error.
type StartResult struct {
	Session          *models.Session `json:"session"`
	RoomURL          string          `json:"room_url,omitempty"`
	ParticipantToken string          `json:"participant_token,omitempty"`
	AgentToken       string          `json:"agent_token,omitempty"`
}

// SessionService is the session state machine and the only component allowed
// to mutate session state. All other components are told about state changes
// through it.
type SessionService interface {
	Create(ctx context.Context, orgID, templateID string, md models.SessionMetadata) (*models.Session, error)
	Get(ctx context.Context, orgID, sessionID string) (*models.Session, error)
	List(ctx context.Context, orgID string, limit int) ([]models.Session, error)
	Start(ctx context.Context, orgID, sessionID string) (*StartResult, error)
	Cancel(ctx context.Context, orgID, sessionID string) (*models.Session, error)
	Transition(ctx context.Context, sessionID string, target models.SessionState, reason string) (*models.Session, error)
	HandleSignal(ctx context.Context, sessionID, signal string) error
	Subscribe(ctx context.Context, sessionID string) (*broadcast.Subscription, error)
}

type sessionService struct {
	sessions  pgrepo.SessionRepository
	templates TemplateService
	fragments mongorepo.FragmentRepository
	pool      WorkerPool
	rooms     room.Provider
	hub       *broadcast.Hub
	sink      archive.Sink // optional
	log       *logrus.Entry

	// locks serializes all mutations per session so concurrent transitions
	// never both succeed against a stale read.
	locks sync.Map // session id -> *sync.Mutex
}

// SessionServiceDeps wires a sessionService. Sink may be nil (archival off).
type SessionServiceDeps struct {
	Sessions  pgrepo.SessionRepository
	Templates TemplateService
	Fragments mongorepo.FragmentRepository
	Pool      WorkerPool
	Rooms     room.Provider
	Hub       *broadcast.Hub
	Sink      archive.Sink
	Log       *logrus.Entry
}

func NewSessionService(d SessionServiceDeps) SessionService {
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.New())
	}
	return &sessionService{
		sessions:  d.Sessions,
		templates: d.Templates,
		fragments: d.Fragments,
		pool:      d.Pool,
		rooms:     d.Rooms,
		hub:       d.Hub,
		sink:      d.Sink,
		log:       d.Log,
	}
}

func (s *sessionService) lockFor(sessionID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *sessionService) Create(ctx context.Context, orgID, templateID string, md models.SessionMetadata) (*models.Session, error) {
	const op = "SessionService.Create"

	if orgID == "" || templateID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "org_id and template_id are required", nil)
	}
	if _, err := s.templates.Resolve(ctx, templateID); err != nil {
		if utils.IsCode(err, utils.CodeNotFound) || errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "interview template not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to resolve template", err)
	}

	raw, _ := json.Marshal(md)
	sess := &models.Session{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		TemplateID: templateID,
		State:      models.StatePending,
		Metadata:   datatypes.JSON(raw),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	s.log.WithFields(logrus.Fields{"session_id": sess.ID, "org_id": orgID}).Info("session created")
	return sess, nil
}

func (s *sessionService) Get(ctx context.Context, orgID, sessionID string) (*models.Session, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if orgID != "" && sess.OrgID != orgID {
		// Cross-tenant reads surface as not found, not forbidden.
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	return sess, nil
}

func (s *sessionService) List(ctx context.Context, orgID string, limit int) ([]models.Session, error) {
	const op = "SessionService.List"

	if orgID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "org_id is required", nil)
	}
	rows, err := s.sessions.ListByOrg(ctx, orgID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	return rows, nil
}

// Transition applies one edge of the state table atomically with respect to
// concurrent callers on the same session. Timestamps are side effects of the
// transition, never set by callers.
func (s *sessionService) Transition(ctx context.Context, sessionID string, target models.SessionState, reason string) (*models.Session, error) {
	const op = "SessionService.Transition"

	if !target.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown target state", nil)
	}

	lk := s.lockFor(sessionID)
	lk.Lock()
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		lk.Unlock()
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}

	if !models.CanTransition(sess.State, target) {
		from := sess.State
		lk.Unlock()
		return nil, utils.E(utils.CodeInvalidTransition, op,
			"illegal transition "+string(from)+" -> "+string(target), nil)
	}

	now := time.Now().UTC()
	sess.State = target
	if target == models.StateActive && sess.StartedAt == nil {
		sess.StartedAt = &now
	}
	if target.IsTerminal() {
		sess.CompletedAt = &now
		if sess.StartedAt != nil {
			d := int64(now.Sub(*sess.StartedAt).Seconds())
			if d < 0 {
				d = 0
			}
			sess.DurationSeconds = &d
		}
		if target == models.StateFailed && reason != "" {
			sess.FailureReason = reason
		}
	}

	if err := s.sessions.Update(ctx, sess); err != nil {
		lk.Unlock()
		return nil, utils.E(utils.CodeInternal, op, "failed to persist transition", err)
	}
	lk.Unlock()

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"state":      target,
	}).Info("session transitioned")

	if target.IsTerminal() {
		s.afterTerminal(sess)
	}
	return sess, nil
}

// afterTerminal tells the collaborators about the terminal transition: the
// topic is closed with a final marker, the worker goes back to the pool, the
// room is torn down, and the transcript is archived.
func (s *sessionService) afterTerminal(sess *models.Session) {
	s.hub.CloseTopic(sess.ID)
	s.locks.Delete(sess.ID)

	id := sess.ID
	roomName := sess.RoomName
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s.pool.Release(ctx, id)
		if roomName != nil && *roomName != "" {
			if err := s.rooms.DeleteRoom(ctx, room.Room{Name: *roomName}); err != nil {
				s.log.WithError(err).WithField("session_id", id).Warn("room teardown failed")
			}
		}
	}()

	if s.sink == nil || s.fragments == nil {
		return
	}
	sessCopy := *sess
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		frags, err := s.fragments.ListBySession(ctx, sessCopy.ID, 0)
		if err != nil {
			s.log.WithError(err).WithField("session_id", sessCopy.ID).Warn("transcript assembly failed")
			return
		}
		url, err := s.sink.Archive(ctx, &sessCopy, frags)
		if err != nil {
			s.log.WithError(err).WithField("session_id", sessCopy.ID).Warn("transcript archive failed")
			return
		}
		s.log.WithFields(logrus.Fields{
			"session_id": sessCopy.ID,
			"url":        url,
			"fragments":  len(frags),
		}).Info("transcript archived")
	}()
}

// Start provisions a room and a worker for a pending session and drives it to
// ready. Provisioning errors are absorbed into a terminal failed state; the
// returned session is then the error-carrying artifact.
func (s *sessionService) Start(ctx context.Context, orgID, sessionID string) (*StartResult, error) {
	const op = "SessionService.Start"

	sess, err := s.Get(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != models.StatePending {
		return nil, utils.E(utils.CodeInvalidTransition, op,
			"session is "+string(sess.State)+", expected pending", nil)
	}

	// Template must still resolve; a dangling ref is a provisioning failure.
	if _, err := s.templates.Resolve(ctx, sess.TemplateID); err != nil {
		return s.failProvisioning(ctx, sessionID, "interview template no longer resolves", err)
	}

	rm, err := s.rooms.CreateRoom(ctx, sessionID)
	if err != nil {
		return s.failProvisioning(ctx, sessionID, "media room provisioning failed", err)
	}

	participantToken, err := s.rooms.IssueAccessToken(ctx, rm, room.RoleParticipant)
	if err != nil {
		return s.failProvisioning(ctx, sessionID, "participant token issuance failed", err)
	}
	agentToken, err := s.rooms.IssueAccessToken(ctx, rm, room.RoleAgent)
	if err != nil {
		return s.failProvisioning(ctx, sessionID, "agent token issuance failed", err)
	}

	// Slow path may block for seconds; cancellation races are settled by the
	// transition below.
	worker, err := s.pool.Acquire(ctx, sessionID)
	if err != nil {
		reason := "worker provisioning failed"
		if utils.IsCode(err, utils.CodeCapacity) {
			reason = "worker capacity exhausted"
		}
		res, ferr := s.failProvisioning(ctx, sessionID, reason, err)
		if ferr == nil {
			go s.teardownRoom(rm)
		}
		return res, ferr
	}

	sess, err = s.bindAndReady(ctx, sessionID, worker.ID, rm.Name)
	if err != nil {
		// Lost the race (e.g. cancelled mid-provisioning): give everything back.
		s.pool.Release(context.WithoutCancel(ctx), sessionID)
		go s.teardownRoom(rm)
		return nil, err
	}

	return &StartResult{
		Session:          sess,
		RoomURL:          rm.URL,
		ParticipantToken: participantToken,
		AgentToken:       agentToken,
	}, nil
}

// bindAndReady records the provisioned worker and room on the session and
// applies pending -> ready under the per-session lock, so a concurrent cancel
// is arbitrated by the transition table.
func (s *sessionService) bindAndReady(ctx context.Context, sessionID, workerID, roomName string) (*models.Session, error) {
	const op = "SessionService.Start"

	lk := s.lockFor(sessionID)
	lk.Lock()
	defer lk.Unlock()

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if !models.CanTransition(sess.State, models.StateReady) {
		return nil, utils.E(utils.CodeInvalidTransition, op,
			"illegal transition "+string(sess.State)+" -> ready", nil)
	}

	sess.State = models.StateReady
	sess.WorkerID = &workerID
	sess.RoomName = &roomName
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist transition", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"worker_id":  workerID,
		"room":       roomName,
	}).Info("session ready")
	return sess, nil
}

// failProvisioning folds a provisioning-class error into a terminal failed
// transition. The start call then reports success with state=failed rather
// than surfacing a bare exception.
func (s *sessionService) failProvisioning(ctx context.Context, sessionID, reason string, cause error) (*StartResult, error) {
	s.log.WithError(cause).WithField("session_id", sessionID).Error(reason)

	sess, err := s.Transition(ctx, sessionID, models.StateFailed, reason)
	if err != nil {
		// A concurrent cancel may have won; the record is already terminal.
		if utils.IsCode(err, utils.CodeInvalidTransition) {
			if cur, gerr := s.sessions.GetByID(ctx, sessionID); gerr == nil {
				return &StartResult{Session: cur}, nil
			}
		}
		return nil, err
	}
	return &StartResult{Session: sess}, nil
}

func (s *sessionService) teardownRoom(rm room.Room) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.rooms.DeleteRoom(ctx, rm); err != nil {
		s.log.WithError(err).WithField("room", rm.Name).Warn("room teardown failed")
	}
}

func (s *sessionService) Cancel(ctx context.Context, orgID, sessionID string) (*models.Session, error) {
	if _, err := s.Get(ctx, orgID, sessionID); err != nil {
		return nil, err
	}
	return s.Transition(ctx, sessionID, models.StateCancelled, "")
}

// HandleSignal maps a worker-reported signal onto a state transition. The
// transition table remains the sole arbiter; a stale or duplicate signal gets
// an InvalidTransition back.
func (s *sessionService) HandleSignal(ctx context.Context, sessionID, signal string) error {
	const op = "SessionService.HandleSignal"

	var target models.SessionState
	var reason string
	switch signal {
	case SignalConnected:
		target = models.StateActive
	case SignalCompleted:
		target = models.StateCompleted
	case SignalFailed:
		target = models.StateFailed
		reason = "worker reported runtime failure"
	default:
		return utils.E(utils.CodeInvalidArgument, op, "unknown signal "+signal, nil)
	}

	_, err := s.Transition(ctx, sessionID, target, reason)
	return err
}

// Subscribe attaches a transcript subscriber after verifying the session
// exists and is not already terminal. Late joins to a finished session are
// rejected, not silently accepted.
func (s *sessionService) Subscribe(ctx context.Context, sessionID string) (*broadcast.Subscription, error) {
	const op = "SessionService.Subscribe"

	sess, err := s.Get(ctx, "", sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State.IsTerminal() {
		return nil, utils.E(utils.CodeNotFound, op, "session already closed", nil)
	}
	return s.hub.Subscribe(sessionID), nil
}
