// Package memory provides an in-memory SessionRepository for tests and
// single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/utils"
)

type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

var _ postgres.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]models.Session)}
}

func (r *SessionRepo) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return utils.E(utils.CodeConflict, "memory.SessionRepo.Create", "duplicate session id", nil)
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *SessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := s
	return &out, nil
}

func (r *SessionRepo) Update(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return utils.ErrNotFound
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *SessionRepo) ListByOrg(_ context.Context, orgID string, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []models.Session
	for _, s := range r.sessions {
		if s.OrgID == orgID {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
