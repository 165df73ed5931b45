package postgres

import (
	"context"
	"errors"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/utils"
	"gorm.io/gorm"
)

// SessionRepository is the session store contract. The state machine is the
// only writer; repositories never interpret states.
type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, s *models.Session) error
	ListByOrg(ctx context.Context, orgID string, limit int) ([]models.Session, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) Update(ctx context.Context, s *models.Session) error {
	res := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"state":            s.State,
			"worker_id":        s.WorkerID,
			"room_name":        s.RoomName,
			"failure_reason":   s.FailureReason,
			"started_at":       s.StartedAt,
			"completed_at":     s.CompletedAt,
			"duration_seconds": s.DurationSeconds,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) ListByOrg(ctx context.Context, orgID string, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Session
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
