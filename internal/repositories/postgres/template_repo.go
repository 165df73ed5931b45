package postgres

import (
	"context"
	"errors"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.InterviewTemplate, error)
	Upsert(ctx context.Context, t *models.InterviewTemplate) error
	ListByOrg(ctx context.Context, orgID string, limit int) ([]models.InterviewTemplate, error)
}

type templateRepo struct {
	db *gorm.DB
}

func NewTemplateRepo(db *gorm.DB) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) GetByID(ctx context.Context, id string) (*models.InterviewTemplate, error) {
	var t models.InterviewTemplate
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &t, err
}

func (r *templateRepo) Upsert(ctx context.Context, t *models.InterviewTemplate) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "persona", "voice", "language", "questions", "params", "updated_at"}),
		}).
		Create(t).Error
}

func (r *templateRepo) ListByOrg(ctx context.Context, orgID string, limit int) ([]models.InterviewTemplate, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.InterviewTemplate
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
