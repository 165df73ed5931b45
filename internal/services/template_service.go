package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/hireloop/internal/cache"
	"github.com/hireloop/hireloop/internal/models"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/utils"
)

const templateCacheTTL = 5 * time.Minute

// TemplateService resolves interview behavior templates. Read path is
// cache-aside over redis since every session create and start hits it.
type TemplateService interface {
	Resolve(ctx context.Context, templateID string) (*models.InterviewTemplate, error)
	Upsert(ctx context.Context, t *models.InterviewTemplate) (*models.InterviewTemplate, error)
	List(ctx context.Context, orgID string, limit int) ([]models.InterviewTemplate, error)
}

type templateService struct {
	templates pgrepo.TemplateRepository
	cache     cache.Cache // optional
}

func NewTemplateService(templates pgrepo.TemplateRepository, c cache.Cache) TemplateService {
	return &templateService{templates: templates, cache: c}
}

func cacheKey(id string) string { return "template:" + id }

func (s *templateService) Resolve(ctx context.Context, templateID string) (*models.InterviewTemplate, error) {
	const op = "TemplateService.Resolve"

	if templateID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "template_id is required", nil)
	}

	if s.cache != nil {
		var cached models.InterviewTemplate
		if hit, err := s.cache.GetJSON(ctx, cacheKey(templateID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	t, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "template not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get template", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cacheKey(templateID), t, templateCacheTTL)
	}
	return t, nil
}

func (s *templateService) Upsert(ctx context.Context, t *models.InterviewTemplate) (*models.InterviewTemplate, error) {
	const op = "TemplateService.Upsert"

	if t == nil || t.OrgID == "" || t.Name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "org_id and name are required", nil)
	}

	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	if err := s.templates.Upsert(ctx, t); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to upsert template", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, cacheKey(t.ID))
	}
	return t, nil
}

func (s *templateService) List(ctx context.Context, orgID string, limit int) ([]models.InterviewTemplate, error) {
	const op = "TemplateService.List"

	if orgID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "org_id is required", nil)
	}
	rows, err := s.templates.ListByOrg(ctx, orgID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list templates", err)
	}
	return rows, nil
}
