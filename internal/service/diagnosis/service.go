package diagnosis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	"github.com/jwalitptl/pharmacy-api/internal/service/audit"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/validator"
)

type Service interface {
	CreateDiagnosis(ctx context.Context, subject access.Subject, req *model.DiagnosisRequest) (*model.Diagnosis, error)
	GetDiagnosis(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.Diagnosis, error)
	UpdateDiagnosis(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.DiagnosisRequest) (*model.Diagnosis, error)
	DeleteDiagnosis(ctx context.Context, subject access.Subject, id uuid.UUID) error
	ListDiagnoses(ctx context.Context, subject access.Subject, filter model.DiagnosisFilter) (*model.DiagnosisList, error)
	CountDiagnoses(ctx context.Context, primaryOnly bool) (int64, error)
}

type Auditor interface {
	Log(ctx context.Context, actor, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions) error
}

type service struct {
	tx      repository.Transactor
	repo    repository.DiagnosisRepository
	recipes repository.RecipeRepository
	auditor Auditor
	today   func() model.Date
}

func NewService(tx repository.Transactor, repo repository.DiagnosisRepository, recipes repository.RecipeRepository, auditor Auditor) Service {
	return &service{tx: tx, repo: repo, recipes: recipes, auditor: auditor, today: model.Today}
}

var auditedFields = []string{"recipe_id", "icd10_code", "name", "description", "diagnosis_date", "is_primary", "severity", "notes"}

func (s *service) CreateDiagnosis(ctx context.Context, subject access.Subject, req *model.DiagnosisRequest) (*model.Diagnosis, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	recipe, err := s.ownedRecipe(ctx, subject, req.RecipeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &model.Diagnosis{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	s.apply(d, req, recipe)
	// The first diagnosis of a recipe is primary.
	if len(recipe.Diagnoses) == 0 {
		d.IsPrimary = true
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, d); err != nil {
			return err
		}
		if d.IsPrimary {
			if err := s.repo.ClearPrimary(ctx, d.RecipeID, d.ID); err != nil {
				return err
			}
		}
		return s.auditor.Log(ctx, subject.Actor(), model.AuditActionCreate, model.AuditEntityDiagnosis, d.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"recipe_id": d.RecipeID, "name": d.Name},
		})
	})
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("diagnosis_id", d.ID.String()).Str("recipe_id", d.RecipeID.String()).Msg("diagnosis created")
	return d, nil
}

func (s *service) GetDiagnosis(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.Diagnosis, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	d, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(subject, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) UpdateDiagnosis(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.DiagnosisRequest) (*model.Diagnosis, error) {
	existing, err := s.GetDiagnosis(ctx, subject, id)
	if err != nil {
		return nil, err
	}
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	recipe, err := s.ownedRecipe(ctx, subject, req.RecipeID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	s.apply(&updated, req, recipe)
	updated.UpdatedAt = time.Now().UTC()
	changes := audit.Diff(existing, &updated, auditedFields...)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, &updated); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError("Diagnosis", id)
			}
			return err
		}
		if updated.IsPrimary {
			if err := s.repo.ClearPrimary(ctx, updated.RecipeID, updated.ID); err != nil {
				return err
			}
		}
		return s.auditor.Log(ctx, subject.Actor(), model.AuditActionUpdate, model.AuditEntityDiagnosis, id, &audit.LogOptions{
			Changes: changes,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("diagnosis_id", id.String()).Msg("diagnosis updated")
	return &updated, nil
}

func (s *service) DeleteDiagnosis(ctx context.Context, subject access.Subject, id uuid.UUID) error {
	d, err := s.GetDiagnosis(ctx, subject, id)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError("Diagnosis", id)
			}
			return err
		}
		return s.auditor.Log(ctx, subject.Actor(), model.AuditActionDelete, model.AuditEntityDiagnosis, id, &audit.LogOptions{
			Metadata: map[string]interface{}{"recipe_id": d.RecipeID, "name": d.Name},
		})
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("diagnosis_id", id.String()).Msg("diagnosis deleted")
	return nil
}

func (s *service) ListDiagnoses(ctx context.Context, subject access.Subject, filter model.DiagnosisFilter) (*model.DiagnosisList, error) {
	scope, err := subject.DoctorScope()
	if apperrors.IsAccountNotLinked(err) {
		return &model.DiagnosisList{Items: []*model.Diagnosis{}, DoctorNotLinked: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if scope != nil {
		if filter.DoctorID != nil && *filter.DoctorID != *scope {
			return &model.DiagnosisList{Items: []*model.Diagnosis{}}, nil
		}
		filter.DoctorID = scope
	}
	filter.Name = strings.TrimSpace(filter.Name)
	filter.Pagination = filter.Pagination.Normalize()

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, _ = access.Filter(subject, items)
	return &model.DiagnosisList{Items: items}, nil
}

func (s *service) CountDiagnoses(ctx context.Context, primaryOnly bool) (int64, error) {
	return s.repo.Count(ctx, primaryOnly)
}

func (s *service) get(ctx context.Context, id uuid.UUID) (*model.Diagnosis, error) {
	d, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Diagnosis", id)
	}
	return d, err
}

// ownedRecipe loads the recipe a diagnosis is attached to and applies the owner check.
func (s *service) ownedRecipe(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.Recipe, error) {
	recipe, err := s.recipes.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Recipe", id)
	}
	if err != nil {
		return nil, err
	}
	if !subject.IsDoctor() {
		return recipe, nil
	}
	if recipe.DoctorID != subject.Doctor.ID {
		return nil, apperrors.NewAccessDenied(access.DeniedDiagnosis)
	}
	return recipe, nil
}

func (s *service) apply(d *model.Diagnosis, req *model.DiagnosisRequest, recipe *model.Recipe) {
	switch {
	case req.IsPrimary != nil:
		d.IsPrimary = *req.IsPrimary
	case d.RecipeID != recipe.ID:
		d.IsPrimary = false
	}
	d.RecipeID = recipe.ID
	d.DoctorID = recipe.DoctorID
	d.CustomerID = recipe.CustomerID
	d.ICD10Code = strings.TrimSpace(req.ICD10Code)
	d.Name = strings.TrimSpace(req.Name)
	d.Description = req.Description
	d.Severity = req.Severity
	d.Notes = req.Notes
	d.DiagnosisDate = req.DiagnosisDate
	if d.DiagnosisDate == nil || d.DiagnosisDate.IsZero() {
		d.DiagnosisDate = model.DatePtr(s.today())
	}
}
