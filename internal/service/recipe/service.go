package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	"github.com/jwalitptl/pharmacy-api/internal/service/audit"
	"github.com/jwalitptl/pharmacy-api/internal/service/event"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

type Service interface {
	CreateRecipe(ctx context.Context, subject access.Subject, req *model.RecipeRequest) (*model.Recipe, error)
	GetRecipe(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.Recipe, error)
	// UpdateRecipe replaces the recipe fields and both child collections.
	UpdateRecipe(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.RecipeRequest) (*model.Recipe, error)
	DeleteRecipe(ctx context.Context, subject access.Subject, id uuid.UUID) error
	ListRecipes(ctx context.Context, subject access.Subject, filter model.RecipeFilter) (*model.RecipeList, error)
	CountByStatus(ctx context.Context, subject access.Subject) (map[model.RecipeStatus]int64, error)
	DiagnosisOptions(ctx context.Context) ([]string, error)
}

// Auditor records who changed what.
type Auditor interface {
	Log(ctx context.Context, actor, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions) error
}

// Deps are the collaborators of the recipe service.
type Deps struct {
	Tx        repository.Transactor
	Recipes   repository.RecipeRepository
	Doctors   repository.DoctorRepository
	Customers repository.CustomerRepository
	Medicines repository.MedicineRepository
	Diagnoses repository.DiagnosisRepository
	Auditor   Auditor
	Events    event.Emitter
}

type service struct {
	Deps
	today func() model.Date
}

func NewService(deps Deps) Service {
	return &service{Deps: deps, today: model.Today}
}

var auditedFields = []string{
	"creation_date", "doctor_id", "customer_id", "status", "diagnosis", "notes", "expiration_date",
	"sick_leave", "sick_leave_days", "sick_leave_start_date",
}

func (s *service) CreateRecipe(ctx context.Context, subject access.Subject, req *model.RecipeRequest) (*model.Recipe, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	if req != nil && subject.IsDoctor() {
		req.DoctorID = subject.Doctor.ID
	}
	if err := s.check(ctx, req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	recipe := &model.Recipe{Base: model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}}
	build(recipe, req, now)

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Recipes.Create(ctx, recipe); err != nil {
			return err
		}
		if err := s.Auditor.Log(ctx, subject.Actor(), model.AuditActionCreate, model.AuditEntityRecipe, recipe.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"medicines": len(recipe.Medicines), "diagnoses": len(recipe.Diagnoses)},
		}); err != nil {
			return err
		}
		return s.Events.Emit(ctx, model.EventRecipeCreated, eventPayload(recipe, subject))
	})
	if err != nil {
		return nil, err
	}

	s.markExpired(recipe)
	log.Ctx(ctx).Info().
		Str("recipe_id", recipe.ID.String()).
		Str("doctor_id", recipe.DoctorID.String()).
		Int("medicines", len(recipe.Medicines)).
		Int("diagnoses", len(recipe.Diagnoses)).
		Msg("recipe created")
	return recipe, nil
}

func (s *service) GetRecipe(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.Recipe, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	recipe, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(subject, recipe); err != nil {
		return nil, err
	}
	s.markExpired(recipe)
	return recipe, nil
}

func (s *service) UpdateRecipe(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.RecipeRequest) (*model.Recipe, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	existing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(subject, existing); err != nil {
		return nil, err
	}
	if req != nil && subject.IsDoctor() {
		req.DoctorID = subject.Doctor.ID
	}
	if err := s.check(ctx, req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated := &model.Recipe{Base: model.Base{ID: existing.ID, CreatedAt: existing.CreatedAt, UpdatedAt: now}}
	build(updated, req, now)
	changes := audit.Diff(existing, updated, auditedFields...)

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Recipes.Update(ctx, updated); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError("Recipe", id)
			}
			return err
		}
		if err := s.Auditor.Log(ctx, subject.Actor(), model.AuditActionUpdate, model.AuditEntityRecipe, id, &audit.LogOptions{
			Changes: changes,
		}); err != nil {
			return err
		}
		return s.Events.Emit(ctx, model.EventRecipeUpdated, eventPayload(updated, subject))
	})
	if err != nil {
		return nil, err
	}

	s.markExpired(updated)
	log.Ctx(ctx).Info().Str("recipe_id", id.String()).Int("changed_fields", len(changes)).Msg("recipe updated")
	return updated, nil
}

func (s *service) DeleteRecipe(ctx context.Context, subject access.Subject, id uuid.UUID) error {
	if err := access.Require(subject); err != nil {
		return err
	}
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Authorize(subject, existing); err != nil {
		return err
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Recipes.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError("Recipe", id)
			}
			return err
		}
		if err := s.Auditor.Log(ctx, subject.Actor(), model.AuditActionDelete, model.AuditEntityRecipe, id, nil); err != nil {
			return err
		}
		return s.Events.Emit(ctx, model.EventRecipeDeleted, eventPayload(existing, subject))
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("recipe_id", id.String()).Msg("recipe deleted")
	return nil
}

// ListRecipes never fails for an unlinked doctor; the list is empty and flagged instead.
func (s *service) ListRecipes(ctx context.Context, subject access.Subject, filter model.RecipeFilter) (*model.RecipeList, error) {
	scope, err := subject.DoctorScope()
	if apperrors.IsAccountNotLinked(err) {
		return &model.RecipeList{Items: []*model.Recipe{}, DoctorNotLinked: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if scope != nil {
		if filter.DoctorID != nil && *filter.DoctorID != *scope {
			return &model.RecipeList{Items: []*model.Recipe{}}, nil
		}
		filter.DoctorID = scope
	}

	filter.Pagination = filter.Pagination.Normalize()
	recipes, err := s.Recipes.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	recipes, _ = access.Filter(subject, recipes)
	s.markExpired(recipes...)
	return &model.RecipeList{Items: recipes}, nil
}

func (s *service) CountByStatus(ctx context.Context, subject access.Subject) (map[model.RecipeStatus]int64, error) {
	scope, err := subject.DoctorScope()
	if err != nil {
		return nil, err
	}
	return s.Recipes.CountByStatus(ctx, scope)
}

func (s *service) DiagnosisOptions(ctx context.Context) ([]string, error) {
	names, err := s.Diagnoses.DistinctNames(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := s.Recipes.DiagnosisSummaries(ctx)
	if err != nil {
		return nil, err
	}
	return Options(names, summaries), nil
}

func (s *service) get(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	recipe, err := s.Recipes.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Recipe", id)
	}
	return recipe, err
}

// check validates the payload and confirms every referenced record exists.
func (s *service) check(ctx context.Context, req *model.RecipeRequest) error {
	if err := Validate(req, s.today()); err != nil {
		return err
	}

	if _, err := s.Doctors.Get(ctx, req.DoctorID); err != nil {
		return notFound(err, "Doctor", req.DoctorID)
	}
	if _, err := s.Customers.Get(ctx, req.CustomerID); err != nil {
		return notFound(err, "Customer", req.CustomerID)
	}

	if len(req.Medicines) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(req.Medicines))
	for i, m := range req.Medicines {
		ids[i] = m.MedicineID
	}
	missing, err := s.Medicines.MissingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to check medicines: %w", err)
	}
	if len(missing) > 0 {
		return apperrors.NewNotFoundError("Medicine", missing[0])
	}
	return nil
}

func (s *service) markExpired(recipes ...*model.Recipe) {
	today := s.today()
	for _, r := range recipes {
		r.Expired = r.IsExpired(today)
	}
}

// build copies the payload onto recipe, replacing both child collections.
func build(recipe *model.Recipe, req *model.RecipeRequest, now time.Time) {
	recipe.CreationDate = req.CreationDate
	recipe.DoctorID = req.DoctorID
	recipe.CustomerID = req.CustomerID
	recipe.Status = req.Status
	recipe.Notes = strings.TrimSpace(req.Notes)
	recipe.ExpirationDate = nil
	if req.ExpirationDate != nil && !req.ExpirationDate.IsZero() {
		recipe.ExpirationDate = req.ExpirationDate
	}
	recipe.SickLeave = req.SickLeave
	recipe.SickLeaveDays = req.SickLeaveDays
	recipe.SickLeaveStartDate = req.SickLeaveStartDate

	recipe.Medicines = make([]model.RecipeMedicine, 0, len(req.Medicines))
	for i, in := range req.Medicines {
		quantity := 1
		if in.Quantity != nil {
			quantity = *in.Quantity
		}
		recipe.Medicines = append(recipe.Medicines, model.RecipeMedicine{
			ID:           uuid.New(),
			RecipeID:     recipe.ID,
			MedicineID:   in.MedicineID,
			Dosage:       strings.TrimSpace(in.Dosage),
			DurationDays: in.DurationDays,
			Instructions: strings.TrimSpace(in.Instructions),
			Quantity:     quantity,
			Position:     i,
		})
	}

	recipe.Diagnoses = SynthesizeDiagnoses(req, now)
	for i := range recipe.Diagnoses {
		d := &recipe.Diagnoses[i]
		d.RecipeID = recipe.ID
		d.DoctorID = recipe.DoctorID
		d.CustomerID = recipe.CustomerID
		d.Position = i
	}
	recipe.Diagnosis = Summary(recipe.Diagnoses)
}

func eventPayload(r *model.Recipe, subject access.Subject) model.RecipeEventPayload {
	return model.RecipeEventPayload{
		RecipeID:   r.ID,
		DoctorID:   r.DoctorID,
		CustomerID: r.CustomerID,
		Status:     r.Status,
		Actor:      subject.Actor(),
	}
}

func notFound(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(kind, id)
	}
	return err
}
