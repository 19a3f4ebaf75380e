package sickleave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	"github.com/jwalitptl/pharmacy-api/internal/service/audit"
	"github.com/jwalitptl/pharmacy-api/internal/service/event"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/validator"
)

const (
	DeniedIssue       = "Access Denied: You can issue sick leave only for your own recipes."
	DoctorMismatch    = "Selected doctor does not match the selected recipe."
	CustomerMismatch  = "Selected patient does not match the selected recipe."
	maxNumberAttempts = 5
)

type Service interface {
	IssueSickLeave(ctx context.Context, subject access.Subject, req *model.SickLeaveRequest) (*model.SickLeave, error)
	GetSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.SickLeave, error)
	GetByNumber(ctx context.Context, subject access.Subject, number string) (*model.SickLeave, error)
	UpdateSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.SickLeaveUpdateRequest) (*model.SickLeave, error)
	ExtendSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.SickLeaveExtendRequest) (*model.SickLeave, error)
	CancelSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.SickLeaveCancelRequest) (*model.SickLeave, error)
	CompleteSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.SickLeave, error)
	DeleteSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID) error

	ListSickLeaves(ctx context.Context, subject access.Subject, filter model.SickLeaveFilter) (*model.SickLeaveList, error)
	// ActiveForCustomer lists ACTIVE leaves of the customer that have not ended yet.
	ActiveForCustomer(ctx context.Context, subject access.Subject, customerID uuid.UUID) (*model.SickLeaveList, error)
	HasActiveOn(ctx context.Context, customerID uuid.UUID, on model.Date) (bool, error)
	CountSickLeaves(ctx context.Context, subject access.Subject, filter model.SickLeaveFilter) (int64, error)
}

type Auditor interface {
	Log(ctx context.Context, actor, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions) error
}

type Deps struct {
	Tx        repository.Transactor
	Leaves    repository.SickLeaveRepository
	Recipes   repository.RecipeRepository
	Customers repository.CustomerRepository
	Auditor   Auditor
	Events    event.Emitter
	Numbers   *NumberGenerator
	// Issued counts issued leaves when set.
	Issued prometheus.Counter
}

type service struct {
	Deps
	today func() model.Date
}

func NewService(deps Deps) Service {
	if deps.Numbers == nil {
		deps.Numbers = NewNumberGenerator()
	}
	return &service{Deps: deps, today: model.Today}
}

var auditedFields = []string{"start_date", "duration_days", "end_date", "reason", "status", "notes"}

func (s *service) IssueSickLeave(ctx context.Context, subject access.Subject, req *model.SickLeaveRequest) (*model.SickLeave, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	if req.StartDate.IsZero() {
		return nil, apperrors.NewValidation("start_date", "Start date is required")
	}

	recipe, err := s.Recipes.Get(ctx, req.RecipeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Recipe", req.RecipeID)
	}
	if err != nil {
		return nil, err
	}
	if req.DoctorID != nil && *req.DoctorID != recipe.DoctorID {
		return nil, apperrors.NewValidation("doctor_id", DoctorMismatch)
	}
	if req.CustomerID != nil && *req.CustomerID != recipe.CustomerID {
		return nil, apperrors.NewValidation("customer_id", CustomerMismatch)
	}
	if subject.IsDoctor() && recipe.DoctorID != subject.Doctor.ID {
		return nil, apperrors.NewAccessDenied(DeniedIssue)
	}

	customer, err := s.Customers.Get(ctx, recipe.CustomerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Customer", recipe.CustomerID)
	}
	if err != nil {
		return nil, err
	}

	today := s.today()
	number, err := s.nextNumber(ctx, today)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	leave := &model.SickLeave{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LeaveNumber:  number,
		RecipeID:     recipe.ID,
		StartDate:    req.StartDate,
		DurationDays: req.DurationDays,
		Reason:       strings.TrimSpace(req.Reason),
		Status:       model.SickLeaveStatusActive,
		IssueDate:    today,
		Notes:        strings.TrimSpace(req.Notes),
		DoctorID:     recipe.DoctorID,
		CustomerID:   recipe.CustomerID,
	}
	leave.CalculateEndDate()

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Leaves.Create(ctx, leave); err != nil {
			return err
		}
		if err := s.Auditor.Log(ctx, subject.Actor(), model.AuditActionCreate, model.AuditEntitySickLeave, leave.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"leave_number": leave.LeaveNumber, "recipe_id": leave.RecipeID},
		}); err != nil {
			return err
		}
		return s.Events.Emit(ctx, model.EventSickLeaveIssued, model.SickLeaveIssuedPayload{
			SickLeaveID:   leave.ID,
			LeaveNumber:   leave.LeaveNumber,
			RecipeID:      leave.RecipeID,
			CustomerID:    customer.ID,
			CustomerName:  customer.Name,
			CustomerEmail: customer.Email,
			StartDate:     leave.StartDate,
			EndDate:       leave.EndDate,
			Reason:        leave.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.Issued != nil {
		s.Issued.Inc()
	}
	log.Ctx(ctx).Info().
		Str("sick_leave_id", leave.ID.String()).
		Str("leave_number", leave.LeaveNumber).
		Str("recipe_id", leave.RecipeID.String()).
		Msg("sick leave issued")
	return leave, nil
}

func (s *service) GetSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.SickLeave, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	leave, err := s.Leaves.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Sick leave", id)
	}
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(subject, leave); err != nil {
		return nil, err
	}
	return leave, nil
}

func (s *service) GetByNumber(ctx context.Context, subject access.Subject, number string) (*model.SickLeave, error) {
	if err := access.Require(subject); err != nil {
		return nil, err
	}
	number = strings.ToUpper(strings.TrimSpace(number))
	leave, err := s.Leaves.GetByNumber(ctx, number)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &apperrors.NotFoundError{Kind: "Sick leave", ID: number}
	}
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(subject, leave); err != nil {
		return nil, err
	}
	return leave, nil
}

func (s *service) UpdateSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.SickLeaveUpdateRequest) (*model.SickLeave, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	if req.StartDate.IsZero() {
		return nil, apperrors.NewValidation("start_date", "Start date is required")
	}
	return s.mutate(ctx, subject, id, model.AuditActionUpdate, "", func(l *model.SickLeave) error {
		if l.Status.Terminal() {
			return apperrors.NewConflict(fmt.Sprintf("Sick leave is %s and can no longer be changed", l.Status))
		}
		l.StartDate = req.StartDate
		l.DurationDays = req.DurationDays
		l.Reason = strings.TrimSpace(req.Reason)
		l.Notes = strings.TrimSpace(req.Notes)
		l.CalculateEndDate()
		return nil
	})
}

func (s *service) ExtendSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.SickLeaveExtendRequest) (*model.SickLeave, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, subject, id, model.AuditActionExtend, model.EventSickLeaveExtended, func(l *model.SickLeave) error {
		return transition(l.Extend(req.Days, strings.TrimSpace(req.Reason), s.today()))
	})
}

func (s *service) CancelSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID, req *model.SickLeaveCancelRequest) (*model.SickLeave, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, subject, id, model.AuditActionCancel, model.EventSickLeaveCanceled, func(l *model.SickLeave) error {
		return transition(l.Cancel(strings.TrimSpace(req.Reason), s.today()))
	})
}

func (s *service) CompleteSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID) (*model.SickLeave, error) {
	return s.mutate(ctx, subject, id, model.AuditActionComplete, "", func(l *model.SickLeave) error {
		return transition(l.Complete())
	})
}

func (s *service) DeleteSickLeave(ctx context.Context, subject access.Subject, id uuid.UUID) error {
	leave, err := s.GetSickLeave(ctx, subject, id)
	if err != nil {
		return err
	}
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Leaves.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError("Sick leave", id)
			}
			return err
		}
		return s.Auditor.Log(ctx, subject.Actor(), model.AuditActionDelete, model.AuditEntitySickLeave, id, &audit.LogOptions{
			Metadata: map[string]interface{}{"leave_number": leave.LeaveNumber},
		})
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("sick_leave_id", id.String()).Msg("sick leave deleted")
	return nil
}

func (s *service) ListSickLeaves(ctx context.Context, subject access.Subject, filter model.SickLeaveFilter) (*model.SickLeaveList, error) {
	scope, err := subject.DoctorScope()
	if apperrors.IsAccountNotLinked(err) {
		return &model.SickLeaveList{Items: []*model.SickLeave{}, DoctorNotLinked: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if scope != nil {
		if filter.DoctorID != nil && *filter.DoctorID != *scope {
			return &model.SickLeaveList{Items: []*model.SickLeave{}}, nil
		}
		filter.DoctorID = scope
	}
	filter.Pagination = filter.Pagination.Normalize()

	items, err := s.Leaves.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, _ = access.Filter(subject, items)
	return &model.SickLeaveList{Items: items}, nil
}

func (s *service) ActiveForCustomer(ctx context.Context, subject access.Subject, customerID uuid.UUID) (*model.SickLeaveList, error) {
	today := s.today()
	return s.ListSickLeaves(ctx, subject, model.SickLeaveFilter{CustomerID: &customerID, ActiveOn: &today})
}

func (s *service) HasActiveOn(ctx context.Context, customerID uuid.UUID, on model.Date) (bool, error) {
	if on.IsZero() {
		on = s.today()
	}
	return s.Leaves.HasActiveOn(ctx, customerID, on)
}

func (s *service) CountSickLeaves(ctx context.Context, subject access.Subject, filter model.SickLeaveFilter) (int64, error) {
	scope, err := subject.DoctorScope()
	if err != nil {
		return 0, err
	}
	if scope != nil {
		filter.DoctorID = scope
	}
	return s.Leaves.Count(ctx, filter)
}

// mutate loads an owned leave, applies change and persists it with an audit
// entry and, when eventType is set, a domain event.
func (s *service) mutate(ctx context.Context, subject access.Subject, id uuid.UUID, action, eventType string, change func(*model.SickLeave) error) (*model.SickLeave, error) {
	existing, err := s.GetSickLeave(ctx, subject, id)
	if err != nil {
		return nil, err
	}
	updated := *existing
	if err := change(&updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()
	changes := audit.Diff(existing, &updated, auditedFields...)

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Leaves.Update(ctx, &updated); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError("Sick leave", id)
			}
			return err
		}
		if err := s.Auditor.Log(ctx, subject.Actor(), action, model.AuditEntitySickLeave, id, &audit.LogOptions{
			Changes: changes,
		}); err != nil {
			return err
		}
		if eventType == "" {
			return nil
		}
		return s.Events.Emit(ctx, eventType, map[string]interface{}{
			"sick_leave_id": updated.ID,
			"leave_number":  updated.LeaveNumber,
			"status":        updated.Status,
			"end_date":      updated.EndDate,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().
		Str("sick_leave_id", id.String()).
		Str("action", action).
		Str("status", string(updated.Status)).
		Msg("sick leave changed")
	return &updated, nil
}

// nextNumber draws numbers until one is free in the store. Running out of
// attempts or suffixes is reported as a duplicate.
func (s *service) nextNumber(ctx context.Context, day model.Date) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		n, err := s.Numbers.Next(day)
		if errors.Is(err, ErrNumbersExhausted) {
			break
		}
		_, err = s.Leaves.GetByNumber(ctx, n)
		if errors.Is(err, repository.ErrNotFound) {
			return n, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check leave number: %w", err)
		}
	}
	return "", apperrors.NewDuplicate("leave_number", "Leave number", "")
}

// transition reports a rejected lifecycle change as a conflict.
func transition(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.NewConflict(err.Error())
}
