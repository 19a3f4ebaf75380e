// Package access resolves the caller's doctor record and enforces that
// doctors only touch records they own.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
	"github.com/jwalitptl/pharmacy-api/pkg/auth"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

const (
	DeniedRecipe    = "Access Denied: You can only edit your own prescriptions!"
	DeniedSickLeave = "Access Denied: You can only manage your own sick leaves."
	DeniedDiagnosis = "Access Denied: You can only manage diagnoses on your own prescriptions."
	DeniedDefault   = "Access Denied: not your own record."
)

// Owned is any record carrying the id of the doctor it belongs to.
type Owned interface {
	OwnerDoctorID() uuid.UUID
}

// Subject is the authenticated caller together with their doctor record, if any.
type Subject struct {
	Identity auth.Identity
	Doctor   *model.Doctor
}

func (s Subject) IsDoctor() bool {
	return s.Identity.HasRole(auth.RoleDoctor)
}

// DoctorNotLinked is true for a doctor-role caller without a doctor record.
func (s Subject) DoctorNotLinked() bool {
	return s.IsDoctor() && s.Doctor == nil
}

// Actor names the caller in audit entries.
func (s Subject) Actor() string {
	if s.Identity.Email != "" {
		return s.Identity.Email
	}
	return s.Identity.Subject
}

// DoctorScope is the doctor id that queries must be limited to, nil when unrestricted.
func (s Subject) DoctorScope() (*uuid.UUID, error) {
	if !s.IsDoctor() {
		return nil, nil
	}
	if s.Doctor == nil {
		return nil, apperrors.NewAccountNotLinked(s.Identity.Email)
	}
	id := s.Doctor.ID
	return &id, nil
}

// Require fails for doctor-role callers whose account is not linked.
func Require(s Subject) error {
	_, err := s.DoctorScope()
	return err
}

// Authorize allows non-doctors unconditionally and doctors only on their own records.
func Authorize(s Subject, rec Owned) error {
	if !s.IsDoctor() {
		return nil
	}
	if s.Doctor == nil {
		return apperrors.NewAccountNotLinked(s.Identity.Email)
	}
	if rec.OwnerDoctorID() != s.Doctor.ID {
		return apperrors.NewAccessDenied(deniedReason(rec))
	}
	return nil
}

func deniedReason(rec Owned) string {
	switch rec.(type) {
	case *model.Recipe:
		return DeniedRecipe
	case *model.SickLeave:
		return DeniedSickLeave
	case *model.Diagnosis:
		return DeniedDiagnosis
	default:
		return DeniedDefault
	}
}

// Filter keeps the records the subject may see and reports how many were dropped.
// An unlinked doctor sees nothing.
func Filter[T Owned](s Subject, items []T) ([]T, int) {
	if !s.IsDoctor() {
		return items, 0
	}
	kept := make([]T, 0, len(items))
	for _, it := range items {
		if s.Doctor != nil && it.OwnerDoctorID() == s.Doctor.ID {
			kept = append(kept, it)
		}
	}
	return kept, len(items) - len(kept)
}

// DoctorLookup is the part of the doctor store the resolver needs.
type DoctorLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
}

type Resolver struct {
	doctors DoctorLookup
}

func NewResolver(doctors DoctorLookup) *Resolver {
	return &Resolver{doctors: doctors}
}

// ResolveDoctor finds the doctor whose email matches, ignoring case.
// A blank email or no match yields (nil, nil).
func (r *Resolver) ResolveDoctor(ctx context.Context, email string) (*model.Doctor, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	d, err := r.doctors.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve doctor: %w", err)
	}
	return d, nil
}

// Resolve builds the Subject. The doctor lookup only happens for doctor-role identities.
func (r *Resolver) Resolve(ctx context.Context, id auth.Identity) (Subject, error) {
	s := Subject{Identity: id}
	if !s.IsDoctor() {
		return s, nil
	}
	d, err := r.ResolveDoctor(ctx, id.Email)
	if err != nil {
		return s, err
	}
	s.Doctor = d
	return s, nil
}
