package model

import (
	"time"

	"github.com/google/uuid"
)

type DiagnosisSeverity string

const (
	SeverityMild     DiagnosisSeverity = "MILD"
	SeverityModerate DiagnosisSeverity = "MODERATE"
	SeveritySevere   DiagnosisSeverity = "SEVERE"
	SeverityCritical DiagnosisSeverity = "CRITICAL"
)

// Diagnosis belongs to exactly one recipe. DoctorID and CustomerID are read
// through that recipe and are never written.
type Diagnosis struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	RecipeID      uuid.UUID         `db:"recipe_id" json:"recipe_id"`
	ICD10Code     string            `db:"icd10_code" json:"icd10_code,omitempty"`
	Name          string            `db:"name" json:"name"`
	Description   string            `db:"description" json:"description,omitempty"`
	DiagnosisDate *Date             `db:"diagnosis_date" json:"diagnosis_date,omitempty"`
	IsPrimary     bool              `db:"is_primary" json:"is_primary"`
	Severity      DiagnosisSeverity `db:"severity" json:"severity,omitempty"`
	Notes         string            `db:"notes" json:"notes,omitempty"`
	Position      int               `db:"position" json:"-"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`

	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
}

func (d *Diagnosis) OwnerDoctorID() uuid.UUID {
	return d.DoctorID
}

// DiagnosisInput is a structured diagnosis supplied with a recipe.
type DiagnosisInput struct {
	ICD10Code     string            `json:"icd10_code" validate:"max=10"`
	Name          string            `json:"name" validate:"required,min=3,max=500"`
	Description   string            `json:"description" validate:"max=2000"`
	DiagnosisDate *Date             `json:"diagnosis_date"`
	Severity      DiagnosisSeverity `json:"severity" validate:"omitempty,oneof=MILD MODERATE SEVERE CRITICAL"`
	Notes         string            `json:"notes" validate:"max=1000"`
}

// DiagnosisRequest is the payload for managing a single diagnosis.
type DiagnosisRequest struct {
	RecipeID      uuid.UUID         `json:"recipe_id" validate:"required"`
	ICD10Code     string            `json:"icd10_code" validate:"max=10"`
	Name          string            `json:"name" validate:"required,min=3,max=500"`
	Description   string            `json:"description" validate:"max=2000"`
	DiagnosisDate *Date             `json:"diagnosis_date"`
	Severity      DiagnosisSeverity `json:"severity" validate:"omitempty,oneof=MILD MODERATE SEVERE CRITICAL"`
	Notes         string            `json:"notes" validate:"max=1000"`
	// IsPrimary left unset keeps the current flag on update.
	IsPrimary *bool `json:"is_primary"`
}

type DiagnosisFilter struct {
	RecipeID    *uuid.UUID
	CustomerID  *uuid.UUID
	DoctorID    *uuid.UUID
	Name        string
	ICD10Code   string
	Severity    DiagnosisSeverity
	PrimaryOnly bool
	From        *Date
	To          *Date
	Pagination
}

type DiagnosisList struct {
	Items           []*Diagnosis
	DoctorNotLinked bool
}
