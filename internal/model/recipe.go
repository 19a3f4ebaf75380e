package model

import (
	"github.com/google/uuid"
)

type RecipeStatus string

const (
	RecipeStatusActive    RecipeStatus = "ACTIVE"
	RecipeStatusFulfilled RecipeStatus = "FULFILLED"
	RecipeStatusExpired   RecipeStatus = "EXPIRED"
	RecipeStatusCancelled RecipeStatus = "CANCELLED"
)

var RecipeStatuses = []RecipeStatus{
	RecipeStatusActive,
	RecipeStatusFulfilled,
	RecipeStatusExpired,
	RecipeStatusCancelled,
}

func (s RecipeStatus) Valid() bool {
	for _, v := range RecipeStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Recipe is a prescription issued during an examination. It owns its medicine
// line-items and diagnoses; sick leaves reference it by id.
type Recipe struct {
	Base
	CreationDate   Date         `db:"creation_date" json:"creation_date"`
	DoctorID       uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	CustomerID     uuid.UUID    `db:"customer_id" json:"customer_id"`
	Status         RecipeStatus `db:"status" json:"status"`
	Diagnosis      string       `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes          string       `db:"notes" json:"notes,omitempty"`
	ExpirationDate *Date        `db:"expiration_date" json:"expiration_date,omitempty"`

	// Inline sick-leave fields kept for records created before SickLeave existed.
	SickLeave          bool  `db:"sick_leave" json:"sick_leave"`
	SickLeaveDays      *int  `db:"sick_leave_days" json:"sick_leave_days,omitempty"`
	SickLeaveStartDate *Date `db:"sick_leave_start_date" json:"sick_leave_start_date,omitempty"`

	Medicines []RecipeMedicine `db:"-" json:"medicines"`
	Diagnoses []Diagnosis      `db:"-" json:"diagnoses"`

	// Expired is IsExpired evaluated when the recipe was read.
	Expired bool `db:"-" json:"is_expired"`
}

// IsExpired is true once the given day is past the expiration date.
func (r *Recipe) IsExpired(on Date) bool {
	return r.ExpirationDate != nil && !r.ExpirationDate.IsZero() && on.After(*r.ExpirationDate)
}

func (r *Recipe) OwnerDoctorID() uuid.UUID {
	return r.DoctorID
}

type RecipeMedicine struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RecipeID     uuid.UUID `db:"recipe_id" json:"recipe_id"`
	MedicineID   uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Dosage       string    `db:"dosage" json:"dosage"`
	DurationDays int       `db:"duration_days" json:"duration_days"`
	Instructions string    `db:"instructions" json:"instructions,omitempty"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Position     int       `db:"position" json:"-"`
}

// RecipeRequest is the write payload for create and update.
type RecipeRequest struct {
	CreationDate       Date                   `json:"creation_date"`
	DoctorID           uuid.UUID              `json:"doctor_id"`
	CustomerID         uuid.UUID              `json:"customer_id"`
	Status             RecipeStatus           `json:"status"`
	Diagnosis          string                 `json:"diagnosis" validate:"max=1000"`
	SelectedDiagnoses  []string               `json:"selected_diagnoses"`
	Diagnoses          []DiagnosisInput       `json:"diagnoses" validate:"dive"`
	Notes              string                 `json:"notes" validate:"max=2000"`
	ExpirationDate     *Date                  `json:"expiration_date"`
	SickLeave          bool                   `json:"sick_leave"`
	SickLeaveDays      *int                   `json:"sick_leave_days" validate:"omitempty,gte=1"`
	SickLeaveStartDate *Date                  `json:"sick_leave_start_date"`
	Medicines          []*RecipeMedicineInput `json:"medicines" validate:"dive"`
}

type RecipeMedicineInput struct {
	MedicineID   uuid.UUID `json:"medicine_id"`
	Dosage       string    `json:"dosage" validate:"max=500"`
	DurationDays int       `json:"duration_days"`
	Instructions string    `json:"instructions" validate:"max=1000"`
	Quantity     *int      `json:"quantity"`
}

type RecipeFilter struct {
	DoctorID   *uuid.UUID
	CustomerID *uuid.UUID
	Status     RecipeStatus
	From       *Date
	To         *Date
	// Newest orders by creation date descending.
	Newest bool
	Pagination
}

// RecipeList is an ownership-filtered page of recipes. Total, when set, is the
// number of matching recipes across all pages.
type RecipeList struct {
	Items           []*Recipe
	Total           int64
	DoctorNotLinked bool
}
