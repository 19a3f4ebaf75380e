package model

import (
	"github.com/google/uuid"
)

type Customer struct {
	Base
	Name               string    `db:"name" json:"name"`
	EGN                string    `db:"egn" json:"egn"`
	Email              string    `db:"email" json:"email,omitempty"`
	Phone              string    `db:"phone" json:"phone,omitempty"`
	Address            string    `db:"address" json:"address,omitempty"`
	DateOfBirth        *Date     `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Allergies          string    `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory     string    `db:"medical_history" json:"medical_history,omitempty"`
	InsuranceNumber    string    `db:"insurance_number" json:"insurance_number,omitempty"`
	InsurancePaidUntil *Date     `db:"insurance_paid_until" json:"insurance_paid_until,omitempty"`
	Active             bool      `db:"active" json:"active"`
	PrimaryDoctorID    uuid.UUID `db:"primary_doctor_id" json:"primary_doctor_id"`
}

// Age returns the completed years since DateOfBirth, or -1 when it is unknown.
func (c *Customer) Age(on Date) int {
	if c.DateOfBirth == nil || c.DateOfBirth.IsZero() {
		return -1
	}
	dob := c.DateOfBirth
	age := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// HasValidInsurance reports whether insurance is paid up to at least the given day.
func (c *Customer) HasValidInsurance(on Date) bool {
	if c.InsurancePaidUntil == nil || c.InsurancePaidUntil.IsZero() {
		return false
	}
	return !c.InsurancePaidUntil.Before(on)
}

// CustomerView adds derived fields for API responses.
type CustomerView struct {
	*Customer
	Age               *int `json:"age,omitempty"`
	HasValidInsurance bool `json:"has_valid_insurance"`
}

func NewCustomerView(c *Customer, on Date) *CustomerView {
	v := &CustomerView{Customer: c, HasValidInsurance: c.HasValidInsurance(on)}
	if age := c.Age(on); age >= 0 {
		v.Age = &age
	}
	return v
}

type CustomerRequest struct {
	Name               string    `json:"name" validate:"required,min=2,max=100"`
	EGN                string    `json:"egn" validate:"required,egn"`
	Email              string    `json:"email" validate:"omitempty,email,max=255"`
	Phone              string    `json:"phone" validate:"omitempty,phone"`
	Address            string    `json:"address" validate:"max=255"`
	DateOfBirth        *Date     `json:"date_of_birth"`
	Allergies          string    `json:"allergies" validate:"max=1000"`
	MedicalHistory     string    `json:"medical_history" validate:"max=2000"`
	InsuranceNumber    string    `json:"insurance_number" validate:"max=50"`
	InsurancePaidUntil *Date     `json:"insurance_paid_until"`
	Active             *bool     `json:"active"`
	PrimaryDoctorID    uuid.UUID `json:"primary_doctor_id" validate:"required"`
}

type CustomerFilter struct {
	Name            string
	Allergy         string
	PrimaryDoctorID *uuid.UUID
	ActiveOnly      bool
	MinAge          *int
	MaxAge          *int
	// AgeOn is the reference day for MinAge and MaxAge.
	AgeOn Date
	Pagination
}
