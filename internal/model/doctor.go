package model

import "github.com/google/uuid"

type Doctor struct {
	Base
	Name            string `db:"name" json:"name"`
	LicenseNumber   string `db:"license_number" json:"license_number"`
	Specialty       string `db:"specialty" json:"specialty"`
	IsPrimaryDoctor bool   `db:"is_primary_doctor" json:"is_primary_doctor"`
	Email           string `db:"email" json:"email,omitempty"`
	Phone           string `db:"phone" json:"phone,omitempty"`
}

type DoctorRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	LicenseNumber   string `json:"license_number" validate:"required,max=20"`
	Specialty       string `json:"specialty" validate:"required,max=100"`
	IsPrimaryDoctor *bool  `json:"is_primary_doctor"`
	Email           string `json:"email" validate:"omitempty,email,max=255"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
}

type DoctorFilter struct {
	Specialty   string
	PrimaryOnly bool
	Name        string
	Pagination
}

// DoctorRefs counts the records that keep a doctor from being deleted.
type DoctorRefs struct {
	Recipes   int64 `db:"recipes" json:"recipes"`
	Customers int64 `db:"customers" json:"customers"`
}

func (r DoctorRefs) Any() bool {
	return r.Recipes > 0 || r.Customers > 0
}

// DoctorID is the identifier carried by ownership checks.
func (d *Doctor) DoctorID() uuid.UUID {
	if d == nil {
		return uuid.Nil
	}
	return d.ID
}
