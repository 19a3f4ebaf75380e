package model

import (
	"fmt"

	"github.com/google/uuid"
)

type SickLeaveStatus string

const (
	SickLeaveStatusActive    SickLeaveStatus = "ACTIVE"
	SickLeaveStatusCompleted SickLeaveStatus = "COMPLETED"
	SickLeaveStatusCancelled SickLeaveStatus = "CANCELLED"
	SickLeaveStatusExtended  SickLeaveStatus = "EXTENDED"
)

func (s SickLeaveStatus) Valid() bool {
	switch s {
	case SickLeaveStatusActive, SickLeaveStatusCompleted, SickLeaveStatusCancelled, SickLeaveStatusExtended:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s SickLeaveStatus) Terminal() bool {
	return s == SickLeaveStatusCompleted || s == SickLeaveStatusCancelled
}

// SickLeave is issued against a recipe. DoctorID and CustomerID are read
// through the recipe and are never written.
type SickLeave struct {
	Base
	LeaveNumber  string          `db:"leave_number" json:"leave_number"`
	RecipeID     uuid.UUID       `db:"recipe_id" json:"recipe_id"`
	StartDate    Date            `db:"start_date" json:"start_date"`
	DurationDays int             `db:"duration_days" json:"duration_days"`
	EndDate      Date            `db:"end_date" json:"end_date"`
	Reason       string          `db:"reason" json:"reason"`
	Status       SickLeaveStatus `db:"status" json:"status"`
	IssueDate    Date            `db:"issue_date" json:"issue_date"`
	Notes        string          `db:"notes" json:"notes,omitempty"`

	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
}

func (s *SickLeave) OwnerDoctorID() uuid.UUID {
	return s.DoctorID
}

// CalculateEndDate sets EndDate to the last day of the leave, counting the start day.
func (s *SickLeave) CalculateEndDate() {
	if s.StartDate.IsZero() || s.DurationDays < 1 {
		return
	}
	s.EndDate = s.StartDate.AddDays(s.DurationDays - 1)
}

// IsCurrentlyActive is true for an ACTIVE leave whose period contains the given day.
func (s *SickLeave) IsCurrentlyActive(on Date) bool {
	if s.Status != SickLeaveStatusActive {
		return false
	}
	return !on.Before(s.StartDate) && !on.After(s.EndDate)
}

func (s *SickLeave) IsExpired(on Date) bool {
	return !s.EndDate.IsZero() && on.After(s.EndDate)
}

// Extend lengthens the leave by days and records the reason in the notes.
func (s *SickLeave) Extend(days int, reason string, on Date) error {
	if days < 1 {
		return fmt.Errorf("extension must be at least 1 day")
	}
	if s.Status.Terminal() {
		return fmt.Errorf("cannot extend a %s sick leave", s.Status)
	}
	s.DurationDays += days
	s.Status = SickLeaveStatusExtended
	s.CalculateEndDate()
	s.appendNote(fmt.Sprintf("Extended by %d days on %s. Reason: %s", days, on, reason))
	return nil
}

func (s *SickLeave) Cancel(reason string, on Date) error {
	if s.Status.Terminal() {
		return fmt.Errorf("cannot cancel a %s sick leave", s.Status)
	}
	s.Status = SickLeaveStatusCancelled
	s.appendNote(fmt.Sprintf("Cancelled on %s. Reason: %s", on, reason))
	return nil
}

func (s *SickLeave) Complete() error {
	if s.Status.Terminal() {
		return fmt.Errorf("cannot complete a %s sick leave", s.Status)
	}
	s.Status = SickLeaveStatusCompleted
	return nil
}

func (s *SickLeave) appendNote(note string) {
	if s.Notes == "" {
		s.Notes = note
		return
	}
	s.Notes += "\n" + note
}

type SickLeaveRequest struct {
	RecipeID     uuid.UUID  `json:"recipe_id" validate:"required"`
	CustomerID   *uuid.UUID `json:"customer_id"`
	DoctorID     *uuid.UUID `json:"doctor_id"`
	StartDate    Date       `json:"start_date"`
	DurationDays int        `json:"duration_days" validate:"gte=1,lte=365"`
	Reason       string     `json:"reason" validate:"required,max=500"`
	Notes        string     `json:"notes" validate:"max=2000"`
}

type SickLeaveUpdateRequest struct {
	StartDate    Date   `json:"start_date"`
	DurationDays int    `json:"duration_days" validate:"gte=1,lte=365"`
	Reason       string `json:"reason" validate:"required,max=500"`
	Notes        string `json:"notes" validate:"max=2000"`
}

type SickLeaveExtendRequest struct {
	Days   int    `json:"days" validate:"gte=1,lte=365"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type SickLeaveCancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type SickLeaveFilter struct {
	CustomerID *uuid.UUID
	DoctorID   *uuid.UUID
	RecipeID   *uuid.UUID
	Status     SickLeaveStatus
	StartFrom  *Date
	StartTo    *Date
	// ActiveOn keeps ACTIVE leaves that have not ended before this day.
	ActiveOn *Date
	// OrderBy is one of "start_date" (default) or "issue_date", always descending.
	OrderBy string
	Pagination
}

type SickLeaveList struct {
	Items           []*SickLeave
	DoctorNotLinked bool
}
