package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Domain event types published through the outbox.
const (
	EventRecipeCreated     = "recipe.created"
	EventRecipeUpdated     = "recipe.updated"
	EventRecipeDeleted     = "recipe.deleted"
	EventSickLeaveIssued   = "sick_leave.issued"
	EventSickLeaveExtended = "sick_leave.extended"
	EventSickLeaveCanceled = "sick_leave.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// SickLeaveIssuedPayload is the body of EventSickLeaveIssued.
type SickLeaveIssuedPayload struct {
	SickLeaveID   uuid.UUID `json:"sick_leave_id"`
	LeaveNumber   string    `json:"leave_number"`
	RecipeID      uuid.UUID `json:"recipe_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	StartDate     Date      `json:"start_date"`
	EndDate       Date      `json:"end_date"`
	Reason        string    `json:"reason"`
}

// RecipeEventPayload is the body of recipe events.
type RecipeEventPayload struct {
	RecipeID   uuid.UUID    `json:"recipe_id"`
	DoctorID   uuid.UUID    `json:"doctor_id"`
	CustomerID uuid.UUID    `json:"customer_id"`
	Status     RecipeStatus `json:"status"`
	Actor      string       `json:"actor,omitempty"`
}
