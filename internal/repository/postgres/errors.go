package postgres

import (
	"errors"

	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type uniqueField struct {
	field string
	label string
}

// Constraint names from schema.sql.
var uniqueConstraints = map[string]uniqueField{
	"doctors_license_number_key":   {"license_number", "License number"},
	"doctors_email_lower_key":      {"email", "Email"},
	"customers_egn_key":            {"egn", "EGN"},
	"customers_email_lower_key":    {"email", "Email"},
	"sick_leaves_leave_number_key": {"leave_number", "Leave number"},
}

// translate turns unique violations into DuplicateError, foreign key violations
// into a conflict and leaves other errors untouched.
func translate(err error, value func(field string) string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	if pqErr.Code == foreignKeyViolation {
		return apperrors.NewConflict("Record is still referenced by " + pqErr.Table)
	}
	if pqErr.Code != uniqueViolation {
		return err
	}
	f, ok := uniqueConstraints[pqErr.Constraint]
	if !ok {
		return apperrors.NewDuplicate("", "Record", "")
	}
	v := ""
	if value != nil {
		v = value(f.field)
	}
	return apperrors.NewDuplicate(f.field, f.label, v)
}
