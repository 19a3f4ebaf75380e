package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
)

type person struct {
	Name  string  `json:"name" validate:"required,min=2,max=5"`
	EGN   string  `json:"egn" validate:"required,egn"`
	Phone string  `json:"phone" validate:"omitempty,phone"`
	Tags  []item  `json:"tags" validate:"dive"`
	Age   int     `json:"age" validate:"gte=0"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type item struct {
	Label string `json:"label" validate:"oneof=MILD SEVERE"`
}

func TestStruct(t *testing.T) {
	valid := person{Name: "Ana", EGN: "0123456789", Phone: "+359888123456"}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, Struct(valid))
	})

	cases := []struct {
		name    string
		mutate  func(p *person)
		field   string
		message string
	}{
		{"required", func(p *person) { p.Name = "" }, "name", "name is required"},
		{"too short", func(p *person) { p.Name = "A" }, "name", "name must be at least 2 characters"},
		{"too long", func(p *person) { p.Name = "Anastasia" }, "name", "name must be at most 5 characters"},
		{"egn", func(p *person) { p.EGN = "12345" }, "egn", "EGN must be exactly 10 digits"},
		{"phone", func(p *person) { p.Phone = "12-34" }, "phone", "Phone number must contain 10 to 15 digits, optionally prefixed with +"},
		{"nested", func(p *person) { p.Tags = []item{{Label: "MILD"}, {Label: "odd"}} }, "tags[1].label", "tags[1].label must be one of: MILD, SEVERE"},
		{"gte", func(p *person) { p.Age = -1 }, "age", "age must be at least 0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)

			err := Struct(p)

			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			assert.Equal(t, tc.message, vErr.Message)
		})
	}
}
