package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "broker", MaxFailures: 2, Timeout: time.Hour})
	fail := errors.New("unreachable")

	assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	assert.Equal(t, "closed", cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	assert.Equal(t, "open", cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "broker", MaxFailures: 2, Timeout: time.Hour})
	fail := errors.New("unreachable")

	_ = cb.Execute(func() error { return fail })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return fail })

	assert.Equal(t, "closed", cb.State())
}
