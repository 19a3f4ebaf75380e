package sickleave

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
)

const (
	numberPrefix = "SL-"
	// maxSuffixDraws bounds how long Next searches for an unused suffix.
	maxSuffixDraws = 16
)

// ErrNumbersExhausted is returned when Next finds no unused suffix.
var ErrNumbersExhausted = errors.New("no unused leave number available")

// NumberGenerator produces leave numbers of the form SL-YYYYMMDD-XXXX. It
// remembers the numbers handed out for the most recent day only.
type NumberGenerator struct {
	mu     sync.Mutex
	day    model.Date
	issued map[string]struct{}
	suffix func() string
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{suffix: randomSuffix}
}

func (g *NumberGenerator) Next(day model.Date) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.day.Equal(day) || g.issued == nil {
		g.day = day
		g.issued = make(map[string]struct{})
	}
	prefix := numberPrefix + day.Format("20060102") + "-"
	for i := 0; i < maxSuffixDraws; i++ {
		n := prefix + g.suffix()
		if _, dup := g.issued[n]; dup {
			continue
		}
		g.issued[n] = struct{}{}
		return n, nil
	}
	return "", ErrNumbersExhausted
}

func randomSuffix() string {
	return strings.ToUpper(uuid.NewString()[:4])
}
