package jferr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindRoundTrip(t *testing.T) {
	err := New(NotFound, "job J1 not found")
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, "job J1 not found", err.Message())
}

func TestWrapPreservesKindNotInternals(t *testing.T) {
	inner := errors.New("stat /root/jobs/J1: no such file or directory")
	err := Wrap(System, "workspace lookup failed", inner)

	assert.Equal(t, System, KindOf(err))
	assert.ErrorIs(t, err, inner)
	assert.NotContains(t, err.Message(), "no such file")
}

func TestKindOfDefaultsSystemForPlainError(t *testing.T) {
	assert.Equal(t, System, KindOf(fmt.Errorf("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIs(t *testing.T) {
	err := New(Conflict, "duplicate repo")
	assert.True(t, Is(err, Conflict))
	assert.False(t, Is(err, NotFound))
}
