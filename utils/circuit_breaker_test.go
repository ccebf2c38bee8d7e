package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("test")

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)

	wantErr := errors.New("boom")
	err = cb.Execute(func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	// Push the failure ratio past the trip threshold.
	for i := 0; i < 100; i++ {
		cb.Execute(func() error { return boom })
	}

	err := cb.Execute(func() error {
		t.Fatal("request ran while the circuit was open")
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
}
