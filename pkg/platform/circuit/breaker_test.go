package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_Lifecycle(t *testing.T) {
	b := New("redis", WithFailureThreshold(2), WithSuccessThreshold(2))
	require.Equal(t, "redis", b.Name())
	require.Equal(t, StateClosed, b.State())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_ConsecutiveCounts(t *testing.T) {
	t.Run("success clears failures while closed", func(t *testing.T) {
		b := New("x", WithFailureThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		assert.False(t, b.IsOpen())
	})

	t.Run("failure clears successes while open", func(t *testing.T) {
		b := New("x", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordSuccess()
		assert.True(t, b.IsOpen())
		b.RecordSuccess()
		assert.False(t, b.IsOpen())
	})

	t.Run("non-positive thresholds keep defaults", func(t *testing.T) {
		b := New("x", WithFailureThreshold(0))
		for range 4 {
			b.RecordFailure()
		}
		assert.False(t, b.IsOpen())
		b.RecordFailure()
		assert.True(t, b.IsOpen())
	})
}

func TestBreaker_Reset(t *testing.T) {
	b := New("x", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}
