package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		fallback, change := b.RecordFailure()
		assert.False(t, fallback)
		assert.False(t, change.Opened)
	}

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerClosesAfterConsecutiveSuccesses(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	fallback, change := b.RecordFailure()
	assert.False(t, fallback)
	assert.False(t, change.Opened)
}

func TestBreakerReset(t *testing.T) {
	b := New("test", WithFailureThreshold(1))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, "test", b.Name())
}
