package syncclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffLadder(t *testing.T) {
	b := Backoff{Base: 1000 * time.Millisecond, Max: 30000 * time.Millisecond}
	want := []time.Duration{1000, 2000, 4000, 8000, 16000, 30000, 30000}
	for attempt, ms := range want {
		assert.Equal(t, ms*time.Millisecond, b.Delay(attempt), "attempt %d", attempt)
	}
	// Reset after a successful connect starts the ladder over.
	assert.Equal(t, time.Second, b.Delay(0))
}

func TestBackoffLargeAttemptDoesNotOverflow(t *testing.T) {
	b := DefaultBackoff()
	assert.Equal(t, 30*time.Second, b.Delay(1000))
}

func TestBackoffDefaults(t *testing.T) {
	b := Backoff{}
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(-3))
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second, Jitter: 0.2}
	for i := 0; i < 200; i++ {
		d := b.Delay(2)
		assert.GreaterOrEqual(t, d, 3200*time.Millisecond)
		assert.LessOrEqual(t, d, 4800*time.Millisecond)
	}
}
