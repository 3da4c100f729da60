package dedup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestShouldAccept(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"immediately", 0, false},
		{"ten seconds later", 10 * time.Second, false},
		{"just inside horizon", time.Minute - time.Millisecond, false},
		{"at horizon", time.Minute, true},
		{"past horizon", 2 * time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(time.Minute)
			ok, err := w.ShouldAccept(ctx, "u1", "h1", t0)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = w.ShouldAccept(ctx, "u1", "h1", t0.Add(tt.elapsed))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestShouldAcceptScopes(t *testing.T) {
	ctx := context.Background()
	w := NewWindow(time.Minute)

	ok, _ := w.ShouldAccept(ctx, "u1", "h1", t0)
	assert.True(t, ok)

	ok, _ = w.ShouldAccept(ctx, "u2", "h1", t0)
	assert.True(t, ok, "other user with same fingerprint")

	ok, _ = w.ShouldAccept(ctx, "u1", "h2", t0)
	assert.True(t, ok, "same user with other fingerprint")
}

func TestRejectedCallDoesNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	w := NewWindow(time.Minute)

	ok, _ := w.ShouldAccept(ctx, "u1", "h1", t0)
	require.True(t, ok)
	ok, _ = w.ShouldAccept(ctx, "u1", "h1", t0.Add(50*time.Second))
	require.False(t, ok)

	ok, _ = w.ShouldAccept(ctx, "u1", "h1", t0.Add(time.Minute))
	assert.True(t, ok)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	w := NewWindow(time.Minute)

	ok, _ := w.ShouldAccept(ctx, "u1", "h1", t0)
	require.True(t, ok)
	require.NoError(t, w.Forget(ctx, "u1", "h1", t0))

	ok, _ = w.ShouldAccept(ctx, "u1", "h1", t0.Add(5*time.Second))
	assert.True(t, ok, "released fingerprint is accepted again")

	// A stale release must not drop the newer acceptance.
	require.NoError(t, w.Forget(ctx, "u1", "h1", t0))
	ok, _ = w.ShouldAccept(ctx, "u1", "h1", t0.Add(10*time.Second))
	assert.False(t, ok)

	require.NoError(t, w.Forget(ctx, "u1", "missing", t0))
}

func TestConcurrentDuplicatesAcceptExactlyOne(t *testing.T) {
	w := NewWindow(time.Minute)
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := w.ShouldAccept(context.Background(), "u1", "h1", t0); ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	w := NewWindow(time.Minute)
	for i := 0; i < 10; i++ {
		_, _ = w.ShouldAccept(ctx, "u1", fmt.Sprintf("h%d", i), t0)
	}
	_, _ = w.ShouldAccept(ctx, "u1", "fresh", t0.Add(90*time.Second))
	require.Equal(t, 11, w.Len())

	w.Purge(t0.Add(90 * time.Second))
	assert.Equal(t, 1, w.Len())
}

func TestOpportunisticPurge(t *testing.T) {
	ctx := context.Background()
	w := NewWindow(time.Second)
	for i := 0; i < purgeEvery-1; i++ {
		_, _ = w.ShouldAccept(ctx, "u1", fmt.Sprintf("h%d", i), t0)
	}
	_, _ = w.ShouldAccept(ctx, "u1", "late", t0.Add(time.Hour))
	assert.Equal(t, 1, w.Len())
}

func TestDefaultHorizon(t *testing.T) {
	w := NewWindow(0)
	assert.Equal(t, time.Minute, w.horizon)
}
