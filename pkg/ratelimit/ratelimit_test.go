package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(2, 4)
	now := time.Unix(0, 0)
	tb.now = func() time.Time { return now }
	tb.lastRefill = now

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(250 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(10 * time.Second)
	assert.Equal(t, 2, tb.Remaining())
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 0.001)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketWaitSucceeds(t *testing.T) {
	tb := NewTokenBucket(1, 100)
	require.True(t, tb.Allow())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tb.Wait(ctx))
}

func TestManagerFallback(t *testing.T) {
	m := NewManager()
	assert.Same(t, m.Limiter(EndpointGeneral), m.Limiter("unknown"))

	custom := NewTokenBucket(1, 0)
	m.Set(EndpointOrderSubmit, custom)
	assert.True(t, m.Allow(EndpointOrderSubmit))
	assert.False(t, m.Allow(EndpointOrderSubmit))
}
