package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowCapsRequestsPerSecond(t *testing.T) {
	limiter := NewRateLimiter(3)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}

func TestAllowRecoversAfterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter(1)

	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, limiter.Allow())
}

func TestWaitRespectsContext(t *testing.T) {
	limiter := NewRateLimiter(1)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, limiter.Wait(ctx))

	// Token đã cạn, Wait phải thoát theo context thay vì chờ vô hạn
	cancel()
	assert.Error(t, limiter.Wait(ctx))
}

func TestNewRateLimiterFloorsAtOne(t *testing.T) {
	limiter := NewRateLimiter(0)
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}
