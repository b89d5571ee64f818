package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/log"
)

func TestRetryPolicyStopsAfterFirstSuccess(t *testing.T) {
	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	calls := 0
	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	err = policy.Run(context.Background(), logger, "job", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyReturnsLastError(t *testing.T) {
	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	calls := 0
	policy := RetryPolicy{Attempts: 2, Backoff: time.Millisecond}
	err = policy.Run(context.Background(), logger, "job", func(ctx context.Context) error {
		calls++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicyHonorsContextCancellation(t *testing.T) {
	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := RetryPolicy{Attempts: 5, Backoff: time.Minute}
	err = policy.Run(ctx, logger, "job", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyFromConfigDefaults(t *testing.T) {
	loader, _ := cfg.NewMockLoader()
	config, err := loader.Load()
	require.NoError(t, err)

	policy := RetryPolicyFromConfig(config)
	assert.Equal(t, 3, policy.Attempts)
	assert.Equal(t, 5*time.Second, policy.Backoff)

	config.Sync.RetryAttempts = 0
	config.Sync.RetryBackoffSeconds = 0
	policy = RetryPolicyFromConfig(config)
	assert.Equal(t, 3, policy.Attempts)
	assert.Equal(t, 5*time.Second, policy.Backoff)
}
