package middleware

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, cfg *config.RateLimitConfig) RateLimiter {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewRateLimiter(cfg, logger)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := newTestLimiter(t, &config.RateLimitConfig{Enabled: false})

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("client-1"))
	}
}

func TestRateLimiter_BurstExhausted(t *testing.T) {
	rl := newTestLimiter(t, &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		Burst:             2,
	})

	assert.True(t, rl.Allow("client-1"))
	assert.True(t, rl.Allow("client-1"))
	assert.False(t, rl.Allow("client-1"))

	// Other clients have their own bucket.
	assert.True(t, rl.Allow("client-2"))
}

func TestRateLimiter_ResetRestoresBudget(t *testing.T) {
	rl := newTestLimiter(t, &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		Burst:             1,
	})

	assert.True(t, rl.Allow("client-1"))
	assert.False(t, rl.Allow("client-1"))

	rl.Reset("client-1")
	assert.True(t, rl.Allow("client-1"))
}
