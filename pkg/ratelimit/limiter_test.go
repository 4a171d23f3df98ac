package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLimiter_UnknownName(t *testing.T) {
	m := NewMultiLimiter()

	assert.False(t, m.Allow("missing"))
	require.Error(t, m.Wait(context.Background(), "missing"))
}

func TestMultiLimiter_Burst(t *testing.T) {
	m := NewMultiLimiter()
	m.AddLimiter("test", 0.001, 2)

	assert.True(t, m.Allow("test"))
	assert.True(t, m.Allow("test"))
	assert.False(t, m.Allow("test"))
}

func TestNew_RegistersAllLimiters(t *testing.T) {
	m := NewDefaultLimiter()

	for _, name := range []string{LimiterAnthropic, LimiterOpenAI, LimiterRSS, LimiterEmail, LimiterUnsplash} {
		assert.True(t, m.Allow(name), name)
	}
}

func TestKeyedLimiter(t *testing.T) {
	k := NewKeyedLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, k.Allow("10.0.0.1"), "attempt %d", i)
	}
	assert.False(t, k.Allow("10.0.0.1"))

	// other keys keep their own budget
	assert.True(t, k.Allow("10.0.0.2"))
}
