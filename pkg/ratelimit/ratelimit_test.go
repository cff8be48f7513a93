package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerMinute_Disabled(t *testing.T) {
	l := PerMinute(0)
	assert.True(t, l.Allow())
	assert.NoError(t, l.Wait(context.Background()))
}

func TestAllow_BurstExhaustion(t *testing.T) {
	l := PerMinute(2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "burst of 2 is spent")
}

func TestWait_ContextCancelled(t *testing.T) {
	l := PerMinute(1)
	require.True(t, l.Allow(), "drain the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.Error(t, err, "refill takes a minute, the context expires first")
}

func TestSetRate(t *testing.T) {
	l := PerMinute(1)
	require.True(t, l.Allow())
	require.False(t, l.Allow())

	l.SetRate(100)
	assert.True(t, l.Allow(), "new budget takes effect immediately")

	l.SetRate(0)
	assert.True(t, l.Allow(), "non-positive rate disables limiting")
}
