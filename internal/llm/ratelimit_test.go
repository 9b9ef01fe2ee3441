package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimitedClient_Unlimited(t *testing.T) {
	inner := &scriptedClient{}
	assert.Same(t, inner, NewRateLimitedClient(inner, 0))
}

func TestRateLimitedClient_Spaces(t *testing.T) {
	inner := &scriptedClient{}
	c := NewRateLimitedClient(inner, 60*20) // one call per 50ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Complete(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "scripted", c.Name())
}

func TestRateLimitedClient_Cancelled(t *testing.T) {
	inner := &scriptedClient{}
	c := NewRateLimitedClient(inner, 1)
	_, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, "p")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
