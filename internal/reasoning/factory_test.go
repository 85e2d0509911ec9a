// internal/reasoning/factory_test.go
package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/glimpse/internal/config"
)

func TestNewClient(t *testing.T) {
	logger := zaptest.NewLogger(t)

	c, err := NewClient(context.Background(), ollamaConfig("http://127.0.0.1:1"), logger)
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	c, err = NewClient(context.Background(), geminiConfig("http://127.0.0.1:1"), logger)
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)

	_, err = NewClient(context.Background(), config.ReasoningConfig{Provider: "openai"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported reasoning provider")
}

func TestCaller_Throttle(t *testing.T) {
	t.Run("unlimited by default", func(t *testing.T) {
		c := newCaller(time.Second, 0, zaptest.NewLogger(t))
		assert.Equal(t, rate.Inf, c.limiter.Limit())
	})

	t.Run("waiting is cancellable", func(t *testing.T) {
		c := newCaller(time.Second, 1, zaptest.NewLogger(t))
		calls := 0
		fn := func(ctx context.Context) error { calls++; return nil }

		require.NoError(t, c.do(context.Background(), fn))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := c.do(ctx, fn)
		require.Error(t, err)
		assert.Equal(t, 1, calls, "the throttled call never ran")
	})
}
