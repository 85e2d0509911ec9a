// internal/reasoning/client.go
package reasoning

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/glimpse/internal/capture"
	"github.com/xkilldash9x/glimpse/internal/decision"
)

// Request carries everything the model sees for one decision.
type Request struct {
	Task       string
	Screenshot *capture.Screenshot
	Context    Context
	// Iteration is the 1-based index of the iteration asking.
	Iteration int
	// Note is extra guidance for a retry, such as why the previous answer was rejected.
	Note string
}

// Status describes a reachable endpoint.
type Status struct {
	Provider string
	Endpoint string
	Model    string
	// Models lists what the endpoint serves, when it can tell.
	Models []string
}

// Client turns a screenshot and a task into the next action.
type Client interface {
	// Decide returns the next decision and the context extended with it.
	Decide(ctx context.Context, req Request) (decision.Decision, Context, error)
	// Check verifies that the endpoint is reachable and serves the configured model.
	Check(ctx context.Context) (Status, error)
}

// caller holds what every provider shares: the per-call deadline and the request throttle.
type caller struct {
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newCaller(timeout time.Duration, requestsPerMinute float64, logger *zap.Logger) caller {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(requestsPerMinute / 60)
	}
	return caller{timeout: timeout, limiter: rate.NewLimiter(limit, 1), logger: logger}
}

// do runs fn under the per-call deadline. A deadline hit while the caller's own context is
// still live becomes a TimeoutError.
func (c caller) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Timeout: c.timeout, Err: err}
	}
	return err
}

// appendDecision records d in the context returned to the caller.
func appendDecision(req Request, d decision.Decision) Context {
	return req.Context.Append(Entry{
		Iteration:   req.Iteration,
		Observation: req.Screenshot.Summary(),
		Decision:    d,
	})
}
