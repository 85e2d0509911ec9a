// internal/reasoning/errors.go
package reasoning

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies reasoning failures.
type ErrorCode string

const (
	ErrCodeTimeout       ErrorCode = "REASONING_TIMEOUT"
	ErrCodeEndpoint      ErrorCode = "REASONING_ENDPOINT_ERROR"
	ErrCodeModelNotFound ErrorCode = "REASONING_MODEL_NOT_FOUND"
)

// ErrModelNotFound is returned by Check when the endpoint does not serve the configured model.
var ErrModelNotFound = errors.New("model not available at endpoint")

// TimeoutError reports that a single decide call exceeded its deadline. Callers may retry it.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("[%s] reasoning call exceeded %s: %v", ErrCodeTimeout, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// EndpointError reports a non-success answer from the model endpoint.
type EndpointError struct {
	StatusCode int
	Body       string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("[%s] endpoint returned status %d: %s", ErrCodeEndpoint, e.StatusCode, e.Body)
}
