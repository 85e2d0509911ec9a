// internal/agent/errors.go
package agent

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why a run ended in error.
type ErrorCode string

const (
	ErrCodeInvalidTask       ErrorCode = "INVALID_TASK"
	ErrCodeCaptureFailed     ErrorCode = "CAPTURE_FAILED"
	ErrCodeReasoningFailed   ErrorCode = "REASONING_FAILED"
	ErrCodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	ErrCodeExecutionFailed   ErrorCode = "EXECUTION_FAILED"
	ErrCodeModelGaveUp       ErrorCode = "MODEL_REPORTED_FAILURE"
	ErrCodeTaskDuration      ErrorCode = "TASK_DURATION_EXCEEDED"
)

// ErrTaskDurationExceeded is the cancellation cause of a run that outlived agent.max_task_duration.
var ErrTaskDurationExceeded = errors.New("maximum task duration exceeded")

// ErrAborted is the cancellation cause of a run stopped by the abort signal between
// device actions (during a wait or a reasoning call, for example).
var ErrAborted = errors.New("aborted by operator")

// ErrModelGaveUp is reported when the model terminates the run with a failure status.
var ErrModelGaveUp = errors.New("model reported the task as failed")

// RunError records where a run failed. It wraps the component error, so errors.As still
// finds a *capture.CaptureError or *executor.DeviceUnavailableError through it.
type RunError struct {
	Code      ErrorCode
	State     State
	Iteration int
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %s failed on iteration %d: %v", e.Code, e.State, e.Iteration, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
