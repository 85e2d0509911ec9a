// internal/executor/errors.go
package executor

import (
	"fmt"

	"github.com/xkilldash9x/glimpse/internal/decision"
)

// ErrorCode classifies executor failures.
type ErrorCode string

const (
	ErrCodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
)

// DeviceUnavailableError reports that the input channel is gone. It ends the run.
type DeviceUnavailableError struct {
	Kind decision.Kind
	Err  error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("[%s] input device unavailable during %s: %v", ErrCodeDeviceUnavailable, e.Kind, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// Code returns the error's classification.
func (e *DeviceUnavailableError) Code() ErrorCode { return ErrCodeDeviceUnavailable }
