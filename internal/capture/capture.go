// internal/capture/capture.go
package capture

import (
	"context"
	"fmt"
	"time"
)

// Screenshot is one still image of the display.
type Screenshot struct {
	// PNG holds the encoded image.
	PNG    []byte
	Width  int
	Height int
	// Scale is the ratio of image pixels to input coordinate units at capture time.
	Scale      float64
	CapturedAt time.Time
}

// Summary describes the screenshot in a few words for logs and conversation history.
func (s *Screenshot) Summary() string {
	if s == nil {
		return "no screenshot"
	}
	return fmt.Sprintf("screenshot %dx%d at %s", s.Width, s.Height, s.CapturedAt.Format(time.TimeOnly))
}

// Provider produces a screenshot of the current display on demand.
type Provider interface {
	Capture(ctx context.Context) (*Screenshot, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*Screenshot, error)

func (f ProviderFunc) Capture(ctx context.Context) (*Screenshot, error) { return f(ctx) }

// ErrorCode classifies capture failures.
type ErrorCode string

const (
	ErrCodeNoSurface    ErrorCode = "CAPTURE_NO_SURFACE"
	ErrCodeUndecodable  ErrorCode = "CAPTURE_UNDECODABLE"
	ErrCodeEmptyCapture ErrorCode = "CAPTURE_EMPTY"
)

// CaptureError reports that no usable image of the display could be produced. It is not retried.
type CaptureError struct {
	Code ErrorCode
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed [%s]: %v", e.Code, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// NewCaptureError wraps err with a code.
func NewCaptureError(code ErrorCode, err error) *CaptureError {
	return &CaptureError{Code: code, Err: err}
}

// Locker serializes access to the physical display.
type Locker interface {
	Acquire(ctx context.Context) error
	Release()
}

type guarded struct {
	next Provider
	lock Locker
}

// Guarded returns a provider that holds lock for the duration of every capture.
func Guarded(next Provider, lock Locker) Provider {
	return &guarded{next: next, lock: lock}
}

func (g *guarded) Capture(ctx context.Context) (*Screenshot, error) {
	if err := g.lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer g.lock.Release()
	return g.next.Capture(ctx)
}
