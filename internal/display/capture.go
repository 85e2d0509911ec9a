// internal/display/capture.go
package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/glimpse/api/schemas"
	"github.com/xkilldash9x/glimpse/internal/capture"
	"go.uber.org/zap"
)

var _ capture.Provider = (*Session)(nil)

// Capture screenshots the visible viewport at device resolution.
func (s *Session) Capture(ctx context.Context) (*capture.Screenshot, error) {
	var buf []byte
	var cssWidth float64
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		w, _, _, err := viewportMetrics(ctx)
		if err != nil {
			return err
		}
		cssWidth = w
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, schemas.ErrDeviceUnavailable) {
			return nil, capture.NewCaptureError(capture.ErrCodeNoSurface, err)
		}
		return nil, capture.NewCaptureError(capture.ErrCodeNoSurface, fmt.Errorf("screenshot failed: %w", err))
	}
	shot, err := decodeScreenshot(buf, cssWidth, time.Now())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Captured display",
		zap.Int("width", shot.Width),
		zap.Int("height", shot.Height),
		zap.Float64("scale", shot.Scale),
	)
	return shot, nil
}

// decodeScreenshot validates the PNG and fills in its geometry. Scale is the ratio of
// image pixels to CSS pixels.
func decodeScreenshot(buf []byte, cssWidth float64, at time.Time) (*capture.Screenshot, error) {
	if len(buf) == 0 {
		return nil, capture.NewCaptureError(capture.ErrCodeEmptyCapture, errors.New("browser returned an empty screenshot"))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, capture.NewCaptureError(capture.ErrCodeUndecodable, err)
	}
	if format != "png" {
		return nil, capture.NewCaptureError(capture.ErrCodeUndecodable, fmt.Errorf("unexpected image format %q", format))
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, capture.NewCaptureError(capture.ErrCodeEmptyCapture, errors.New("screenshot has zero area"))
	}

	scale := 1.0
	if cssWidth > 0 {
		scale = float64(cfg.Width) / cssWidth
	}
	return &capture.Screenshot{
		PNG:        buf,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Scale:      scale,
		CapturedAt: at,
	}, nil
}
