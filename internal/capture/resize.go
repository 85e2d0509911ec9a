// internal/capture/resize.go
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Downscale fits shot inside maxWidth x maxHeight, keeping its aspect ratio. Screenshots that
// already fit are returned unchanged. Scale is adjusted so it keeps relating image pixels to
// input coordinates.
func Downscale(shot *Screenshot, maxWidth, maxHeight int) (*Screenshot, error) {
	if shot == nil || len(shot.PNG) == 0 {
		return nil, NewCaptureError(ErrCodeEmptyCapture, errors.New("screenshot has no image data"))
	}
	if maxWidth <= 0 || maxHeight <= 0 || (shot.Width <= maxWidth && shot.Height <= maxHeight) {
		return shot, nil
	}

	img, err := imaging.Decode(bytes.NewReader(shot.PNG))
	if err != nil {
		return nil, NewCaptureError(ErrCodeUndecodable, fmt.Errorf("failed to decode screenshot: %w", err))
	}

	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, NewCaptureError(ErrCodeUndecodable, fmt.Errorf("failed to encode downscaled screenshot: %w", err))
	}

	out := *shot
	out.PNG = buf.Bytes()
	out.Width = fitted.Bounds().Dx()
	out.Height = fitted.Bounds().Dy()
	if shot.Width > 0 && shot.Scale > 0 {
		out.Scale = shot.Scale * float64(out.Width) / float64(shot.Width)
	}
	return &out, nil
}

type bounded struct {
	next      Provider
	maxWidth  int
	maxHeight int
	logger    *zap.Logger
}

// Bounded returns a provider whose screenshots never exceed maxWidth x maxHeight.
func Bounded(next Provider, maxWidth, maxHeight int, logger *zap.Logger) Provider {
	return &bounded{next: next, maxWidth: maxWidth, maxHeight: maxHeight, logger: logger.Named("capture")}
}

func (b *bounded) Capture(ctx context.Context) (*Screenshot, error) {
	shot, err := b.next.Capture(ctx)
	if err != nil {
		return nil, err
	}
	fitted, err := Downscale(shot, b.maxWidth, b.maxHeight)
	if err != nil {
		return nil, err
	}
	if fitted != shot {
		b.logger.Debug("Screenshot downscaled",
			zap.Int("from_width", shot.Width), zap.Int("from_height", shot.Height),
			zap.Int("to_width", fitted.Width), zap.Int("to_height", fitted.Height))
	}
	return fitted, nil
}
