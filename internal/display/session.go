// internal/display/session.go
package display

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/glimpse/api/schemas"
	"github.com/xkilldash9x/glimpse/internal/config"
	"go.uber.org/zap"
)

// Session is a browser tab driven over the DevTools protocol and used as the display
// surface: it is screenshotted for observation and receives synthetic pointer and
// keyboard input.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc

	cfg    config.DisplayConfig
	logger *zap.Logger

	pointer   pointerTracker
	closeOnce sync.Once
}

// NewSession launches (or attaches to) a browser and prepares a tab sized to the
// configured viewport. The session outlives ctx; call Close to shut it down.
func NewSession(ctx context.Context, cfg config.DisplayConfig, logger *zap.Logger) (*Session, error) {
	log := logger.Named("display")
	base := context.WithoutCancel(ctx)

	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if cfg.RemoteURL != "" {
		log.Info("Attaching to remote browser", zap.String("url", cfg.RemoteURL))
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(base, cfg.RemoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(base, allocatorOptions(cfg)...)
	}

	sugar := log.Sugar()
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	s := &Session{
		ctx:         tabCtx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
		cfg:         cfg,
		logger:      log,
	}

	scale := cfg.DeviceScaleFactor
	if scale <= 0 {
		scale = 1
	}
	startURL := cfg.StartURL
	if startURL == "" {
		startURL = "about:blank"
	}

	setup := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(cfg.Width), int64(cfg.Height), scale, false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(pointerScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(startURL),
	}
	if err := s.run(ctx, setup); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize display session: %w", err)
	}

	log.Info("Display session ready",
		zap.String("start_url", startURL),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Float64("scale", scale),
	)
	return s, nil
}

func allocatorOptions(cfg config.DisplayConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// Close shuts down the tab and, for launched browsers, the browser process.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(s.ctx); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = cerr
		}
		s.cancel()
		s.cancelAlloc()
		s.logger.Debug("Display session closed")
	})
	return err
}

// Alive reports whether the browser connection is still usable.
func (s *Session) Alive() bool {
	return s.ctx.Err() == nil
}

// run executes actions against the tab, bounded by both the caller's ctx and the session.
// Failures caused by the browser going away are reported as schemas.ErrDeviceUnavailable.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if !s.Alive() {
		return fmt.Errorf("%w: browser session closed", schemas.ErrDeviceUnavailable)
	}
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !s.Alive() {
		return fmt.Errorf("%w: %v", schemas.ErrDeviceUnavailable, err)
	}
	return err
}

// Resolution reports the surface size in physical pixels and its device pixel ratio.
func (s *Session) Resolution(ctx context.Context) (schemas.Resolution, error) {
	var width, height, dpr float64
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		width, height, dpr, err = viewportMetrics(ctx)
		return err
	}))
	if err != nil {
		return schemas.Resolution{}, fmt.Errorf("failed to read viewport metrics: %w", err)
	}
	return schemas.Resolution{
		Width:  int(math.Round(width * dpr)),
		Height: int(math.Round(height * dpr)),
		Scale:  dpr,
	}, nil
}

// viewportMetrics returns the visual viewport in CSS pixels and the device pixel ratio.
func viewportMetrics(ctx context.Context) (width, height, dpr float64, err error) {
	_, _, _, _, cssVisual, _, err := page.GetLayoutMetrics().Do(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	if cssVisual == nil {
		return 0, 0, 0, errors.New("browser reported no visual viewport")
	}
	if err := chromedp.Evaluate(`window.devicePixelRatio`, &dpr).Do(ctx); err != nil {
		return 0, 0, 0, err
	}
	if dpr <= 0 {
		dpr = 1
	}
	return cssVisual.ClientWidth, cssVisual.ClientHeight, dpr, nil
}
