// cmd/wiring.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/glimpse/internal/agent"
	"github.com/xkilldash9x/glimpse/internal/capture"
	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/display"
	"github.com/xkilldash9x/glimpse/internal/executor"
	"github.com/xkilldash9x/glimpse/internal/humanoid"
	"github.com/xkilldash9x/glimpse/internal/metrics"
	"github.com/xkilldash9x/glimpse/internal/reasoning"
	"github.com/xkilldash9x/glimpse/internal/runlog"
	"github.com/xkilldash9x/glimpse/internal/store"
)

type runtimeOptions struct {
	SaveScreenshots bool
}

// runStore is the slice of the run history store the commands use.
type runStore interface {
	SaveRun(ctx context.Context, res agent.RunResult) error
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// runtime is everything a run needs, fully wired. Close releases it in reverse order.
type runtime struct {
	loop  *agent.Loop
	store runStore

	mu      sync.Mutex
	closers []func() error
}

func (rt *runtime) onClose(fn func() error) {
	rt.mu.Lock()
	rt.closers = append(rt.closers, fn)
	rt.mu.Unlock()
}

// Close releases the runtime's resources. It is safe to call more than once.
func (rt *runtime) Close() error {
	rt.mu.Lock()
	closers := rt.closers
	rt.closers = nil
	rt.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildRuntime opens the display and wires the capture, reasoning and input chain into a
// control loop. Optional parts (screenshots, run log, metrics, history) follow the config.
func buildRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions, logger *zap.Logger) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			if closeErr := rt.Close(); closeErr != nil {
				logger.Warn("Cleanup after failed startup reported errors", zap.Error(closeErr))
			}
		}
	}()

	session, err := display.NewSession(ctx, cfg.Display(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open display session: %w", err)
	}
	rt.onClose(session.Close)

	lock := display.NewLock()
	captureCfg := cfg.Capture()
	capturer := capture.Bounded(capture.Guarded(session, lock), captureCfg.MaxWidth, captureCfg.MaxHeight, logger)

	controller := humanoid.New(humanoid.NewConfig(cfg.Input()), logger, session)

	abortCfg := cfg.Abort()
	signals := executor.AnyAbort{executor.ContextAbort{}}
	if abortCfg.CornerEnabled {
		signals = append(signals, executor.NewCornerAbort(session, abortCfg.Corner, abortCfg.CornerRadius, logger))
	}
	exec := executor.New(controller, session, executor.Options{
		Lock:        lock,
		Abort:       signals,
		Blocked:     cfg.Agent().BlockedActions,
		ScrollNotch: cfg.Input().ScrollNotchPx,
	}, logger)

	client, err := reasoning.NewClient(ctx, cfg.Reasoning(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning client: %w", err)
	}

	deps := agent.Deps{
		Capturer: capturer,
		Reasoner: client,
		Executor: exec,
		Abort:    signals,
	}

	if opts.SaveScreenshots {
		persister, err := capture.NewPersister(captureCfg.ScreenshotDir, captureCfg.PersistBuffer, logger)
		if err != nil {
			return nil, err
		}
		rt.onClose(persister.Close)
		deps.Screenshots = persister
	}

	if path := cfg.RunLog().Path; path != "" {
		journal, err := runlog.New(cfg.RunLog(), logger)
		if err != nil {
			return nil, err
		}
		rt.onClose(journal.Close)
		deps.Journal = journal
	}

	if m := cfg.Metrics(); m.Enabled {
		metricsCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := metrics.Serve(metricsCtx, m.Addr, logger); err != nil {
				logger.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
		rt.onClose(func() error {
			cancel()
			<-done
			return nil
		})
	}

	if url := cfg.Database().URL; url != "" {
		s, closeFn, err := store.Connect(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		rt.onClose(func() error { closeFn(); return nil })
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		rt.store = s
	}

	rt.loop, err = agent.New(deps, cfg.Agent(), cfg.Reasoning(), logger)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
