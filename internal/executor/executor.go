// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/glimpse/api/schemas"
	"github.com/xkilldash9x/glimpse/internal/decision"
	"github.com/xkilldash9x/glimpse/internal/humanoid"
	"github.com/xkilldash9x/glimpse/internal/metrics"
	"go.uber.org/zap"
)

// Outcome reasons with fixed meaning.
const (
	ReasonOK      = "ok"
	ReasonAborted = "aborted"
	ReasonBlocked = "blocked"
	ReasonNoOp    = "no device action"
)

// Outcome is the result of carrying out one action.
type Outcome struct {
	OK     bool
	Reason string
	// Target is the input-space point the action was aimed at, for pointer actions.
	Target  *humanoid.Vector2D
	Clamped bool
}

// Aborted reports whether the action was refused because the run is being aborted.
func (o Outcome) Aborted() bool { return !o.OK && o.Reason == ReasonAborted }

func (o Outcome) String() string {
	if o.OK {
		if o.Clamped {
			return "ok (clamped to screen)"
		}
		return ReasonOK
	}
	return "failed: " + o.Reason
}

// ResolutionSource reports the current display geometry.
type ResolutionSource interface {
	Resolution(ctx context.Context) (schemas.Resolution, error)
}

// Locker serializes access to the display.
type Locker interface {
	Acquire(ctx context.Context) error
	Release()
}

// Options tune an Executor.
type Options struct {
	Lock  Locker
	Abort AbortSignal
	// Blocked lists action kinds that are refused without touching the device.
	Blocked []string
	// ScrollNotch is the distance, in input units, of one unit of scroll magnitude.
	ScrollNotch float64
}

// actionHandler carries out one kind of action. target and clamped are reported on the outcome.
type actionHandler func(ctx context.Context, action decision.Action, res schemas.Resolution) (target *humanoid.Vector2D, clamped bool, err error)

// Executor turns validated actions into input on the display.
type Executor struct {
	controller humanoid.Controller
	display    ResolutionSource
	lock       Locker
	abort      AbortSignal
	blocked    map[decision.Kind]bool
	notch      float64
	logger     *zap.Logger
	handlers   map[decision.Kind]actionHandler
}

// New creates an Executor driving controller on the display described by res.
func New(controller humanoid.Controller, res ResolutionSource, opts Options, logger *zap.Logger) *Executor {
	e := &Executor{
		controller: controller,
		display:    res,
		lock:       opts.Lock,
		abort:      opts.Abort,
		blocked:    make(map[decision.Kind]bool),
		notch:      opts.ScrollNotch,
		logger:     logger.Named("executor"),
		handlers:   make(map[decision.Kind]actionHandler),
	}
	if e.abort == nil {
		e.abort = ContextAbort{}
	}
	if e.notch <= 0 {
		e.notch = 100
	}
	for _, k := range opts.Blocked {
		e.blocked[decision.Kind(strings.ToLower(strings.TrimSpace(k)))] = true
	}
	e.registerHandlers()
	return e
}

func (e *Executor) registerHandlers() {
	e.handlers[decision.KindClick] = e.handleClick
	e.handlers[decision.KindMove] = e.handleMove
	e.handlers[decision.KindDrag] = e.handleDrag
	e.handlers[decision.KindTypeText] = e.handleTypeText
	e.handlers[decision.KindKeyPress] = e.handleKeyPress
	e.handlers[decision.KindScroll] = e.handleScroll
}

// Execute carries out action. The returned error is non-nil only for fatal conditions
// (*DeviceUnavailableError); every other failure is reported on the Outcome.
func (e *Executor) Execute(ctx context.Context, action decision.Action) (Outcome, error) {
	if action == nil {
		return Outcome{OK: false, Reason: "no action"}, nil
	}
	kind := action.Kind()
	log := e.logger.With(zap.String("action", action.String()))

	if !decision.TouchesDevice(action) {
		return Outcome{OK: true, Reason: ReasonNoOp}, nil
	}
	if e.blocked[kind] {
		log.Warn("Refusing blocked action")
		metrics.ActionsExecuted.WithLabelValues(string(kind), ReasonBlocked).Inc()
		return Outcome{OK: false, Reason: ReasonBlocked}, nil
	}
	if aborted, why := e.abort.Aborted(ctx); aborted {
		log.Info("Abort signal received before acting", zap.String("reason", why))
		metrics.ActionsExecuted.WithLabelValues(string(kind), ReasonAborted).Inc()
		return Outcome{OK: false, Reason: ReasonAborted}, nil
	}

	handler, ok := e.handlers[kind]
	if !ok {
		return Outcome{OK: false, Reason: fmt.Sprintf("no handler for %s", kind)}, nil
	}

	if e.lock != nil {
		if err := e.lock.Acquire(ctx); err != nil {
			return e.classify(ctx, kind, err, log)
		}
		defer e.lock.Release()
	}

	res, err := e.display.Resolution(ctx)
	if err != nil {
		return e.classify(ctx, kind, fmt.Errorf("failed to read display resolution: %w", err), log)
	}
	if !res.Valid() {
		return Outcome{OK: false, Reason: fmt.Sprintf("display reported unusable resolution %dx%d@%g", res.Width, res.Height, res.Scale)}, nil
	}

	target, clamped, err := handler(ctx, action, res)
	if err != nil {
		out, ferr := e.classify(ctx, kind, err, log)
		out.Target, out.Clamped = target, clamped
		return out, ferr
	}

	metrics.ActionsExecuted.WithLabelValues(string(kind), ReasonOK).Inc()
	log.Debug("Action executed", zap.Bool("clamped", clamped))
	return Outcome{OK: true, Reason: ReasonOK, Target: target, Clamped: clamped}, nil
}

// classify sorts a device error into aborted, fatal or recoverable.
func (e *Executor) classify(ctx context.Context, kind decision.Kind, err error, log *zap.Logger) (Outcome, error) {
	switch {
	case ctx.Err() != nil:
		log.Info("Action interrupted", zap.Error(err))
		metrics.ActionsExecuted.WithLabelValues(string(kind), ReasonAborted).Inc()
		return Outcome{OK: false, Reason: ReasonAborted}, nil
	case errors.Is(err, schemas.ErrDeviceUnavailable):
		log.Error("Input device unavailable", zap.Error(err))
		metrics.ActionsExecuted.WithLabelValues(string(kind), "unavailable").Inc()
		return Outcome{OK: false, Reason: err.Error()}, &DeviceUnavailableError{Kind: kind, Err: err}
	default:
		log.Warn("Action failed", zap.Error(err))
		metrics.ActionsExecuted.WithLabelValues(string(kind), "failed").Inc()
		return Outcome{OK: false, Reason: err.Error()}, nil
	}
}

// mapPoint maps a canvas point and logs when it had to be clamped.
func (e *Executor) mapPoint(p decision.Point, res schemas.Resolution) (humanoid.Vector2D, bool) {
	v, clamped := Map(p, res)
	if clamped {
		e.logger.Debug("Target clamped to the visible area",
			zap.Stringer("canvas", p),
			zap.Stringer("mapped", v),
		)
	}
	return v, clamped
}

// -- Handlers --

func (e *Executor) handleClick(ctx context.Context, action decision.Action, res schemas.Resolution) (*humanoid.Vector2D, bool, error) {
	a := action.(decision.Click)
	target, clamped := e.mapPoint(a.At, res)
	err := e.controller.Click(ctx, target, mouseButton(a.Button), a.Mode.Count())
	return &target, clamped, err
}

func (e *Executor) handleMove(ctx context.Context, action decision.Action, res schemas.Resolution) (*humanoid.Vector2D, bool, error) {
	a := action.(decision.Move)
	target, clamped := e.mapPoint(a.To, res)
	return &target, clamped, e.controller.MoveTo(ctx, target)
}

func (e *Executor) handleDrag(ctx context.Context, action decision.Action, res schemas.Resolution) (*humanoid.Vector2D, bool, error) {
	a := action.(decision.Drag)
	from, c1 := e.mapPoint(a.From, res)
	to, c2 := e.mapPoint(a.To, res)
	return &to, c1 || c2, e.controller.Drag(ctx, from, to)
}

func (e *Executor) handleTypeText(ctx context.Context, action decision.Action, _ schemas.Resolution) (*humanoid.Vector2D, bool, error) {
	a := action.(decision.TypeText)
	return nil, false, e.controller.Type(ctx, a.Text)
}

func (e *Executor) handleKeyPress(ctx context.Context, action decision.Action, _ schemas.Resolution) (*humanoid.Vector2D, bool, error) {
	a := action.(decision.KeyPress)
	return nil, false, e.controller.Shortcut(ctx, keyEvent(a))
}

func (e *Executor) handleScroll(ctx context.Context, action decision.Action, _ schemas.Resolution) (*humanoid.Vector2D, bool, error) {
	a := action.(decision.Scroll)
	dx, dy := scrollDelta(a, e.notch)
	return nil, false, e.controller.Scroll(ctx, dx, dy)
}

// -- Conversions --

func mouseButton(b decision.Button) schemas.MouseButton {
	switch b {
	case decision.ButtonRight:
		return schemas.ButtonRight
	case decision.ButtonMiddle:
		return schemas.ButtonMiddle
	default:
		return schemas.ButtonLeft
	}
}

var modifierBits = map[decision.Modifier]schemas.KeyModifier{
	decision.ModCtrl:  schemas.ModCtrl,
	decision.ModAlt:   schemas.ModAlt,
	decision.ModShift: schemas.ModShift,
	decision.ModMeta:  schemas.ModMeta,
}

func keyEvent(a decision.KeyPress) schemas.KeyEventData {
	var mods schemas.KeyModifier
	for _, m := range a.Modifiers {
		mods |= modifierBits[m]
	}
	return schemas.KeyEventData{Key: a.Key, Modifiers: mods}
}

// scrollDelta converts a scroll decision into wheel deltas. Positive dy scrolls down.
func scrollDelta(a decision.Scroll, notch float64) (dx, dy float64) {
	dist := float64(a.Magnitude) * notch
	switch a.Direction {
	case decision.DirectionUp:
		return 0, -dist
	case decision.DirectionDown:
		return 0, dist
	case decision.DirectionLeft:
		return -dist, 0
	case decision.DirectionRight:
		return dist, 0
	}
	return 0, 0
}
