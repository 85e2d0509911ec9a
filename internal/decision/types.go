// internal/decision/types.go
package decision

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the discriminant of an action decision.
type Kind string

const (
	KindClick     Kind = "click"
	KindMove      Kind = "move"
	KindDrag      Kind = "drag"
	KindTypeText  Kind = "type_text"
	KindKeyPress  Kind = "key_press"
	KindScroll    Kind = "scroll"
	KindWait      Kind = "wait"
	KindTerminate Kind = "terminate"
)

// Kinds lists every action kind, in the order they are documented to the model.
var Kinds = []Kind{KindClick, KindMove, KindDrag, KindTypeText, KindKeyPress, KindScroll, KindWait, KindTerminate}

// CanvasSize is the edge length of the virtual canvas decisions address.
const CanvasSize = 1000

// Point is a position on the normalized 1000x1000 canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InCanvas reports whether p lies within [0, CanvasSize] on both axes.
func (p Point) InCanvas() bool {
	return p.X >= 0 && p.X <= CanvasSize && p.Y >= 0 && p.Y <= CanvasSize
}

func (p Point) String() string { return fmt.Sprintf("(%g,%g)", p.X, p.Y) }

type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

type ClickMode string

const (
	ModeSingle ClickMode = "single"
	ModeDouble ClickMode = "double"
)

// Count returns how many presses the mode represents.
func (m ClickMode) Count() int {
	if m == ModeDouble {
		return 2
	}
	return 1
}

type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

type TerminalStatus string

const (
	StatusSuccess TerminalStatus = "success"
	StatusFailure TerminalStatus = "failure"
)

type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModAlt   Modifier = "alt"
	ModShift Modifier = "shift"
	ModMeta  Modifier = "meta"
)

// Action is one of Click, Move, Drag, TypeText, KeyPress, Scroll, Wait or Terminate.
// The set is closed: only types in this package implement it.
type Action interface {
	Kind() Kind
	String() string
	sealed()
}

type Click struct {
	At     Point
	Button Button
	Mode   ClickMode
}

type Move struct {
	To Point
}

type Drag struct {
	From Point
	To   Point
}

type TypeText struct {
	Text string
}

// KeyPress is a chord: every modifier is held while Key is pressed.
type KeyPress struct {
	Modifiers []Modifier
	Key       string
}

type Scroll struct {
	Direction Direction
	Magnitude int
}

type Wait struct {
	Duration time.Duration
}

type Terminate struct {
	Status  TerminalStatus
	Message string
}

func (Click) Kind() Kind     { return KindClick }
func (Move) Kind() Kind      { return KindMove }
func (Drag) Kind() Kind      { return KindDrag }
func (TypeText) Kind() Kind  { return KindTypeText }
func (KeyPress) Kind() Kind  { return KindKeyPress }
func (Scroll) Kind() Kind    { return KindScroll }
func (Wait) Kind() Kind      { return KindWait }
func (Terminate) Kind() Kind { return KindTerminate }

func (Click) sealed()     {}
func (Move) sealed()      {}
func (Drag) sealed()      {}
func (TypeText) sealed()  {}
func (KeyPress) sealed()  {}
func (Scroll) sealed()    {}
func (Wait) sealed()      {}
func (Terminate) sealed() {}

func (a Click) String() string {
	return fmt.Sprintf("click %s %s at %s", a.Mode, a.Button, a.At)
}

func (a Move) String() string { return "move to " + a.To.String() }

func (a Drag) String() string {
	return fmt.Sprintf("drag from %s to %s", a.From, a.To)
}

func (a TypeText) String() string { return fmt.Sprintf("type %q", a.Text) }

func (a KeyPress) String() string { return "press " + a.Chord() }

// Chord renders the key press in the familiar "ctrl+shift+t" form.
func (a KeyPress) Chord() string {
	parts := make([]string, 0, len(a.Modifiers)+1)
	for _, m := range a.Modifiers {
		parts = append(parts, string(m))
	}
	return strings.Join(append(parts, a.Key), "+")
}

func (a Scroll) String() string {
	return fmt.Sprintf("scroll %s by %d", a.Direction, a.Magnitude)
}

func (a Wait) String() string { return "wait " + a.Duration.String() }

func (a Terminate) String() string {
	return fmt.Sprintf("terminate (%s): %s", a.Status, a.Message)
}

// TouchesDevice reports whether executing a requires an input device.
func TouchesDevice(a Action) bool {
	switch a.(type) {
	case Wait, Terminate:
		return false
	default:
		return true
	}
}

// Decision is one validated answer from the reasoning step.
type Decision struct {
	Action    Action
	Rationale string
}

// IsTerminal reports whether the decision ends the run.
func (d Decision) IsTerminal() bool {
	_, ok := d.Action.(Terminate)
	return ok
}

// Kind returns the action kind, or "" for an empty decision.
func (d Decision) Kind() Kind {
	if d.Action == nil {
		return ""
	}
	return d.Action.Kind()
}

func (d Decision) String() string {
	if d.Action == nil {
		return "<none>"
	}
	return d.Action.String()
}
