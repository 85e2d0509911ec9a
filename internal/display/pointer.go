// internal/display/pointer.go
package display

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/glimpse/internal/humanoid"
)

// pointerScript records the last pointer position seen by the page. Both synthetic
// and operator-driven moves land here; the tracker tells them apart.
const pointerScript = `(() => {
  if (window.__glimpsePointer) return;
  window.__glimpsePointer = {x: -1, y: -1, seen: false};
  const track = (e) => {
    window.__glimpsePointer = {x: e.clientX, y: e.clientY, seen: true};
  };
  window.addEventListener('mousemove', track, {capture: true, passive: true});
  window.addEventListener('mousedown', track, {capture: true, passive: true});
})();`

type pointerState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Seen bool    `json:"seen"`
}

// pointerTracker remembers where synthetic input last put the pointer.
type pointerTracker struct {
	mu   sync.Mutex
	last humanoid.Vector2D
	set  bool
}

func (p *pointerTracker) dispatched(x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = humanoid.Vector2D{X: x, Y: y}
	p.set = true
}

func (p *pointerTracker) get() (humanoid.Vector2D, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.set
}

// LastDispatched returns the position of the most recent synthetic pointer event.
func (s *Session) LastDispatched() (humanoid.Vector2D, bool) {
	return s.pointer.get()
}

// OperatorPointer returns the last pointer position observed by the page, in CSS pixels.
// ok is false until the page has seen any pointer movement.
func (s *Session) OperatorPointer(ctx context.Context) (humanoid.Vector2D, bool, error) {
	var st pointerState
	err := s.run(ctx, chromedp.Evaluate(`window.__glimpsePointer || {x: -1, y: -1, seen: false}`, &st))
	if err != nil {
		return humanoid.Vector2D{}, false, err
	}
	if !st.Seen {
		return humanoid.Vector2D{}, false, nil
	}
	return humanoid.Vector2D{X: st.X, Y: st.Y}, true, nil
}

// Viewport returns the visible area in CSS pixels, the space pointer positions are reported in.
func (s *Session) Viewport(ctx context.Context) (width, height float64, err error) {
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		width, height, _, err = viewportMetrics(ctx)
		return err
	}))
	return width, height, err
}
