// internal/reasoning/context.go
package reasoning

import "github.com/xkilldash9x/glimpse/internal/decision"

// Entry is one prior turn: what the screen looked like, what was decided, and how it went.
type Entry struct {
	Iteration   int
	Observation string
	Decision    decision.Decision
	// Outcome is filled in once the decision has been carried out.
	Outcome string
}

// Context is the conversation history handed to the model. It is a value: Append and
// WithOutcome return a new Context and never modify the receiver's entries.
type Context struct {
	entries []Entry
	window  int
}

// NewContext returns an empty history that keeps the most recent window entries. A window of
// zero or less keeps everything.
func NewContext(window int) Context {
	if window < 0 {
		window = 0
	}
	return Context{window: window}
}

// Append returns a copy of c with e added, dropping the oldest entries beyond the window.
func (c Context) Append(e Entry) Context {
	next := make([]Entry, len(c.entries), len(c.entries)+1)
	copy(next, c.entries)
	next = append(next, e)
	if c.window > 0 && len(next) > c.window {
		next = next[len(next)-c.window:]
	}
	return Context{entries: next, window: c.window}
}

// WithOutcome returns a copy of c with the outcome of the given iteration recorded.
func (c Context) WithOutcome(iteration int, outcome string) Context {
	next := make([]Entry, len(c.entries))
	copy(next, c.entries)
	for i := len(next) - 1; i >= 0; i-- {
		if next[i].Iteration == iteration {
			next[i].Outcome = outcome
			break
		}
	}
	return Context{entries: next, window: c.window}
}

// Entries returns a copy of the retained entries, oldest first.
func (c Context) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c Context) Len() int    { return len(c.entries) }
func (c Context) Window() int { return c.window }
