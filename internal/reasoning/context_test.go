// internal/reasoning/context_test.go
package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/glimpse/internal/decision"
)

func entry(i int) Entry {
	return Entry{Iteration: i, Observation: "screen", Decision: decision.Decision{Action: decision.Move{To: decision.Point{X: float64(i), Y: 1}}}}
}

func TestContext_AppendIsCopyOnWrite(t *testing.T) {
	base := NewContext(0)
	one := base.Append(entry(1))
	two := one.Append(entry(2))
	branch := one.Append(entry(99))

	assert.Equal(t, 0, base.Len())
	assert.Equal(t, 1, one.Len())
	assert.Equal(t, []int{1, 2}, iterations(two))
	assert.Equal(t, []int{1, 99}, iterations(branch), "appending to a shared prefix must not clobber siblings")
}

func TestContext_Window(t *testing.T) {
	c := NewContext(3)
	for i := 1; i <= 5; i++ {
		c = c.Append(entry(i))
	}
	assert.Equal(t, []int{3, 4, 5}, iterations(c))
	assert.Equal(t, 3, c.Window())

	all := NewContext(0)
	for i := 1; i <= 50; i++ {
		all = all.Append(entry(i))
	}
	assert.Equal(t, 50, all.Len(), "a zero window keeps everything")

	assert.Equal(t, 0, NewContext(-2).Window())
}

func TestContext_WithOutcome(t *testing.T) {
	c := NewContext(0).Append(entry(1)).Append(entry(2))
	updated := c.WithOutcome(2, "ok")

	assert.Equal(t, "", c.Entries()[1].Outcome, "receiver is untouched")
	assert.Equal(t, "ok", updated.Entries()[1].Outcome)
	assert.Equal(t, "", updated.Entries()[0].Outcome)

	same := c.WithOutcome(7, "ignored")
	assert.Equal(t, c.Entries(), same.Entries())
}

func TestContext_EntriesReturnsCopy(t *testing.T) {
	c := NewContext(0).Append(entry(1))
	es := c.Entries()
	es[0].Outcome = "mutated"
	assert.Equal(t, "", c.Entries()[0].Outcome)
}

func iterations(c Context) []int {
	var out []int
	for _, e := range c.Entries() {
		out = append(out, e.Iteration)
	}
	return out
}
