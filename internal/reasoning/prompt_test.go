// internal/reasoning/prompt_test.go
package reasoning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/glimpse/internal/decision"
)

func TestUserPrompt(t *testing.T) {
	t.Run("first turn", func(t *testing.T) {
		p := UserPrompt(Request{Task: "Open Notepad", Context: NewContext(0), Iteration: 1})
		assert.Contains(t, p, "Task: Open Notepad")
		assert.Contains(t, p, "What should I do first")
		assert.NotContains(t, p, "Previous steps")
	})

	t.Run("later turns list history with outcomes", func(t *testing.T) {
		ctx := NewContext(0).Append(Entry{
			Iteration: 1,
			Decision: decision.Decision{
				Action:    decision.Click{At: decision.Point{X: 10, Y: 990}, Button: decision.ButtonLeft, Mode: decision.ModeSingle},
				Rationale: "open the start menu",
			},
		}).WithOutcome(1, "ok").Append(Entry{
			Iteration: 2,
			Decision:  decision.Decision{Action: decision.TypeText{Text: "notepad"}},
		})

		p := UserPrompt(Request{Task: "Open Notepad", Context: ctx, Iteration: 3})
		assert.Contains(t, p, "Previous steps:")
		assert.Contains(t, p, "1. click single left at (10,990) -> ok")
		assert.Contains(t, p, "reason: open the start menu")
		assert.Contains(t, p, `2. type "notepad" -> pending`)
		assert.Contains(t, p, "What should I do next?")
	})

	t.Run("retry note is appended", func(t *testing.T) {
		note := RetryNote(errors.New("unknown action 'teleport'"))
		p := UserPrompt(Request{Task: "x", Context: NewContext(0), Note: note})
		assert.Contains(t, p, "Note: your previous answer could not be used (unknown action 'teleport')")
	})
}

func TestSystemPromptMentionsContract(t *testing.T) {
	assert.Contains(t, SystemPrompt, "1000x1000")
	assert.Contains(t, SystemPrompt, "terminate")
	assert.Contains(t, SystemPrompt, `"computer"`)
}
