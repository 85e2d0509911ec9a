// internal/reasoning/prompt.go
package reasoning

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the model as an operator that acts one step at a time.
const SystemPrompt = `You are an assistant that can see, think, and act on a computer.

Each turn you receive a screenshot of the current screen and the task you are working on.
1. SEE: look at the screenshot and work out the current state.
2. THINK: decide the single next step that moves the task forward.
3. ACT: call the "computer" tool exactly once with that step.

Coordinates are on a 1000x1000 grid that covers the whole screenshot: [0, 0] is the top-left
corner and [1000, 1000] the bottom-right, whatever the real screen size is.

Guidelines:
- Aim for the center of buttons, links and fields.
- Take ONE action per turn. You will see the result in the next screenshot.
- Use "wait" after actions that take time, such as opening applications or loading pages.
- If an action did not have the effect you expected, adjust your approach instead of repeating it.
- When the task is complete, call terminate with status "success" and a short summary.
- If the task cannot be completed, call terminate with status "failure" and explain why.`

// UserPrompt renders the text that accompanies the screenshot.
func UserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", req.Task)

	if req.Context.Len() == 0 {
		b.WriteString("This is the current state of the screen. What should I do first to accomplish this task?")
	} else {
		b.WriteString("Previous steps:\n")
		for _, e := range req.Context.Entries() {
			outcome := e.Outcome
			if outcome == "" {
				outcome = "pending"
			}
			fmt.Fprintf(&b, "%d. %s -> %s\n", e.Iteration, e.Decision, outcome)
			if e.Decision.Rationale != "" {
				fmt.Fprintf(&b, "   reason: %s\n", e.Decision.Rationale)
			}
		}
		b.WriteString("\nThis is the current state after the previous action. What should I do next?")
	}

	if req.Note != "" {
		fmt.Fprintf(&b, "\n\nNote: %s", req.Note)
	}
	return b.String()
}

// RetryNote explains a rejected answer so the model can correct it.
func RetryNote(err error) string {
	return fmt.Sprintf("your previous answer could not be used (%v). Respond with exactly one call to the computer tool whose arguments match its schema.", err)
}
