// internal/agent/state.go
package agent

// State is a phase of the control loop.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateReasoning
	StateActing
	StateChecking
	StateTerminated
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateCapturing:  "capturing",
	StateReasoning:  "reasoning",
	StateActing:     "acting",
	StateChecking:   "checking",
	StateTerminated: "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions lists the successors of every state. Any state may also move to terminated.
var transitions = map[State][]State{
	StateIdle:      {StateCapturing},
	StateCapturing: {StateReasoning},
	StateReasoning: {StateActing},
	StateActing:    {StateChecking},
	StateChecking:  {StateCapturing},
}

// CanTransitionTo reports whether the loop may move from s to next.
func (s State) CanTransitionTo(next State) bool {
	if s == StateTerminated {
		return false
	}
	if next == StateTerminated {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
