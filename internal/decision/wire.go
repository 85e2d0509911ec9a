// internal/decision/wire.go
package decision

// wireArgs is the arguments object of a computer call, as the model emits it.
type wireArgs struct {
	Action          string    `json:"action"`
	Coordinate      []float64 `json:"coordinate,omitempty"`
	StartCoordinate []float64 `json:"start_coordinate,omitempty"`
	EndCoordinate   []float64 `json:"end_coordinate,omitempty"`
	Button          string    `json:"button,omitempty"`
	Mode            string    `json:"mode,omitempty"`
	Text            string    `json:"text,omitempty"`
	Keys            []string  `json:"keys,omitempty"`
	Direction       string    `json:"direction,omitempty"`
	Magnitude       int       `json:"magnitude,omitempty"`
	DurationMS      int64     `json:"duration_ms,omitempty"`
	Status          string    `json:"status,omitempty"`
	Message         *string   `json:"message,omitempty"`
	Rationale       string    `json:"rationale,omitempty"`
}

func pair(p Point) []float64 { return []float64{p.X, p.Y} }

// Arguments renders the decision in the wire form Parse accepts. It is used for the run log and
// for replaying prior turns to the model.
func (d Decision) Arguments() map[string]interface{} {
	raw, _ := d.MarshalJSON()
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// MarshalJSON encodes the decision as computer call arguments.
func (d Decision) MarshalJSON() ([]byte, error) {
	if d.Action == nil {
		return []byte("null"), nil
	}

	w := wireArgs{Action: string(d.Action.Kind()), Rationale: d.Rationale}
	switch a := d.Action.(type) {
	case Click:
		w.Coordinate, w.Button, w.Mode = pair(a.At), string(a.Button), string(a.Mode)
	case Move:
		w.Coordinate = pair(a.To)
	case Drag:
		w.StartCoordinate, w.EndCoordinate = pair(a.From), pair(a.To)
	case TypeText:
		w.Text = a.Text
	case KeyPress:
		for _, m := range a.Modifiers {
			w.Keys = append(w.Keys, string(m))
		}
		w.Keys = append(w.Keys, a.Key)
	case Scroll:
		w.Direction, w.Magnitude = string(a.Direction), a.Magnitude
	case Wait:
		w.DurationMS = a.Duration.Milliseconds()
	case Terminate:
		msg := a.Message
		w.Status, w.Message = string(a.Status), &msg
	}
	return json.Marshal(w)
}
