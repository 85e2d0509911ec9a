// internal/decision/parse.go
package decision

import (
	"bytes"
	"math"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/glimpse/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToolName is the single function the model is allowed to call.
const ToolName = "computer"

// Wire field names.
const (
	FieldAction          = "action"
	FieldCoordinate      = "coordinate"
	FieldStartCoordinate = "start_coordinate"
	FieldEndCoordinate   = "end_coordinate"
	FieldButton          = "button"
	FieldMode            = "mode"
	FieldText            = "text"
	FieldKeys            = "keys"
	FieldDirection       = "direction"
	FieldMagnitude       = "magnitude"
	FieldDurationMS      = "duration_ms"
	FieldStatus          = "status"
	FieldMessage         = "message"
	FieldRationale       = "rationale"
)

const rawLimit = 300

type fields map[string]interface{}

// Parse validates the arguments object of a computer call and returns the decision it describes.
// Unknown fields are ignored.
func Parse(args []byte) (Decision, error) {
	var f fields
	if err := json.Unmarshal(args, &f); err != nil || f == nil {
		return Decision{}, &ParseError{Code: ErrCodeMalformed, Reason: "arguments are not a JSON object", Raw: llmutil.Truncate(string(args), rawLimit)}
	}

	d, err := f.decision()
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Raw = llmutil.Truncate(string(args), rawLimit)
		}
		return Decision{}, err
	}
	return d, nil
}

// ParseToolCall validates a named function call. Arguments encoded as a JSON string are unwrapped.
func ParseToolCall(name string, args []byte) (Decision, error) {
	if name != ToolName {
		return Decision{}, &ParseError{Code: ErrCodeUnknownTool, Reason: "unknown tool '" + name + "', expected '" + ToolName + "'"}
	}
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return Decision{}, &ParseError{Code: ErrCodeMalformed, Reason: "arguments string is not valid JSON", Raw: llmutil.Truncate(string(args), rawLimit)}
		}
		trimmed = []byte(inner)
	}
	return Parse(trimmed)
}

type textCall struct {
	Name      string              `json:"name"`
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// ExtractToolCall recovers a tool call from free-form model text, for endpoints that answer in
// content instead of structured calls. It understands <tool_call>{...}</tool_call> blocks,
// fenced JSON, and a bare arguments object carrying an "action".
func ExtractToolCall(content string) (string, []byte, error) {
	body, ok := llmutil.ExtractTagged(content, "tool_call")
	if !ok {
		body, ok = llmutil.ExtractJSONObject(content)
	}
	if !ok {
		return "", nil, &ParseError{Code: ErrCodeNoToolCall, Reason: "response contains no tool call", Raw: llmutil.Truncate(content, rawLimit)}
	}

	var call textCall
	if err := json.Unmarshal([]byte(body), &call); err != nil {
		return "", nil, &ParseError{Code: ErrCodeMalformed, Reason: "tool call is not valid JSON", Raw: llmutil.Truncate(body, rawLimit)}
	}
	if call.Name != "" && len(call.Arguments) > 0 {
		return call.Name, call.Arguments, nil
	}

	var probe fields
	if err := json.Unmarshal([]byte(body), &probe); err == nil {
		if _, ok := probe[FieldAction]; ok {
			return ToolName, []byte(body), nil
		}
	}
	return "", nil, &ParseError{Code: ErrCodeNoToolCall, Reason: "JSON in response is not a computer call", Raw: llmutil.Truncate(body, rawLimit)}
}

// ParseContent is ExtractToolCall followed by ParseToolCall.
func ParseContent(content string) (Decision, error) {
	name, args, err := ExtractToolCall(content)
	if err != nil {
		return Decision{}, err
	}
	return ParseToolCall(name, args)
}

func (f fields) decision() (Decision, error) {
	kind, err := f.str(FieldAction)
	if err != nil {
		return Decision{}, err
	}

	var action Action
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindClick:
		action, err = f.click()
	case KindMove:
		var p Point
		p, err = f.point(FieldCoordinate)
		action = Move{To: p}
	case KindDrag:
		action, err = f.drag()
	case KindTypeText:
		action, err = f.typeText()
	case KindKeyPress:
		action, err = f.keyPress()
	case KindScroll:
		action, err = f.scroll()
	case KindWait:
		action, err = f.wait()
	case KindTerminate:
		action, err = f.terminate()
	default:
		return Decision{}, &ParseError{Code: ErrCodeUnknownAction, Field: FieldAction, Reason: "unknown action '" + kind + "'"}
	}
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Action: action}
	if r, ok := f[FieldRationale].(string); ok {
		d.Rationale = r
	}
	return d, nil
}

func (f fields) click() (Action, error) {
	p, err := f.point(FieldCoordinate)
	if err != nil {
		return nil, err
	}
	button, err := f.enum(FieldButton, string(ButtonLeft), string(ButtonRight), string(ButtonMiddle))
	if err != nil {
		return nil, err
	}
	mode, err := f.enum(FieldMode, string(ModeSingle), string(ModeDouble))
	if err != nil {
		return nil, err
	}
	return Click{At: p, Button: Button(button), Mode: ClickMode(mode)}, nil
}

func (f fields) drag() (Action, error) {
	from, err := f.point(FieldStartCoordinate)
	if err != nil {
		return nil, err
	}
	to, err := f.point(FieldEndCoordinate)
	if err != nil {
		return nil, err
	}
	return Drag{From: from, To: to}, nil
}

func (f fields) typeText() (Action, error) {
	text, err := f.str(FieldText)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, invalid(FieldText, "must not be empty")
	}
	return TypeText{Text: text}, nil
}

func (f fields) keyPress() (Action, error) {
	v, ok := f[FieldKeys]
	if !ok || v == nil {
		return nil, missing(FieldKeys)
	}

	var names []string
	switch keys := v.(type) {
	case string:
		names = splitChord(keys)
	case []interface{}:
		for i, k := range keys {
			s, ok := k.(string)
			if !ok {
				return nil, invalid(FieldKeys, "element %d must be a string", i)
			}
			names = append(names, s)
		}
	default:
		return nil, invalid(FieldKeys, "must be an array of key names")
	}

	kp, err := ParseChord(names)
	if err != nil {
		return nil, err
	}
	return kp, nil
}

func (f fields) scroll() (Action, error) {
	dir, err := f.enum(FieldDirection, string(DirectionUp), string(DirectionDown), string(DirectionLeft), string(DirectionRight))
	if err != nil {
		return nil, err
	}
	mag, err := f.positiveInt(FieldMagnitude)
	if err != nil {
		return nil, err
	}
	return Scroll{Direction: Direction(dir), Magnitude: int(mag)}, nil
}

func (f fields) wait() (Action, error) {
	ms, err := f.positiveInt(FieldDurationMS)
	if err != nil {
		return nil, err
	}
	return Wait{Duration: time.Duration(ms) * time.Millisecond}, nil
}

func (f fields) terminate() (Action, error) {
	status, err := f.enum(FieldStatus, string(StatusSuccess), string(StatusFailure))
	if err != nil {
		return nil, err
	}
	msg, err := f.str(FieldMessage)
	if err != nil {
		return nil, err
	}
	return Terminate{Status: TerminalStatus(status), Message: msg}, nil
}

// -- field accessors --

func (f fields) str(name string) (string, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return "", missing(name)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(name, "must be a string")
	}
	return s, nil
}

func (f fields) enum(name string, allowed ...string) (string, error) {
	s, err := f.str(name)
	if err != nil {
		return "", err
	}
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if norm == a {
			return a, nil
		}
	}
	return "", invalid(name, "%q is not one of [%s]", s, strings.Join(allowed, ", "))
}

func (f fields) positiveInt(name string) (int64, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return 0, missing(name)
	}
	n, ok := v.(float64)
	if !ok {
		return 0, invalid(name, "must be a number")
	}
	if n != math.Trunc(n) || n < 1 || n > math.MaxInt32 {
		return 0, invalid(name, "must be a positive integer, got %g", n)
	}
	return int64(n), nil
}

func (f fields) point(name string) (Point, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return Point{}, missing(name)
	}
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return Point{}, invalid(name, "must be an [x, y] pair")
	}
	x, okX := pair[0].(float64)
	y, okY := pair[1].(float64)
	if !okX || !okY {
		return Point{}, invalid(name, "coordinates must be numbers")
	}
	p := Point{X: x, Y: y}
	if !p.InCanvas() {
		return Point{}, invalid(name, "%s is outside the [0,%d] canvas", p, CanvasSize)
	}
	return p, nil
}
