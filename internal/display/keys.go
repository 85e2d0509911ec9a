// internal/display/keys.go
package display

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/xkilldash9x/glimpse/api/schemas"
)

// keyDefinition is what a DispatchKeyEvent needs to reproduce a physical key press.
type keyDefinition struct {
	Key     string
	Code    string
	KeyCode int64
	// Text is inserted by the key when no command modifier is held.
	Text string
}

var namedKeyDefinitions = map[string]keyDefinition{
	"Enter":      {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"Tab":        {Key: "Tab", Code: "Tab", KeyCode: 9},
	"Escape":     {Key: "Escape", Code: "Escape", KeyCode: 27},
	"Backspace":  {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"Delete":     {Key: "Delete", Code: "Delete", KeyCode: 46},
	"Space":      {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
	"ArrowLeft":  {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"ArrowUp":    {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"ArrowRight": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"ArrowDown":  {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"Home":       {Key: "Home", Code: "Home", KeyCode: 36},
	"End":        {Key: "End", Code: "End", KeyCode: 35},
	"PageUp":     {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"PageDown":   {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"Insert":     {Key: "Insert", Code: "Insert", KeyCode: 45},
	"Control":    {Key: "Control", Code: "ControlLeft", KeyCode: 17},
	"Alt":        {Key: "Alt", Code: "AltLeft", KeyCode: 18},
	"Shift":      {Key: "Shift", Code: "ShiftLeft", KeyCode: 16},
	"Meta":       {Key: "Meta", Code: "MetaLeft", KeyCode: 91},
}

func init() {
	for i := 1; i <= 12; i++ {
		name := "F" + strconv.Itoa(i)
		namedKeyDefinitions[name] = keyDefinition{Key: name, Code: name, KeyCode: int64(111 + i)}
	}
}

// punctuationCodes covers the US layout keys that produce punctuation without shift.
var punctuationCodes = map[rune]struct {
	code    string
	keyCode int64
}{
	'-': {"Minus", 189}, '=': {"Equal", 187}, '[': {"BracketLeft", 219}, ']': {"BracketRight", 221},
	'\\': {"Backslash", 220}, ';': {"Semicolon", 186}, '\'': {"Quote", 222}, ',': {"Comma", 188},
	'.': {"Period", 190}, '/': {"Slash", 191}, '`': {"Backquote", 192},
}

// lookupKey resolves a canonical key name. Single characters map to their US layout key.
// Unknown multi-rune names are passed through with only Key set.
func lookupKey(name string) keyDefinition {
	if def, ok := namedKeyDefinitions[name]; ok {
		return def
	}
	if utf8.RuneCountInString(name) != 1 {
		return keyDefinition{Key: name}
	}

	r, _ := utf8.DecodeRuneInString(name)
	def := keyDefinition{Key: name, Text: name}
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		upper := unicode.ToUpper(r)
		def.Code = "Key" + string(upper)
		def.KeyCode = int64(upper)
	case r >= '0' && r <= '9':
		def.Code = "Digit" + name
		def.KeyCode = int64(r)
	default:
		if p, ok := punctuationCodes[r]; ok {
			def.Code = p.code
			def.KeyCode = p.keyCode
		}
	}
	return def
}

// modifierOrder is the order modifiers are pressed in (and released in reverse).
var modifierOrder = []struct {
	mod  schemas.KeyModifier
	name string
}{
	{schemas.ModCtrl, "Control"},
	{schemas.ModAlt, "Alt"},
	{schemas.ModShift, "Shift"},
	{schemas.ModMeta, "Meta"},
}

func cdpModifiers(m schemas.KeyModifier) input.Modifier {
	var out input.Modifier
	if m&schemas.ModAlt != 0 {
		out |= input.ModifierAlt
	}
	if m&schemas.ModCtrl != 0 {
		out |= input.ModifierCtrl
	}
	if m&schemas.ModMeta != 0 {
		out |= input.ModifierMeta
	}
	if m&schemas.ModShift != 0 {
		out |= input.ModifierShift
	}
	return out
}

// keySequence builds the events for pressing key with modifiers held: modifiers go down
// in order, the key goes down and up, then modifiers come up in reverse.
func keySequence(data schemas.KeyEventData) []*input.DispatchKeyEventParams {
	var seq []*input.DispatchKeyEventParams
	var held schemas.KeyModifier

	for _, m := range modifierOrder {
		if data.Modifiers&m.mod == 0 || data.Key == m.name {
			continue
		}
		held |= m.mod
		def := namedKeyDefinitions[m.name]
		seq = append(seq, keyEvent(input.KeyRawDown, def, cdpModifiers(held), ""))
	}

	def := lookupKey(data.Key)
	text := def.Text
	// Command chords do not insert text.
	if data.Modifiers&(schemas.ModCtrl|schemas.ModAlt|schemas.ModMeta) != 0 {
		text = ""
	} else if data.Modifiers&schemas.ModShift != 0 && len(text) == 1 {
		text = string(unicode.ToUpper(rune(text[0])))
	}
	downType := input.KeyRawDown
	if text != "" {
		downType = input.KeyDown
	}
	mods := cdpModifiers(data.Modifiers)
	seq = append(seq, keyEvent(downType, def, mods, text))
	seq = append(seq, keyEvent(input.KeyUp, def, mods, ""))

	for i := len(modifierOrder) - 1; i >= 0; i-- {
		m := modifierOrder[i]
		if held&m.mod == 0 {
			continue
		}
		held &^= m.mod
		seq = append(seq, keyEvent(input.KeyUp, namedKeyDefinitions[m.name], cdpModifiers(held), ""))
	}
	return seq
}

func keyEvent(t input.KeyType, def keyDefinition, mods input.Modifier, text string) *input.DispatchKeyEventParams {
	p := input.DispatchKeyEvent(t).WithKey(def.Key).WithModifiers(mods)
	if def.Code != "" {
		p = p.WithCode(def.Code)
	}
	if def.KeyCode != 0 {
		p = p.WithWindowsVirtualKeyCode(def.KeyCode).WithNativeVirtualKeyCode(def.KeyCode)
	}
	if text != "" {
		p = p.WithText(text).WithUnmodifiedText(text)
	}
	return p
}
