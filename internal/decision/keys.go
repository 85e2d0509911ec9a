// internal/decision/keys.go
package decision

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// namedKeys maps the spellings models tend to use onto canonical key names.
var namedKeys = map[string]string{
	"enter":      "Enter",
	"return":     "Enter",
	"esc":        "Escape",
	"escape":     "Escape",
	"tab":        "Tab",
	"backspace":  "Backspace",
	"delete":     "Delete",
	"del":        "Delete",
	"space":      "Space",
	"spacebar":   "Space",
	"up":         "ArrowUp",
	"arrowup":    "ArrowUp",
	"down":       "ArrowDown",
	"arrowdown":  "ArrowDown",
	"left":       "ArrowLeft",
	"arrowleft":  "ArrowLeft",
	"right":      "ArrowRight",
	"arrowright": "ArrowRight",
	"home":       "Home",
	"end":        "End",
	"pageup":     "PageUp",
	"pgup":       "PageUp",
	"pagedown":   "PageDown",
	"pgdn":       "PageDown",
	"insert":     "Insert",
	"ins":        "Insert",
}

func init() {
	for i := 1; i <= 12; i++ {
		namedKeys[fmt.Sprintf("f%d", i)] = fmt.Sprintf("F%d", i)
	}
}

var modifierAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"shift":   ModShift,
	"meta":    ModMeta,
	"cmd":     ModMeta,
	"command": ModMeta,
	"win":     ModMeta,
	"super":   ModMeta,
}

// modifierKeys names the key itself when a modifier is pressed alone.
var modifierKeys = map[Modifier]string{
	ModCtrl:  "Control",
	ModAlt:   "Alt",
	ModShift: "Shift",
	ModMeta:  "Meta",
}

// NormalizeKey returns the canonical name of a key. Single characters are returned unchanged.
func NormalizeKey(name string) (string, bool) {
	if name == " " {
		return "Space", true
	}
	if utf8.RuneCountInString(name) == 1 {
		return name, true
	}
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) == 1 {
		return trimmed, true
	}
	canonical, ok := namedKeys[strings.ToLower(trimmed)]
	return canonical, ok
}

// ParseModifier resolves a modifier alias such as "cmd" or "control".
func ParseModifier(name string) (Modifier, bool) {
	m, ok := modifierAliases[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// splitChord turns "ctrl+shift+t" into its parts. A trailing "++" means the plus key.
func splitChord(s string) []string {
	if s == "+" {
		return []string{"+"}
	}
	if strings.HasSuffix(s, "++") {
		return append(splitChord(strings.TrimSuffix(s, "++")), "+")
	}
	return strings.Split(s, "+")
}

// ParseChord validates an ordered list of key names: modifiers first, then exactly one key.
func ParseChord(names []string) (KeyPress, error) {
	if len(names) == 0 {
		return KeyPress{}, invalid("keys", "at least one key is required")
	}

	var kp KeyPress
	seen := make(map[Modifier]bool)
	last := len(names) - 1
	for i, name := range names[:last] {
		m, ok := ParseModifier(name)
		if !ok {
			return KeyPress{}, invalid("keys", "element %d (%q) is not a modifier; modifiers must precede the key", i, name)
		}
		if !seen[m] {
			seen[m] = true
			kp.Modifiers = append(kp.Modifiers, m)
		}
	}

	final := names[last]
	if key, ok := NormalizeKey(final); ok {
		kp.Key = key
		return kp, nil
	}
	if m, ok := ParseModifier(final); ok {
		kp.Key = modifierKeys[m]
		return kp, nil
	}
	return KeyPress{}, invalid("keys", "unknown key %q", final)
}
