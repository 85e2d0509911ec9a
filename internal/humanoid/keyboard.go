// internal/humanoid/keyboard.go
package humanoid

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/xkilldash9x/glimpse/api/schemas"
)

// controlKeys maps characters that cannot be inserted as text to the key that produces them.
var controlKeys = map[rune]string{
	'\n': "Enter",
	'\r': "Enter",
	'\t': "Tab",
	'\b': "Backspace",
}

// Type enters text at the focused element exactly as given; a CRLF pair presses Enter once.
// With humanization on, characters go one at a time with inter-key pauses and a longer
// pause at word boundaries; otherwise printable runs are inserted in one call.
func (h *Humanoid) Type(ctx context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	text = strings.ReplaceAll(text, "\r\n", "\n")
	h.updateFatigue(float64(len(text)) * 0.05)

	if !h.cfg.Enabled {
		return h.typeRuns(ctx, text)
	}

	runes := []rune(text)
	for i, r := range runes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := h.keyPause(ctx, runes[i-1], r); err != nil {
				return err
			}
		}
		if err := h.typeRune(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// typeRuns sends maximal printable runs through SendKeys and control characters as keys.
func (h *Humanoid) typeRuns(ctx context.Context, text string) error {
	var run strings.Builder
	flush := func() error {
		if run.Len() == 0 {
			return nil
		}
		defer run.Reset()
		if err := h.executor.SendKeys(ctx, run.String()); err != nil {
			return fmt.Errorf("humanoid: failed to insert text: %w", err)
		}
		return nil
	}

	for _, r := range text {
		if key, ok := controlKeys[r]; ok {
			if err := flush(); err != nil {
				return err
			}
			if err := h.executor.DispatchStructuredKey(ctx, schemas.KeyEventData{Key: key}); err != nil {
				return fmt.Errorf("humanoid: failed to press %s: %w", key, err)
			}
			continue
		}
		run.WriteRune(r)
	}
	return flush()
}

func (h *Humanoid) typeRune(ctx context.Context, r rune) error {
	if key, ok := controlKeys[r]; ok {
		if err := h.executor.DispatchStructuredKey(ctx, schemas.KeyEventData{Key: key}); err != nil {
			return fmt.Errorf("humanoid: failed to press %s: %w", key, err)
		}
		return nil
	}
	if err := h.executor.SendKeys(ctx, string(r)); err != nil {
		return fmt.Errorf("humanoid: failed to send key '%c': %w", r, err)
	}
	return nil
}

// keyPause waits between two keystrokes. Word boundaries and punctuation get a
// longer pause; repeated letters are quicker.
func (h *Humanoid) keyPause(ctx context.Context, prev, next rune) error {
	mean := h.cfg.KeyPauseMean
	std := h.cfg.KeyPauseStdDev
	switch {
	case unicode.IsSpace(prev) || unicode.IsSpace(next):
		mean *= 1.8
	case unicode.IsPunct(next):
		mean *= 1.4
	case prev == next:
		mean *= 0.7
	}
	mean = math.Max(h.cfg.KeyPauseMin, mean)
	return h.pause(ctx, mean, std)
}

// Shortcut presses a key with modifiers held.
func (h *Humanoid) Shortcut(ctx context.Context, key schemas.KeyEventData) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if key.Key == "" {
		return fmt.Errorf("humanoid: shortcut has no key")
	}
	if err := h.pause(ctx, 120, 40); err != nil {
		return err
	}
	if err := h.executor.DispatchStructuredKey(ctx, key); err != nil {
		return fmt.Errorf("humanoid: failed to press %s: %w", key.Key, err)
	}
	return nil
}
