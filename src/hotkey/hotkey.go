package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Combo is a parsed key combination such as "Ctrl+Alt".
// The zero value is the empty combo, which is always considered held.
type Combo struct {
	raw  string
	keys []key
}

type key struct {
	name     string
	rawcodes []uint16
}

// Parse converts "Ctrl+Alt+q" into a Combo. An empty string yields the empty combo.
func Parse(combo string) (Combo, error) {
	if strings.TrimSpace(combo) == "" {
		return Combo{}, nil
	}
	names := parseHotkey(combo)
	keys := make([]key, 0, len(names))
	for _, name := range names {
		codes := keyNameToRawcodes(name)
		if len(codes) == 0 {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", combo, name)
		}
		keys = append(keys, key{name: name, rawcodes: codes})
	}
	return Combo{raw: combo, keys: keys}, nil
}

// Empty reports whether the combo has no keys.
func (c Combo) Empty() bool { return len(c.keys) == 0 }

func (c Combo) String() string { return c.raw }

// Tracker follows key down/up events and reports whether the whole combo is held.
type Tracker struct {
	mu      sync.Mutex
	combo   Combo
	pressed []bool
}

// NewTracker creates a tracker for combo.
func NewTracker(combo Combo) *Tracker {
	return &Tracker{combo: combo, pressed: make([]bool, len(combo.keys))}
}

// KeyDown records a key press by rawcode.
func (t *Tracker) KeyDown(rawcode uint16) { t.set(rawcode, true) }

// KeyUp records a key release by rawcode.
func (t *Tracker) KeyUp(rawcode uint16) { t.set(rawcode, false) }

func (t *Tracker) set(rawcode uint16, down bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, k := range t.combo.keys {
		for _, rc := range k.rawcodes {
			if rc == rawcode {
				if t.pressed[i] != down {
					log.Printf("hotkey: %s down=%v", k.name, down)
				}
				t.pressed[i] = down
				break
			}
		}
	}
}

// Held reports whether every key of the combo is currently down.
func (t *Tracker) Held() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pressed {
		if !p {
			return false
		}
	}
	return true
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

// keyNameToRawcodes maps a key name to its Windows virtual key code rawcodes.
// Modifiers return both left and right variants.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	switch keyName {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "cmd":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	case "space":
		return []uint16{32}
	case "tab":
		return []uint16{9}
	case "esc", "escape":
		return []uint16{27}
	}

	if len(keyName) == 1 {
		c := keyName[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(65 + c - 'a')}
		case c >= '0' && c <= '9':
			return []uint16{uint16(48 + c - '0')}
		}
	}

	// F1..F24 are VK 112..135
	var n int
	if _, err := fmt.Sscanf(keyName, "f%d", &n); err == nil && n >= 1 && n <= 24 && keyName == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)}
	}

	return nil
}
