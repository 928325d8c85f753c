package hotkey

import (
	"testing"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"cmd", []uint16{91, 92}},

		{"a", []uint16{65}},
		{"q", []uint16{81}},
		{"z", []uint16{90}},

		{"0", []uint16{48}},
		{"9", []uint16{57}},

		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},

		{"space", []uint16{32}},
		{"esc", []uint16{27}},

		{"f25", nil},
		{"f01", nil},
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := keyNameToRawcodes(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Errorf("keyNameToRawcodes(%q) returned %d rawcodes, expected %d",
					tt.keyName, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("keyNameToRawcodes(%q)[%d] = %d, expected %d",
						tt.keyName, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt", []string{"ctrl", "alt"}},
		{"Ctrl+Shift+O", []string{"ctrl", "shift", "o"}},
		{"Control + Alt", []string{"ctrl", "alt"}},
		{"Win+Shift", []string{"cmd", "shift"}},
		{"Super+F4", []string{"cmd", "f4"}},
		{"Alt+", []string{"alt"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseHotkey(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("parseHotkey(%q) returned %d keys, expected %d",
					tt.input, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseHotkey(%q)[%d] = %q, expected %q",
						tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse("Ctrl+Banana"); err == nil {
		t.Fatal("Expected error for unknown key")
	}
}

func TestTrackerHeld(t *testing.T) {
	combo, err := Parse("Ctrl+Alt")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tr := NewTracker(combo)
	if tr.Held() {
		t.Fatal("Expected combo not held initially")
	}
	tr.KeyDown(163) // right ctrl
	if tr.Held() {
		t.Fatal("Expected combo not held with only ctrl down")
	}
	tr.KeyDown(164)
	if !tr.Held() {
		t.Fatal("Expected combo held with ctrl+alt down")
	}
	tr.KeyUp(163)
	if tr.Held() {
		t.Fatal("Expected combo released after ctrl up")
	}
	tr.KeyDown(81) // unrelated key
	if tr.Held() {
		t.Fatal("Expected unrelated key not to affect combo")
	}
}

func TestEmptyComboAlwaysHeld(t *testing.T) {
	combo, err := Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !combo.Empty() {
		t.Fatal("Expected empty combo")
	}
	if !NewTracker(combo).Held() {
		t.Fatal("Expected empty combo to be held")
	}
}
