package hotkey

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		mods Modifier
		key  uint32
	}{
		{spec: "f9", key: 0x78},
		{spec: "F24", key: 0x87},
		{spec: "esc", key: 0x1B},
		{spec: "ctrl+shift+space", mods: ModCtrl | ModShift, key: 0x20},
		{spec: "alt + q", mods: ModAlt, key: 'Q'},
		{spec: "win+7", mods: ModWin, key: '7'},
		{spec: "numpad3", key: 0x63},
		{spec: "capslock", key: 0x14},
	}
	for _, tt := range tests {
		got, err := Parse(tt.spec)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tt.spec, err)
		}
		if got.Mods != tt.mods || got.Key != tt.key {
			t.Fatalf("parse %q: got mods=%#x key=%#x, want mods=%#x key=%#x", tt.spec, got.Mods, got.Key, tt.mods, tt.key)
		}
	}
}

func TestParseRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"", "hyper+a", "ctrl+", "f25", "banana"} {
		if _, err := Parse(spec); err == nil {
			t.Fatalf("expected %q to be rejected", spec)
		}
	}
	_, err := Parse("hyper+a")
	if !strings.Contains(err.Error(), "unknown modifier") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMatchesModifierException(t *testing.T) {
	t.Parallel()

	plain := MustParse("f9")
	if !plain.Matches(0x78, 0) {
		t.Fatalf("plain f9 should match")
	}
	if !plain.Matches(0x78, ModShift) {
		t.Fatalf("shift must not block an unmodified binding")
	}
	for _, held := range []Modifier{ModCtrl, ModAlt, ModWin} {
		if plain.Matches(0x78, held) {
			t.Fatalf("f9 must not fire while %#x is held", held)
		}
	}

	chord := MustParse("ctrl+f9")
	if chord.Matches(0x78, 0) {
		t.Fatalf("ctrl+f9 requires ctrl")
	}
	if !chord.Matches(0x78, ModCtrl|ModShift) {
		t.Fatalf("ctrl+f9 should tolerate shift")
	}
	if chord.Matches(0x78, ModCtrl|ModAlt) {
		t.Fatalf("ctrl+f9 must not fire with extra alt")
	}

	if (Binding{}).Matches(0, 0) {
		t.Fatalf("empty binding must never match")
	}
}
