// Package hotkey turns global key presses into dictation commands.
package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier is a bit set of held modifier keys. Bits follow the Win32 MOD_* values.
type Modifier uint32

const (
	ModAlt   Modifier = 0x0001
	ModCtrl  Modifier = 0x0002
	ModShift Modifier = 0x0004
	ModWin   Modifier = 0x0008
)

// blocking modifiers suppress an unmodified binding; shift does not.
const blocking = ModAlt | ModCtrl | ModWin

// Binding is a parsed key spec such as "f9" or "ctrl+shift+space". Key is a virtual-key code.
type Binding struct {
	Spec string
	Mods Modifier
	Key  uint32
}

var namedKeys = map[string]uint32{
	"backspace": 0x08, "tab": 0x09, "enter": 0x0D, "return": 0x0D,
	"pause": 0x13, "capslock": 0x14, "esc": 0x1B, "escape": 0x1B, "space": 0x20,
	"pageup": 0x21, "pagedown": 0x22, "end": 0x23, "home": 0x24,
	"left": 0x25, "up": 0x26, "right": 0x27, "down": 0x28,
	"printscreen": 0x2C, "insert": 0x2D, "delete": 0x2E,
	"scrolllock": 0x91, "numlock": 0x90,
	"add": 0x6B, "subtract": 0x6D, "multiply": 0x6A, "divide": 0x6F, "decimal": 0x6E,
}

// Parse reads a "+"-separated key spec. The last part is the key; earlier parts are modifiers.
func Parse(spec string) (Binding, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return Binding{}, fmt.Errorf("empty key")
	}
	parts := strings.Split(strings.ToLower(trimmed), "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	b := Binding{Spec: trimmed}
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "alt", "menu", "option":
			b.Mods |= ModAlt
		case "ctrl", "control":
			b.Mods |= ModCtrl
		case "shift":
			b.Mods |= ModShift
		case "win", "meta", "super", "cmd":
			b.Mods |= ModWin
		default:
			return Binding{}, fmt.Errorf("invalid key %q: unknown modifier %q", spec, p)
		}
	}

	key, err := keyCode(parts[len(parts)-1])
	if err != nil {
		return Binding{}, fmt.Errorf("invalid key %q: %w", spec, err)
	}
	b.Key = key
	return b, nil
}

// MustParse is Parse for specs known at compile time.
func MustParse(spec string) Binding {
	b, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return b
}

func keyCode(token string) (uint32, error) {
	if token == "" {
		return 0, fmt.Errorf("missing key after modifiers")
	}
	if len(token) == 1 {
		ch := token[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return uint32(ch - 'a' + 'A'), nil
		case ch >= '0' && ch <= '9':
			return uint32(ch), nil
		}
	}
	if code, ok := namedKeys[token]; ok {
		return code, nil
	}
	if n, ok := numbered(token, "f"); ok && n >= 1 && n <= 24 {
		return 0x70 + uint32(n-1), nil
	}
	for _, prefix := range []string{"numpad", "num", "kp"} {
		if n, ok := numbered(token, prefix); ok && n >= 0 && n <= 9 {
			return 0x60 + uint32(n), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", token)
}

func numbered(token, prefix string) (int, bool) {
	if !strings.HasPrefix(token, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(token, prefix))
	return n, err == nil
}

// Matches reports whether a key press with the given held modifiers triggers b. A binding
// without modifiers is ignored while ctrl, alt or win is held so shortcuts such as ctrl+f9
// keep working in other applications.
func (b Binding) Matches(key uint32, held Modifier) bool {
	if b.Key == 0 || key != b.Key {
		return false
	}
	if held&b.Mods != b.Mods {
		return false
	}
	return (held&^b.Mods)&blocking == 0
}

func (b Binding) String() string {
	return b.Spec
}
