package overlay

import (
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

//go:embed all:frontend/dist
var assets embed.FS

const (
	Width  = 280
	Height = 48
	margin = 20
)

// WailsShell drives the window through the Wails runtime.
type WailsShell struct{}

func (WailsShell) Emit(ctx context.Context, event string, data any) {
	runtime.EventsEmit(ctx, event, data)
}

func (WailsShell) Show(ctx context.Context) {
	runtime.WindowShow(ctx)
	runtime.WindowSetAlwaysOnTop(ctx, true)
}

func (WailsShell) Hide(ctx context.Context) {
	runtime.WindowHide(ctx)
}

// Place moves the window to the top-right corner of the current screen.
func (WailsShell) Place(ctx context.Context) {
	screens, err := runtime.ScreenGetAll(ctx)
	if err != nil || len(screens) == 0 {
		return
	}
	screen := screens[0]
	for _, s := range screens {
		if s.IsCurrent {
			screen = s
			break
		}
	}
	width := screen.Size.Width
	if width <= 0 {
		width = screen.Width
	}
	runtime.WindowSetPosition(ctx, width-Width-margin, margin)
}

// Options returns the Wails application options for the overlay window.
func Options(app *App, onDomReady func(ctx context.Context), onShutdown func(ctx context.Context)) *options.App {
	return &options.App{
		Title:             "Voice Typing",
		Width:             Width,
		Height:            Height,
		DisableResize:     true,
		Frameless:         true,
		AlwaysOnTop:       true,
		StartHidden:       true,
		HideWindowOnClose: true,
		BackgroundColour:  &options.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 230},
		AssetServer:       &assetserver.Options{Assets: assets},
		OnStartup:         app.Startup,
		OnDomReady:        onDomReady,
		OnShutdown:        onShutdown,
		Bind:              []interface{}{app},
	}
}

// DarkenColor scales each channel of a #rrggbb colour by factor. The pulse animation
// alternates between a status colour and DarkenColor(colour, 0.7).
func DarkenColor(hex string, factor float64) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(trimmed) != 6 {
		return "", fmt.Errorf("invalid colour %q", hex)
	}
	value, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return "", fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	scale := func(shift uint) uint64 {
		return uint64(float64((value>>shift)&0xff) * factor)
	}
	return fmt.Sprintf("#%02x%02x%02x", scale(16), scale(8), scale(0)), nil
}

// PulseColors returns the two colours a pulsing view alternates between.
func PulseColors(color string) []string {
	dark, err := DarkenColor(color, 0.7)
	if err != nil {
		return []string{color}
	}
	return []string{color, dark}
}
