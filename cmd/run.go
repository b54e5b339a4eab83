package cmd

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"voicetype/internal/audio/portaudio"
	"voicetype/internal/bootstrap"
	"voicetype/internal/hotkey"
	"voicetype/internal/notify"
	"voicetype/internal/overlay"
	"voicetype/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tray, overlay and global hotkeys",
	Long: `Start voicetype in the background. Press the toggle key to start dictating and again
to stop; the cancel key discards a recording in progress.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app := overlay.NewApp(overlay.WailsShell{}, log)

	var (
		mu     sync.Mutex
		uiCtx  context.Context
		closer []func()
	)
	quit := func() {
		mu.Lock()
		c := uiCtx
		mu.Unlock()
		if c != nil {
			wruntime.Quit(c)
		}
	}

	services, err := bootstrap.Build(cfg, bootstrap.Options{}, log)
	if err != nil {
		log.Errorw("startup failed", "error", err)
		app.Fail(err)
	} else {
		controller := services.Controller
		app.Attach(controller)
		services.Status.Subscribe(app)

		if cfg.Notifications.Errors || cfg.Notifications.Success {
			services.Status.Subscribe(notify.NewObserver(notify.Options{
				Errors:  cfg.Notifications.Errors,
				Success: cfg.Notifications.Success,
			}, log))
		}

		t := tray.New(tray.Deps{
			Controller: controller,
			Prefs:      services.Settings,
			History:    services.History,
			Devices:    portaudio.Devices,
			Copy:       services.Copy,
			Quit:       quit,
		}, log)
		services.Status.Subscribe(t)
		t.Register()

		dispatcher, err := newDispatcher(controller)
		if err != nil {
			return err
		}
		go func() {
			if err := hotkey.Listen(ctx, dispatcher.HandleKey); err != nil {
				if errors.Is(err, hotkey.ErrUnsupported) {
					log.Warnw("global hotkeys unavailable, use the tray menu", "error", err)
					return
				}
				log.Errorw("hotkey listener stopped", "error", err)
			}
		}()
		closer = append(closer, dispatcher.Close, controller.Close)
		log.Infow("voicetype ready", "toggle", cfg.Hotkey.Toggle, "cancel", cfg.Hotkey.Cancel, "provider", cfg.Provider)
	}

	onDomReady := func(c context.Context) {
		mu.Lock()
		uiCtx = c
		mu.Unlock()
	}
	onShutdown := func(context.Context) {
		cancel()
		for _, fn := range closer {
			fn()
		}
	}
	return wails.Run(overlay.Options(app, onDomReady, onShutdown))
}

func newDispatcher(controller hotkey.Controller) (*hotkey.Dispatcher, error) {
	toggle, err := hotkey.Parse(cfg.Hotkey.Toggle)
	if err != nil {
		return nil, err
	}
	var cancelKey hotkey.Binding
	if strings.TrimSpace(cfg.Hotkey.Cancel) != "" {
		if cancelKey, err = hotkey.Parse(cfg.Hotkey.Cancel); err != nil {
			return nil, err
		}
	}
	return hotkey.NewDispatcher(toggle, cancelKey, controller, log), nil
}
