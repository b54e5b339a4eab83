// Package overlay is the small always-on-top status window. The Wails frontend renders the
// events emitted here and calls Click when the window is clicked.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicetype/internal/domain"
	"voicetype/internal/status"
	"voicetype/internal/usecase"
)

const (
	EventStatus = "voicetype:status"
	EventLevel  = "voicetype:level"

	warningHideAfter = 5 * time.Second
	errorHideAfter   = 7 * time.Second
)

// Controller is the part of the dictation controller the overlay drives.
type Controller interface {
	Cancel() error
	Retry(ctx context.Context) error
	CanRetry() bool
	Status() domain.StatusUpdate
}

// Shell performs window operations. The Wails runtime implements it in production.
type Shell interface {
	Emit(ctx context.Context, event string, data any)
	Show(ctx context.Context)
	Hide(ctx context.Context)
	Place(ctx context.Context)
}

// App is the Wails application root.
type App struct {
	shell Shell
	log   *zap.SugaredLogger
	after func(time.Duration, func()) *time.Timer

	ops    chan func()
	levels chan float64

	mu         sync.Mutex
	ctx        context.Context
	controller Controller
	bootErr    error
	hideTimer  *time.Timer
	generation uint64
}

func NewApp(shell Shell, log *zap.SugaredLogger) *App {
	a := &App{
		shell:  shell,
		log:    log,
		after:  time.AfterFunc,
		ops:    make(chan func(), 32),
		levels: make(chan float64, 1),
	}
	go a.loop()
	return a
}

// Startup is the Wails OnStartup hook.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	a.do(func(ctx context.Context) {
		a.shell.Place(ctx)
		a.shell.Hide(ctx)
	})
}

// Attach connects the controller once the runtime graph is built.
func (a *App) Attach(controller Controller) {
	a.mu.Lock()
	a.controller = controller
	a.mu.Unlock()
}

// Fail records a startup failure and shows it.
func (a *App) Fail(err error) {
	a.mu.Lock()
	a.bootErr = err
	a.mu.Unlock()
	a.StatusChanged(a.GetStatus())
}

// GetStatus returns the current status for the frontend.
func (a *App) GetStatus() domain.StatusUpdate {
	ctrl, bootErr := a.state()
	if ctrl == nil {
		if bootErr != nil {
			return domain.StatusUpdate{
				Status:  domain.StatusError,
				Reason:  domain.ReasonStartupFailed,
				Message: fmt.Sprintf("Startup failed: %v", bootErr),
				View:    status.ViewFor(domain.StatusError),
			}
		}
		return domain.StatusUpdate{Status: domain.StatusIdle, Reason: domain.ReasonReady, View: status.ViewFor(domain.StatusIdle)}
	}
	return ctrl.Status()
}

// Click cancels a recording, retries after a retryable failure and dismisses other errors.
func (a *App) Click() error {
	ctrl, bootErr := a.state()
	if err := requireReady(ctrl, bootErr); err != nil {
		return err
	}

	switch ctrl.Status().Status {
	case domain.StatusRecording:
		return ignoreNoSession(ctrl.Cancel())
	case domain.StatusError:
		if ctrl.CanRetry() {
			return ctrl.Retry(context.Background())
		}
		return ignoreNoSession(ctrl.Cancel())
	default:
		return nil
	}
}

// PulseColors is bound for the frontend's pulse animation.
func (a *App) PulseColors(color string) []string {
	return PulseColors(color)
}

// StatusChanged forwards an update to the frontend and shows or hides the window.
func (a *App) StatusChanged(update domain.StatusUpdate) {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	if a.hideTimer != nil {
		a.hideTimer.Stop()
		a.hideTimer = nil
	}
	hideAfter, visible := visibility(update)
	if visible && hideAfter > 0 {
		a.hideTimer = a.after(hideAfter, func() { a.hideIfCurrent(gen) })
	}
	a.mu.Unlock()

	a.do(func(ctx context.Context) {
		a.shell.Emit(ctx, EventStatus, update)
		if visible {
			a.shell.Show(ctx)
		} else {
			a.shell.Hide(ctx)
		}
	})
}

// AudioLevel forwards the latest input level. Levels arriving faster than the UI drains
// them replace each other.
func (a *App) AudioLevel(level float64) {
	select {
	case a.levels <- level:
	default:
		select {
		case <-a.levels:
		default:
		}
		select {
		case a.levels <- level:
		default:
		}
	}
}

func (a *App) hideIfCurrent(gen uint64) {
	a.mu.Lock()
	current := a.generation == gen
	if current {
		a.hideTimer = nil
	}
	a.mu.Unlock()
	if current {
		a.do(a.shell.Hide)
	}
}

// visibility returns whether the window is shown for update and, if so, after how long it
// hides itself. Zero means it stays until the next update.
func visibility(update domain.StatusUpdate) (time.Duration, bool) {
	switch update.Status {
	case domain.StatusRecording, domain.StatusProcessing:
		return 0, true
	case domain.StatusError:
		return errorHideAfter, true
	default:
		if update.Reason.Warning() {
			return warningHideAfter, true
		}
		return 0, false
	}
}

func (a *App) do(op func(ctx context.Context)) {
	a.ops <- func() {
		a.mu.Lock()
		ctx := a.ctx
		a.mu.Unlock()
		if ctx == nil {
			return
		}
		op(ctx)
	}
}

func (a *App) loop() {
	for {
		select {
		case op := <-a.ops:
			op()
		case level := <-a.levels:
			a.mu.Lock()
			ctx := a.ctx
			a.mu.Unlock()
			if ctx != nil {
				a.shell.Emit(ctx, EventLevel, level)
			}
		}
	}
}

func (a *App) state() (Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.controller, a.bootErr
}

func requireReady(ctrl Controller, bootErr error) error {
	if bootErr != nil {
		return bootErr
	}
	if ctrl == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func ignoreNoSession(err error) error {
	if errors.Is(err, usecase.ErrNoActiveSession) {
		return nil
	}
	return err
}
