package hotkey

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrUnsupported is returned by Listen on platforms without a global keyboard hook.
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Controller is the part of the dictation controller the hotkeys drive.
type Controller interface {
	Toggle(ctx context.Context) error
	Cancel() error
	Recording() bool
}

// Handler decides whether a key press is consumed. It runs on the hook thread and must
// return quickly.
type Handler func(key uint32, held Modifier) bool

type command int

const (
	commandToggle command = iota
	commandCancel
)

// Dispatcher maps key presses to controller calls, which run in order on one goroutine.
type Dispatcher struct {
	toggle Binding
	cancel Binding
	ctrl   Controller
	log    *zap.SugaredLogger

	commands chan command
	done     chan struct{}
}

// NewDispatcher starts the command goroutine. An empty cancel binding disables cancel.
func NewDispatcher(toggle, cancel Binding, ctrl Controller, log *zap.SugaredLogger) *Dispatcher {
	d := &Dispatcher{
		toggle:   toggle,
		cancel:   cancel,
		ctrl:     ctrl,
		log:      log,
		commands: make(chan command, 8),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

// HandleKey is the Handler passed to Listen. The cancel key is only consumed while recording.
func (d *Dispatcher) HandleKey(key uint32, held Modifier) bool {
	switch {
	case d.toggle.Matches(key, held):
		d.enqueue(commandToggle)
		return true
	case d.cancel.Matches(key, held) && d.ctrl.Recording():
		d.enqueue(commandCancel)
		return true
	default:
		return false
	}
}

func (d *Dispatcher) enqueue(cmd command) {
	select {
	case d.commands <- cmd:
	default:
		d.log.Warnw("hotkey command dropped, controller is not keeping up")
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for cmd := range d.commands {
		var err error
		switch cmd {
		case commandToggle:
			err = d.ctrl.Toggle(context.Background())
		case commandCancel:
			err = d.ctrl.Cancel()
		}
		if err != nil {
			d.log.Debugw("hotkey command rejected", "command", cmd, "error", err)
		}
	}
}

// Close stops accepting commands and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	close(d.commands)
	<-d.done
}
