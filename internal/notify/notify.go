// Package notify shows desktop notifications for status changes.
package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"voicetype/internal/domain"
)

const title = "Voice Typing"

// Sender delivers one notification.
type Sender func(title, message, icon string) error

// Options selects which status changes produce a notification.
type Options struct {
	Errors  bool
	Success bool
	Icon    string
}

// Observer notifies on errors and successful insertions, each when enabled.
type Observer struct {
	send Sender
	opts Options
	log  *zap.SugaredLogger
}

func NewObserver(opts Options, log *zap.SugaredLogger) *Observer {
	send := func(title, message, icon string) error {
		return beeep.Notify(title, message, icon)
	}
	return NewObserverWith(send, opts, log)
}

func NewObserverWith(send Sender, opts Options, log *zap.SugaredLogger) *Observer {
	return &Observer{send: send, opts: opts, log: log}
}

// StatusChanged sends the notification off the caller's goroutine.
func (o *Observer) StatusChanged(update domain.StatusUpdate) {
	message, ok := o.message(update)
	if !ok {
		return
	}
	go func() {
		if err := o.send(title, message, o.opts.Icon); err != nil {
			o.log.Debugw("notification failed", "error", err)
		}
	}()
}

func (o *Observer) message(update domain.StatusUpdate) (string, bool) {
	switch {
	case o.opts.Errors && update.Status == domain.StatusError:
		msg := update.Message
		if msg == "" {
			msg = update.View.Text
		}
		if update.RetryAvailable {
			msg += " (click the overlay to retry)"
		}
		return msg, true
	case o.opts.Success && update.Reason == domain.ReasonTextInserted:
		return "Text inserted", true
	default:
		return "", false
	}
}
