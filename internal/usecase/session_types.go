package usecase

import (
	"context"
	"time"

	"voicetype/internal/audio"
	"voicetype/internal/ports"
)

// recordingSession is the live capture between toggle-on and toggle-off.
type recordingSession struct {
	audio     ports.AudioSession
	wav       *audio.WAVWriter
	meter     *audio.Meter
	startedAt time.Time
	cancel    context.CancelFunc
	// canceled is set under the controller lock while Stop drains capture.
	canceled bool

	// set by the pump before done closes
	pumpErr error
	done    chan struct{}
}

// worker is one background pipeline run over a finished recording.
type worker struct {
	cancel context.CancelFunc
}
