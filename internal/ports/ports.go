package ports

import (
	"context"
	"io"
	"time"

	"voicetype/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session streaming signed 16-bit little-endian PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Transcriber converts a recorded audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TextCleaner rewrites a raw transcript into clean prose.
type TextCleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// TextInserter places text at the operating system cursor.
type TextInserter interface {
	Insert(ctx context.Context, text string) error
}

// HistoryStore keeps recent transcripts.
type HistoryStore interface {
	Append(text string) error
	Recent(n int) []domain.HistoryEntry
}

// Preferences exposes the user toggles the controller reads on every session.
type Preferences interface {
	CleanTranscription() bool
	SilenceTimeout() time.Duration
}

// DeviceSelector exposes the microphone the user picked, if any.
type DeviceSelector interface {
	SelectedMicrophone() (domain.DeviceIdentifier, bool)
}

// StatusObserver receives every status transition.
type StatusObserver interface {
	StatusChanged(update domain.StatusUpdate)
}

// LevelObserver receives smoothed input levels in the range 0..1 while recording.
type LevelObserver interface {
	AudioLevel(level float64)
}
