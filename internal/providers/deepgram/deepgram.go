// Package deepgram transcribes recordings with Deepgram, either as a single pre-recorded
// upload or by replaying the recording over the live websocket API.
package deepgram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicetype/internal/ports"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"

	ModePrerecorded = "prerecorded"
	ModeStreaming   = "streaming"
)

var errMissingKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Config controls Deepgram requests.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	Mode        string

	// MaxRetries bounds pre-recorded upload attempts; RetryBaseDelay doubles after each failure.
	MaxRetries     int
	RetryBaseDelay time.Duration

	// ChunkSize and FinalizeTimeout apply to streaming mode.
	ChunkSize       int
	FinalizeTimeout time.Duration

	HTTPClient *http.Client
}

func withDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Mode == "" {
		cfg.Mode = ModePrerecorded
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay < 0 {
		cfg.RetryBaseDelay = 0
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 8192
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 4 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return cfg
}

// New returns the transcriber for cfg.Mode.
func New(cfg Config, log *zap.SugaredLogger) (ports.Transcriber, error) {
	cfg = withDefaults(cfg)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errMissingKey
	}
	switch cfg.Mode {
	case ModePrerecorded:
		return &PrerecordedTranscriber{cfg: cfg, log: log}, nil
	case ModeStreaming:
		return &StreamTranscriber{cfg: cfg, log: log}, nil
	default:
		return nil, fmt.Errorf("unknown deepgram mode %q", cfg.Mode)
	}
}
