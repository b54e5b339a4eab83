package domain

import "time"

// Status models the dictation lifecycle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// Valid reports whether s is a member of the status enum.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRecording, StatusProcessing, StatusError:
		return true
	default:
		return false
	}
}

// StatusReason provides a structured reason for status transitions.
type StatusReason string

const (
	ReasonReady               StatusReason = "ready"
	ReasonRecordingStarted    StatusReason = "recording_started"
	ReasonTranscribing        StatusReason = "transcribing"
	ReasonRetrying            StatusReason = "retrying"
	ReasonTextInserted        StatusReason = "text_inserted"
	ReasonRecordingDiscarded  StatusReason = "recording_discarded"
	ReasonProcessingCanceled  StatusReason = "processing_canceled"
	ReasonRecordingTooShort   StatusReason = "recording_too_short"
	ReasonRecordingSilent     StatusReason = "recording_silent"
	ReasonSilenceAutoStop     StatusReason = "silence_auto_stop"
	ReasonNoSpeech            StatusReason = "no_speech"
	ReasonStartupFailed       StatusReason = "startup_failed"
	ReasonCaptureFailed       StatusReason = "capture_failed"
	ReasonTranscriptionFailed StatusReason = "transcription_failed"
	ReasonInsertFailed        StatusReason = "insert_failed"
	ReasonErrorDismissed      StatusReason = "error_dismissed"
)

// Warning reports whether the reason is a non-error outcome the user should still see.
func (r StatusReason) Warning() bool {
	switch r {
	case ReasonRecordingTooShort, ReasonRecordingSilent, ReasonSilenceAutoStop, ReasonNoSpeech:
		return true
	default:
		return false
	}
}

// ErrorCode identifies the pipeline stage that failed.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeAnalysis      ErrorCode = "analysis"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeCleanup       ErrorCode = "cleanup"
	ErrorCodeRules         ErrorCode = "rules"
	ErrorCodeInsert        ErrorCode = "insert"
	ErrorCodeHistory       ErrorCode = "history"
)

// StatusView is the presentation of a status for the tray and overlay.
type StatusView struct {
	TrayGlyph  string `json:"trayGlyph"`
	TrayColor  string `json:"trayColor"`
	Color      string `json:"color"`
	Foreground string `json:"foreground"`
	Text       string `json:"text"`
	Pulse      bool   `json:"pulse"`
}

// StatusUpdate is broadcast to observers on every transition.
type StatusUpdate struct {
	Status         Status       `json:"status"`
	Previous       Status       `json:"previous"`
	Reason         StatusReason `json:"reason"`
	Message        string       `json:"message,omitempty"`
	View           StatusView   `json:"view"`
	RetryAvailable bool         `json:"retryAvailable"`
	At             time.Time    `json:"at"`
}

// Recording is a captured audio file awaiting transcription.
type Recording struct {
	Path      string
	StartedAt time.Time
	Duration  time.Duration
}

// Analysis summarises a finished recording before any network call.
type Analysis struct {
	Duration time.Duration
	RMS      float64
	Valid    bool
	Reason   StatusReason
	Detail   string
}

// Transcript is the outcome of a successful pipeline run.
type Transcript struct {
	Raw      string `json:"raw"`
	Final    string `json:"final"`
	Cleaned  bool   `json:"cleaned"`
	Inserted bool   `json:"inserted"`
}

// HistoryEntry is one stored transcript.
type HistoryEntry struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceIdentifier identifies an input device across sessions.
type DeviceIdentifier struct {
	Name              string  `json:"name" mapstructure:"name"`
	Channels          int     `json:"channels" mapstructure:"channels"`
	DefaultSampleRate float64 `json:"default_samplerate" mapstructure:"default_samplerate"`
}

// Device is an available input device.
type Device struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	HostAPI           string  `json:"hostapi"`
	DefaultSampleRate float64 `json:"default_samplerate"`
	Default           bool    `json:"default"`
}

// Identifier returns the persistent identifier of d.
func (d Device) Identifier() DeviceIdentifier {
	return DeviceIdentifier{Name: d.Name, Channels: d.MaxInputChannels, DefaultSampleRate: d.DefaultSampleRate}
}
