package status

import "voicetype/internal/domain"

var views = map[domain.Status]domain.StatusView{
	domain.StatusIdle: {
		TrayGlyph:  "🎤",
		TrayColor:  "#1E88E5",
		Color:      "#333333",
		Foreground: "#FFFFFF",
		Text:       "Ready",
	},
	domain.StatusRecording: {
		TrayGlyph:  "⚫",
		TrayColor:  "#E53935",
		Color:      "#FF0000",
		Foreground: "#FFFFFF",
		Text:       "🎤 Recording (click to cancel)",
		Pulse:      true,
	},
	domain.StatusProcessing: {
		TrayGlyph:  "⚙️",
		TrayColor:  "#FDD835",
		Color:      "#0066CC",
		Foreground: "#FFFFFF",
		Text:       "⚙️ Processing...",
		Pulse:      true,
	},
	domain.StatusError: {
		TrayGlyph:  "⚠️",
		TrayColor:  "#FDD835",
		Color:      "#FFA500",
		Foreground: "#000000",
		Text:       "⚠️ Error",
	},
}

// ViewFor returns the presentation for a status. Unknown values fall back to the idle view.
func ViewFor(s domain.Status) domain.StatusView {
	if view, ok := views[s]; ok {
		return view
	}
	return views[domain.StatusIdle]
}

// ReasonMessage returns the short user-facing text for a transition reason.
func ReasonMessage(reason domain.StatusReason) string {
	switch reason {
	case domain.ReasonReady:
		return "Ready"
	case domain.ReasonRecordingStarted:
		return "Recording started"
	case domain.ReasonTranscribing:
		return "Recording stopped. Transcribing..."
	case domain.ReasonRetrying:
		return "Retrying transcription..."
	case domain.ReasonTextInserted:
		return "Text inserted"
	case domain.ReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.ReasonProcessingCanceled:
		return "Transcription canceled"
	case domain.ReasonRecordingTooShort:
		return "Recording too short"
	case domain.ReasonRecordingSilent:
		return "Recording contains mostly silence"
	case domain.ReasonSilenceAutoStop:
		return "Stopped: no speech detected"
	case domain.ReasonNoSpeech:
		return "No speech detected"
	case domain.ReasonStartupFailed:
		return "Startup failed"
	case domain.ReasonCaptureFailed:
		return "Microphone error"
	case domain.ReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.ReasonInsertFailed:
		return "Could not insert text"
	case domain.ReasonErrorDismissed:
		return "Ready"
	default:
		return ""
	}
}
