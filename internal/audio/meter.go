package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// DefaultSampleRate is the capture rate used for speech; 16 kHz is enough for STT and
	// 22.05 kHz leaves headroom.
	DefaultSampleRate = 22050
	// SilenceThreshold is the RMS (full scale 1.0) below which audio counts as silence. -40 dB.
	SilenceThreshold = 0.01
	// MinDuration is the shortest recording worth sending for transcription.
	MinDuration = time.Second
	// InitialCheckWindow bounds how long after start silence auto-stop may trigger.
	InitialCheckWindow = 4 * time.Second
	// LevelSmoothing is the weight of the newest level reading.
	LevelSmoothing = 0.2
)

// Meter turns PCM chunks into a smoothed 0..1 level and decides when a recording that never
// heard any sound should stop on its own.
type Meter struct {
	threshold      float64
	silenceTimeout time.Duration
	checkWindow    time.Duration
	now            func() time.Time

	startedAt     time.Time
	silenceStart  time.Time
	soundDetected bool
	autoStopped   bool
	smoothed      float64
}

// NewMeter creates a meter. A zero silenceTimeout disables auto-stop.
func NewMeter(silenceTimeout time.Duration) *Meter {
	return newMeterAt(silenceTimeout, time.Now)
}

func newMeterAt(silenceTimeout time.Duration, now func() time.Time) *Meter {
	return &Meter{
		threshold:      SilenceThreshold,
		silenceTimeout: silenceTimeout,
		checkWindow:    InitialCheckWindow,
		now:            now,
		startedAt:      now(),
	}
}

// Observe consumes one chunk of samples and returns the smoothed level and whether the
// recording should auto-stop. Auto-stop is reported once.
func (m *Meter) Observe(samples []int16) (float64, bool) {
	if len(samples) == 0 {
		return m.smoothed, false
	}
	rms := RMS16(samples)

	if m.silenceTimeout > 0 && !m.autoStopped && !m.soundDetected {
		now := m.now()
		if now.Sub(m.startedAt) <= m.checkWindow {
			if rms < m.threshold {
				if m.silenceStart.IsZero() {
					m.silenceStart = now
				} else if now.Sub(m.silenceStart) >= m.silenceTimeout {
					m.autoStopped = true
					m.smoothed = 0
					return 0, true
				}
			} else {
				m.soundDetected = true
				m.silenceStart = time.Time{}
			}
		}
	}

	m.smoothed = LevelSmoothing*NormalizedLevel(rms) + (1-LevelSmoothing)*m.smoothed
	return m.smoothed, false
}

// AutoStopped reports whether the meter requested an auto-stop.
func (m *Meter) AutoStopped() bool {
	return m.autoStopped
}

// NormalizedLevel maps an RMS value onto 0..1 across a 60 dB window.
func NormalizedLevel(rms float64) float64 {
	db := 20 * math.Log10(math.Max(1e-10, rms))
	normalized := (db + 60) / 60
	return math.Max(0, math.Min(1, normalized))
}

// RMS16 computes the root mean square of 16-bit samples scaled to full scale 1.0.
func RMS16(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DecodeS16LE converts little-endian PCM bytes to samples. A trailing odd byte is ignored.
func DecodeS16LE(p []byte, dst []int16) []int16 {
	dst = dst[:0]
	for i := 0; i+1 < len(p); i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(p[i:])))
	}
	return dst
}
