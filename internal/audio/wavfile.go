package audio

import (
	"fmt"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voicetype/internal/domain"
)

const pcmFormat = 1

// WAVWriter streams 16-bit PCM samples into a WAV file.
type WAVWriter struct {
	path       string
	file       *os.File
	enc        *wav.Encoder
	format     *goaudio.Format
	sampleRate int
	channels   int
	samples    int
	scratch    []int
}

// CreateWAV creates path and prepares it for 16-bit PCM.
func CreateWAV(path string, sampleRate, channels int) (*WAVWriter, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav %s: %w", path, err)
	}
	return &WAVWriter{
		path:       path,
		file:       f,
		enc:        wav.NewEncoder(f, sampleRate, 16, channels, pcmFormat),
		format:     &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Path returns the file being written.
func (w *WAVWriter) Path() string {
	return w.path
}

// Write appends interleaved samples.
func (w *WAVWriter) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(w.scratch) < len(samples) {
		w.scratch = make([]int, len(samples))
	}
	data := w.scratch[:len(samples)]
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{Format: w.format, Data: data, SourceBitDepth: 16}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	w.samples += len(samples)
	return nil
}

// Duration returns the length of audio written so far.
func (w *WAVWriter) Duration() time.Duration {
	frames := w.samples / w.channels
	return time.Duration(frames) * time.Second / time.Duration(w.sampleRate)
}

// Close finalises the header and closes the file.
func (w *WAVWriter) Close() error {
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("wav close: %w", encErr)
	}
	return fileErr
}

// Discard closes and removes the file.
func (w *WAVWriter) Discard() {
	_ = w.enc.Close()
	_ = w.file.Close()
	_ = os.Remove(w.path)
}

// Analyze checks a finished recording for minimum duration and overall loudness.
func Analyze(path string) domain.Analysis {
	f, err := os.Open(path)
	if err != nil {
		return domain.Analysis{Reason: domain.ReasonCaptureFailed, Detail: fmt.Sprintf("Error analyzing audio: %v", err)}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return domain.Analysis{Reason: domain.ReasonCaptureFailed, Detail: "Error analyzing audio: not a valid WAV file"}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return domain.Analysis{Reason: domain.ReasonCaptureFailed, Detail: fmt.Sprintf("Error analyzing audio: %v", err)}
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	rate := int(dec.SampleRate)
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	frames := len(buf.Data) / channels
	duration := time.Duration(frames) * time.Second / time.Duration(rate)

	analysis := domain.Analysis{Duration: duration}
	if duration < MinDuration {
		analysis.Reason = domain.ReasonRecordingTooShort
		analysis.Detail = fmt.Sprintf("Recording too short (%.1fs < %.1fs)", duration.Seconds(), MinDuration.Seconds())
		return analysis
	}

	analysis.RMS = rmsInt(buf.Data, int(dec.BitDepth))
	if analysis.RMS < SilenceThreshold {
		analysis.Reason = domain.ReasonRecordingSilent
		analysis.Detail = "Recording contains mostly silence"
		return analysis
	}

	analysis.Valid = true
	return analysis
}

func rmsInt(data []int, bitDepth int) float64 {
	if len(data) == 0 {
		return 0
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))
	var sum float64
	for _, s := range data {
		v := float64(s) / scale
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(data)))
}
