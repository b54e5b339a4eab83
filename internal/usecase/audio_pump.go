package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"

	"voicetype/internal/audio"
)

// pumpRecording copies PCM from the capture session into the WAV file, metering every chunk.
// onAutoStop is called at most once and must not block.
func pumpRecording(
	rec *recordingSession,
	chunkSize int,
	publishLevel func(float64),
	onAutoStop func(),
) {
	defer close(rec.done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	var (
		samples  []int16
		pending  []byte
		stopSent bool
	)
	for {
		n, err := rec.audio.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if len(pending) > 0 {
				chunk = append(pending, chunk...)
				pending = nil
			}
			samples = audio.DecodeS16LE(chunk, samples)
			if len(chunk)%2 == 1 {
				pending = []byte{chunk[len(chunk)-1]}
			}

			if writeErr := rec.wav.Write(samples); writeErr != nil {
				rec.pumpErr = fmt.Errorf("failed to write recording: %w", writeErr)
				return
			}
			level, autoStop := rec.meter.Observe(samples)
			publishLevel(level)
			if autoStop && !stopSent {
				stopSent = true
				onAutoStop()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
				rec.pumpErr = fmt.Errorf("audio capture error: %w", err)
			}
			return
		}
	}
}
