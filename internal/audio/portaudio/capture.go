// Package portaudio captures the microphone in-process through PortAudio.
package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/smallnest/ringbuffer"
	"go.uber.org/zap"

	"voicetype/internal/audio"
	"voicetype/internal/domain"
	"voicetype/internal/ports"
)

const (
	framesPerBuffer = 1024
	// backlog is how much audio the stream may run ahead of the reader.
	backlog = 2 * time.Second
)

// ErrDeviceNotFound is returned when the configured input device is not present.
var ErrDeviceNotFound = errors.New("input device not found")

// Capture opens PortAudio input streams. Each session initialises and terminates the library
// on its own so a failed device never leaves PortAudio half open.
type Capture struct {
	log *zap.SugaredLogger
}

func NewCapture(log *zap.SugaredLogger) *Capture {
	return &Capture{log: log}
}

func (c *Capture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}

	dev, err := resolveDevice(cfg.InputDevice)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	channels := cfg.Channels
	if dev.MaxInputChannels > 0 && channels > dev.MaxInputChannels {
		channels = dev.MaxInputChannels
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = framesPerBuffer

	in := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(params, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open stream failed: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start stream failed: %w", err)
	}
	c.log.Debugw("portaudio capture started", "device", dev.Name, "channels", channels, "sample_rate", cfg.SampleRate)

	s := &session{
		stream: stream,
		in:     in,
		buf:    ringbuffer.New(backlogBytes(cfg.SampleRate, channels)).SetBlocking(true),
		done:   make(chan struct{}),
		log:    c.log,
	}
	go s.loop(ctx)
	return s, nil
}

func backlogBytes(sampleRate, channels int) int {
	n := int(backlog.Seconds()*float64(sampleRate)) * channels * 2
	if floor := framesPerBuffer * channels * 4; n < floor {
		n = floor
	}
	return n
}

func resolveDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || strings.EqualFold(name, "default") {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var best *portaudio.DeviceInfo
	for _, info := range infos {
		if info.Name != name || info.MaxInputChannels <= 0 {
			continue
		}
		if best == nil || info.MaxInputChannels > best.MaxInputChannels ||
			(info.MaxInputChannels == best.MaxInputChannels && info.DefaultSampleRate > best.DefaultSampleRate) {
			best = info
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return best, nil
}

type session struct {
	stream *portaudio.Stream
	in     []int16
	buf    *ringbuffer.RingBuffer
	done   chan struct{}
	log    *zap.SugaredLogger

	stopping atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

func (s *session) loop(ctx context.Context) {
	defer close(s.done)
	out := make([]byte, len(s.in)*2)
	for !s.stopping.Load() {
		if ctx.Err() != nil {
			s.buf.CloseWithError(ctx.Err())
			return
		}
		if err := s.stream.Read(); err != nil {
			// Input overflow drops a buffer; keep going.
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			s.buf.CloseWithError(fmt.Errorf("stream read failed: %w", err))
			return
		}
		for i, v := range s.in {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
		if _, err := s.buf.Write(out); err != nil {
			return
		}
	}
}

func (s *session) Read(p []byte) (int, error) {
	return s.buf.Read(p)
}

func (s *session) Close() error {
	return s.Stop()
}

// Stop ends capture. The reader sees io.EOF once the last buffer has been consumed.
func (s *session) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		select {
		case <-s.done:
		case <-time.After(time.Second):
			s.buf.CloseWithError(io.ErrClosedPipe)
			<-s.done
		}
		if err := s.stream.Stop(); err != nil {
			s.stopErr = fmt.Errorf("stop stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.stopErr == nil {
			s.stopErr = fmt.Errorf("close stream: %w", err)
		}
		if err := portaudio.Terminate(); err != nil {
			s.log.Warnw("portaudio terminate failed", "error", err)
		}
		s.buf.CloseWriter()
	})
	return s.stopErr
}

// Devices lists every PortAudio device and marks the default input.
func Devices() ([]domain.Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	out := make([]domain.Device, 0, len(infos))
	for _, info := range infos {
		d := domain.Device{
			ID:                info.Index,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			Default:           info.Name == defaultName && info.MaxInputChannels > 0,
		}
		if info.HostApi != nil {
			d.HostAPI = info.HostApi.Name
		}
		out = append(out, d)
	}
	return out, nil
}

// DeviceByIndex returns the identifier of the device at a legacy numeric index.
func DeviceByIndex(index int) (domain.DeviceIdentifier, bool) {
	devices, err := Devices()
	if err != nil {
		return domain.DeviceIdentifier{}, false
	}
	for _, d := range devices {
		if d.ID == index && d.MaxInputChannels > 0 {
			return d.Identifier(), true
		}
	}
	return domain.DeviceIdentifier{}, false
}
