package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamTranscriber replays a recording over the live /listen websocket and joins the final
// results.
type StreamTranscriber struct {
	cfg Config
	log *zap.SugaredLogger
}

type streamParams struct {
	SampleRate int
	Channels   int
}

func (t *StreamTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	pcm, params, err := readPCM(audioPath)
	if err != nil {
		return "", err
	}

	session, err := t.open(ctx, params)
	if err != nil {
		return "", err
	}

	agg := newTranscriptAggregator()
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for event := range session.Events() {
			agg.Add(event)
		}
	}()

	for offset := 0; offset < len(pcm); offset += t.cfg.ChunkSize {
		end := min(offset+t.cfg.ChunkSize, len(pcm))
		if err := session.SendAudio(pcm[offset:end]); err != nil {
			_ = session.Close()
			<-consumed
			return "", err
		}
	}
	_ = session.CloseSend()

	streamErr := waitForStream(session, t.cfg.FinalizeTimeout)
	<-consumed

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	raw := agg.Raw()
	if raw == "" && streamErr != nil {
		return "", streamErr
	}
	if streamErr != nil {
		t.log.Warnw("deepgram stream ended with error after transcript", "error", streamErr)
	}
	return raw, nil
}

func (t *StreamTranscriber) open(ctx context.Context, params streamParams) (*streamingSession, error) {
	wsURL, err := buildListenURL(t.cfg, params)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	session := &streamingSession{
		conn:   conn,
		events: make(chan transcriptEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

// readPCM returns the samples of a 16-bit WAV as little-endian bytes.
func readPCM(path string) ([]byte, streamParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, streamParams{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, streamParams{}, errors.New("recording is not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, streamParams{}, fmt.Errorf("decode recording: %w", err)
	}
	if dec.BitDepth != 16 {
		return nil, streamParams{}, fmt.Errorf("unsupported bit depth %d", dec.BitDepth)
	}

	out := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out, streamParams{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}, nil
}

type transcriptEvent struct {
	Text  string
	Final bool
}

type streamingSession struct {
	conn *websocket.Conn

	events chan transcriptEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan transcriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}
		s.emit(transcriptEvent{Text: transcript, Final: response.IsFinal || response.SpeechFinal})
	}
}

func (s *streamingSession) emit(event transcriptEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	default:
	}
}

func waitForStream(session *streamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type alternative struct {
	Transcript string `json:"transcript"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config, params streamParams) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if params.SampleRate <= 0 {
		params.SampleRate = 16000
	}
	if params.Channels <= 0 {
		params.Channels = 1
	}
	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(params.SampleRate))
	query.Set("channels", strconv.Itoa(params.Channels))
	query.Set("interim_results", "false")
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
