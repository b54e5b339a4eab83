package usecase

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"voicetype/internal/audio"
	"voicetype/internal/domain"
	"voicetype/internal/logging"
	"voicetype/internal/ports"
	"voicetype/internal/status"
)

// pcm renders a 440 Hz tone (or silence when amplitude is 0) as 4096-byte s16le chunks.
func pcm(seconds float64, amplitude float64) [][]byte {
	n := int(seconds * audio.DefaultSampleRate)
	raw := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/audio.DefaultSampleRate))
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	}
	var chunks [][]byte
	for len(raw) > 0 {
		size := 4096
		if len(raw) < size {
			size = len(raw)
		}
		chunks = append(chunks, raw[:size])
		raw = raw[size:]
	}
	return chunks
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeAudioCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAudioSession struct {
	mu     sync.Mutex
	chunks [][]byte
	index  int

	// hold blocks Read after the scripted chunks until Stop.
	hold bool
	// repeat is returned every interval until Stop.
	repeat   []byte
	interval time.Duration

	// stopDelay keeps Stop blocked after capture has ended.
	stopDelay time.Duration

	stopped   chan struct{}
	stopOnce  sync.Once
	stopCalls int
}

func newFakeAudioSession(chunks [][]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	if f.repeat != nil {
		select {
		case <-f.stopped:
			return 0, io.EOF
		case <-time.After(f.interval):
			return copy(p, f.repeat), nil
		}
	}
	if f.hold {
		<-f.stopped
	}
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	delay := f.stopDelay
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	time.Sleep(delay)
	return nil
}

func (f *fakeAudioSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	errs  []error
	paths []string
	// block holds Transcribe until closed or the context ends.
	block chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	call := len(f.paths)
	f.paths = append(f.paths, path)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return "", f.errs[call]
	}
	if call < len(f.texts) {
		return f.texts[call], nil
	}
	if len(f.texts) > 0 {
		return f.texts[len(f.texts)-1], nil
	}
	return "", nil
}

func (f *fakeTranscriber) calledPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

type fakeCleaner struct {
	text  string
	err   error
	calls int
	// started and release hold Clean until release closes, ignoring cancellation.
	started chan struct{}
	release chan struct{}
}

func (f *fakeCleaner) Clean(_ context.Context, text string) (string, error) {
	f.calls++
	if f.release != nil {
		close(f.started)
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return text, nil
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (f *fakeHistory) Append(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, text)
	return nil
}

func (f *fakeHistory) Recent(n int) []domain.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.HistoryEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, domain.HistoryEntry{Text: f.entries[i]})
	}
	return out
}

func (f *fakeHistory) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entries...)
}

type fakeInserter struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeInserter) Insert(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeInserter) inserted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakePrefs struct {
	clean   bool
	silence time.Duration
}

func (f fakePrefs) CleanTranscription() bool      { return f.clean }
func (f fakePrefs) SilenceTimeout() time.Duration { return f.silence }

type statusRecorder struct {
	mu      sync.Mutex
	updates []domain.StatusUpdate
	levels  []float64
}

func (r *statusRecorder) StatusChanged(update domain.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *statusRecorder) AudioLevel(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
}

func (r *statusRecorder) statuses() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Status, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.Status)
	}
	return out
}

func (r *statusRecorder) last() domain.StatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return domain.StatusUpdate{}
	}
	return r.updates[len(r.updates)-1]
}

func (r *statusRecorder) levelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.levels)
}

// waitFor polls until the latest update has the wanted status and reason.
func (r *statusRecorder) waitFor(t *testing.T, want domain.Status, reason domain.StatusReason) domain.StatusUpdate {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if u := r.last(); u.Status == want && u.Reason == reason {
			return u
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s/%s, last update %+v", want, reason, r.last())
	return domain.StatusUpdate{}
}

type harness struct {
	controller  *DictationController
	capture     *fakeAudioCapture
	transcriber *fakeTranscriber
	cleaner     *fakeCleaner
	history     *fakeHistory
	inserter    *fakeInserter
	observer    *statusRecorder
	tempDir     string
}

type harnessOption func(*harness, *Dependencies)

func newHarness(t *testing.T, sessions []ports.AudioSession, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		capture:     &fakeAudioCapture{sessions: sessions},
		transcriber: &fakeTranscriber{texts: []string{"hello world"}},
		cleaner:     &fakeCleaner{},
		history:     &fakeHistory{},
		inserter:    &fakeInserter{},
		observer:    &statusRecorder{},
		tempDir:     t.TempDir(),
	}
	deps := Dependencies{
		Capture:     h.capture,
		Transcriber: h.transcriber,
		Cleaner:     h.cleaner,
		Rules:       &fakeRules{},
		History:     h.history,
		Inserter:    h.inserter,
		Preferences: fakePrefs{},
	}
	for _, opt := range opts {
		opt(h, &deps)
	}

	manager := status.NewManager(logging.Nop())
	manager.Subscribe(h.observer)
	h.controller = NewDictationController(deps, manager, Config{TempDir: h.tempDir}, logging.Nop())
	t.Cleanup(h.controller.Close)
	return h
}

func withPrefs(p fakePrefs) harnessOption {
	return func(_ *harness, d *Dependencies) { d.Preferences = p }
}

func withRules(r ports.RulesEngine) harnessOption {
	return func(_ *harness, d *Dependencies) { d.Rules = r }
}

func (h *harness) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
