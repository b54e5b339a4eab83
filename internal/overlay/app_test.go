package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voicetype/internal/domain"
	"voicetype/internal/logging"
	"voicetype/internal/usecase"
)

type call struct {
	op    string
	event string
	data  any
}

type fakeShell struct {
	mu    sync.Mutex
	calls []call
	seen  chan struct{}
}

func newFakeShell() *fakeShell {
	return &fakeShell{seen: make(chan struct{}, 64)}
}

func (s *fakeShell) record(c call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
	s.seen <- struct{}{}
}

func (s *fakeShell) Emit(_ context.Context, event string, data any) {
	s.record(call{op: "emit", event: event, data: data})
}
func (s *fakeShell) Show(context.Context)  { s.record(call{op: "show"}) }
func (s *fakeShell) Hide(context.Context)  { s.record(call{op: "hide"}) }
func (s *fakeShell) Place(context.Context) { s.record(call{op: "place"}) }

// waitOps blocks until n more shell calls were recorded.
func (s *fakeShell) waitOps(t *testing.T, n int) []call {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.seen:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for shell call %d of %d", i+1, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

type manualTimers struct {
	mu    sync.Mutex
	fns   []func()
	delay []time.Duration
}

func (m *manualTimers) after(d time.Duration, fn func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, fn)
	m.delay = append(m.delay, d)
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	fn := m.fns[i]
	m.mu.Unlock()
	fn()
}

type fakeController struct {
	mu       sync.Mutex
	status   domain.StatusUpdate
	canRetry bool
	canceled int
	retried  int
	err      error
}

func (f *fakeController) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled++
	return f.err
}

func (f *fakeController) Retry(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried++
	return nil
}

func (f *fakeController) CanRetry() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canRetry
}

func (f *fakeController) Status() domain.StatusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func startedApp(t *testing.T) (*App, *fakeShell, *manualTimers) {
	t.Helper()
	shell := newFakeShell()
	timers := &manualTimers{}
	app := NewApp(shell, logging.Nop())
	app.after = timers.after
	app.Startup(context.Background())
	shell.waitOps(t, 2)
	return app, shell, timers
}

func TestStartupPlacesAndHides(t *testing.T) {
	t.Parallel()

	_, shell, _ := startedApp(t)
	shell.mu.Lock()
	defer shell.mu.Unlock()
	if len(shell.calls) != 2 || shell.calls[0].op != "place" || shell.calls[1].op != "hide" {
		t.Fatalf("unexpected startup calls: %+v", shell.calls)
	}
}

func TestStatusChangedShowsWhileRecording(t *testing.T) {
	t.Parallel()

	app, shell, timers := startedApp(t)
	app.StatusChanged(domain.StatusUpdate{Status: domain.StatusRecording})

	calls := shell.waitOps(t, 2)
	emit, show := calls[2], calls[3]
	if emit.op != "emit" || emit.event != EventStatus || show.op != "show" {
		t.Fatalf("unexpected calls: %+v", calls[2:])
	}
	if len(timers.fns) != 0 {
		t.Fatalf("recording must not schedule auto hide")
	}
}

func TestWarningAutoHides(t *testing.T) {
	t.Parallel()

	app, shell, timers := startedApp(t)
	app.StatusChanged(domain.StatusUpdate{Status: domain.StatusIdle, Reason: domain.ReasonRecordingTooShort})
	calls := shell.waitOps(t, 2)
	if calls[3].op != "show" {
		t.Fatalf("warnings should be shown, got %+v", calls[3])
	}
	if len(timers.delay) != 1 || timers.delay[0] != warningHideAfter {
		t.Fatalf("expected warning timer, got %v", timers.delay)
	}

	timers.fire(0)
	calls = shell.waitOps(t, 1)
	if calls[len(calls)-1].op != "hide" {
		t.Fatalf("expected hide after timer, got %+v", calls[len(calls)-1])
	}
}

func TestStaleTimerDoesNotHideNewerStatus(t *testing.T) {
	t.Parallel()

	app, shell, timers := startedApp(t)
	app.StatusChanged(domain.StatusUpdate{Status: domain.StatusError, Message: "boom"})
	shell.waitOps(t, 2)
	if timers.delay[0] != errorHideAfter {
		t.Fatalf("expected error timer, got %v", timers.delay[0])
	}

	app.StatusChanged(domain.StatusUpdate{Status: domain.StatusRecording})
	shell.waitOps(t, 2)

	timers.fire(0)
	app.StatusChanged(domain.StatusUpdate{Status: domain.StatusProcessing})
	calls := shell.waitOps(t, 2)
	for _, c := range calls[6:] {
		if c.op == "hide" {
			t.Fatalf("stale timer hid the window: %+v", calls)
		}
	}
}

func TestIdleHidesImmediately(t *testing.T) {
	t.Parallel()

	app, shell, _ := startedApp(t)
	app.StatusChanged(domain.StatusUpdate{Status: domain.StatusIdle, Reason: domain.ReasonTextInserted})
	calls := shell.waitOps(t, 2)
	if calls[3].op != "hide" {
		t.Fatalf("expected hide, got %+v", calls[3])
	}
}

func TestAudioLevelEmitted(t *testing.T) {
	t.Parallel()

	app, shell, _ := startedApp(t)
	app.AudioLevel(0.42)
	calls := shell.waitOps(t, 1)
	last := calls[len(calls)-1]
	if last.event != EventLevel || last.data != 0.42 {
		t.Fatalf("unexpected level call: %+v", last)
	}
}

func TestClick(t *testing.T) {
	t.Parallel()

	app := NewApp(newFakeShell(), logging.Nop())
	if err := app.Click(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	ctrl := &fakeController{status: domain.StatusUpdate{Status: domain.StatusRecording}, err: usecase.ErrNoActiveSession}
	app.Attach(ctrl)
	if err := app.Click(); err != nil {
		t.Fatalf("missing session should be ignored, got %v", err)
	}
	if ctrl.canceled != 1 {
		t.Fatalf("expected cancel while recording")
	}

	ctrl.status = domain.StatusUpdate{Status: domain.StatusError}
	ctrl.canRetry = true
	ctrl.err = nil
	if err := app.Click(); err != nil || ctrl.retried != 1 {
		t.Fatalf("expected retry, err=%v retried=%d", err, ctrl.retried)
	}

	ctrl.canRetry = false
	if err := app.Click(); err != nil || ctrl.canceled != 2 {
		t.Fatalf("expected dismiss, err=%v canceled=%d", err, ctrl.canceled)
	}

	ctrl.status = domain.StatusUpdate{Status: domain.StatusProcessing}
	if err := app.Click(); err != nil || ctrl.canceled != 2 || ctrl.retried != 1 {
		t.Fatalf("processing click must be a no-op")
	}
}

func TestGetStatusBeforeAttach(t *testing.T) {
	t.Parallel()

	app := NewApp(newFakeShell(), logging.Nop())
	if got := app.GetStatus(); got.Status != domain.StatusIdle {
		t.Fatalf("unexpected status: %+v", got)
	}

	app.mu.Lock()
	app.bootErr = errors.New("no api key")
	app.mu.Unlock()
	got := app.GetStatus()
	if got.Status != domain.StatusError || got.Reason != domain.ReasonStartupFailed || got.Message != "Startup failed: no api key" {
		t.Fatalf("unexpected boot status: %+v", got)
	}
}

func TestDarkenColor(t *testing.T) {
	t.Parallel()

	got, err := DarkenColor("#FF0000", 0.7)
	if err != nil || got != "#b20000" {
		t.Fatalf("unexpected darken: %q err=%v", got, err)
	}
	if _, err := DarkenColor("red", 0.7); err == nil {
		t.Fatalf("expected invalid colour error")
	}
	if colors := PulseColors("#0066CC"); len(colors) != 2 || colors[1] != "#00478e" {
		t.Fatalf("unexpected pulse colours: %v", colors)
	}
}
