package status

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voicetype/internal/domain"
	"voicetype/internal/logging"
)

func TestManagerStartsIdle(t *testing.T) {
	t.Parallel()

	m := NewManager(logging.Nop())
	if m.Current() != domain.StatusIdle {
		t.Fatalf("expected idle, got %s", m.Current())
	}
	snap := m.Snapshot()
	if snap.View.Text != "Ready" {
		t.Fatalf("unexpected idle view: %+v", snap.View)
	}
}

func TestManagerHappyPathBroadcastsEveryTransition(t *testing.T) {
	t.Parallel()

	m := NewManager(logging.Nop())
	tray := &recordingObserver{}
	overlay := &recordingObserver{}
	m.Subscribe(tray)
	m.Subscribe(overlay)

	steps := []Transition{
		{Event: EventRecord, Reason: domain.ReasonRecordingStarted},
		{Event: EventProcess, Reason: domain.ReasonTranscribing},
		{Event: EventComplete, Reason: domain.ReasonTextInserted},
	}
	for _, step := range steps {
		if err := m.Fire(context.Background(), step); err != nil {
			t.Fatalf("fire %s failed: %v", step.Event, err)
		}
	}

	want := []domain.Status{domain.StatusRecording, domain.StatusProcessing, domain.StatusIdle}
	for _, obs := range []*recordingObserver{tray, overlay} {
		got := obs.statuses()
		if len(got) != len(want) {
			t.Fatalf("expected %d updates, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("update %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	}
}

func TestManagerRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	m := NewManager(logging.Nop())
	obs := &recordingObserver{}
	m.Subscribe(obs)

	err := m.Fire(context.Background(), Transition{Event: EventProcess})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if m.Current() != domain.StatusIdle {
		t.Fatalf("status changed on illegal transition: %s", m.Current())
	}
	if len(obs.statuses()) != 0 {
		t.Fatalf("illegal transition must not broadcast")
	}
}

func TestManagerErrorRetryCycle(t *testing.T) {
	t.Parallel()

	m := NewManager(logging.Nop())
	obs := &recordingObserver{}
	m.Subscribe(obs)

	ctx := context.Background()
	mustFire(t, m, Transition{Event: EventRecord})
	mustFire(t, m, Transition{Event: EventProcess})
	mustFire(t, m, Transition{Event: EventFail, Reason: domain.ReasonTranscriptionFailed, Message: "boom", RetryAvailable: true})

	last := m.Snapshot()
	if last.Status != domain.StatusError || !last.RetryAvailable || last.Message != "boom" {
		t.Fatalf("unexpected error snapshot: %+v", last)
	}
	if last.View.Foreground != "#000000" {
		t.Fatalf("expected dark text on error view")
	}

	if !m.Can(EventRetry) {
		t.Fatalf("expected retry to be allowed from error")
	}
	if err := m.Fire(ctx, Transition{Event: EventRetry, Reason: domain.ReasonRetrying}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if m.Current() != domain.StatusProcessing {
		t.Fatalf("expected processing after retry, got %s", m.Current())
	}
}

func TestManagerRetryAvailableOnlyInError(t *testing.T) {
	t.Parallel()

	m := NewManager(logging.Nop())
	mustFire(t, m, Transition{Event: EventRecord, RetryAvailable: true})
	if m.Snapshot().RetryAvailable {
		t.Fatalf("retry must not be advertised outside the error status")
	}
}

func TestManagerPublishLevelReachesLevelObservers(t *testing.T) {
	t.Parallel()

	m := NewManager(logging.Nop())
	plain := &recordingObserver{}
	meter := &levelObserver{}
	m.Subscribe(plain)
	m.Subscribe(meter)

	m.PublishLevel(0.5)
	if len(meter.levels) != 1 || meter.levels[0] != 0.5 {
		t.Fatalf("expected level forwarded, got %v", meter.levels)
	}
}

func TestViewForEveryStatus(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.Status{domain.StatusIdle, domain.StatusRecording, domain.StatusProcessing, domain.StatusError} {
		view := ViewFor(s)
		if view.Text == "" || view.Color == "" || view.TrayGlyph == "" {
			t.Fatalf("incomplete view for %s: %+v", s, view)
		}
	}
	if ViewFor("bogus") != ViewFor(domain.StatusIdle) {
		t.Fatalf("unknown status should fall back to idle view")
	}
	if !ViewFor(domain.StatusRecording).Pulse || ViewFor(domain.StatusIdle).Pulse {
		t.Fatalf("unexpected pulse flags")
	}
}

func TestReasonMessage(t *testing.T) {
	t.Parallel()

	if got := ReasonMessage(domain.ReasonRecordingSilent); got != "Recording contains mostly silence" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := ReasonMessage(domain.ReasonStartupFailed); got != "Startup failed" {
		t.Fatalf("unexpected startup message: %q", got)
	}
	if got := ReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty message for unknown reason, got %q", got)
	}
}

func mustFire(t *testing.T, m *Manager, tr Transition) {
	t.Helper()
	if err := m.Fire(context.Background(), tr); err != nil {
		t.Fatalf("fire %s failed: %v", tr.Event, err)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	updates []domain.StatusUpdate
}

func (r *recordingObserver) StatusChanged(update domain.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *recordingObserver) statuses() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Status, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.Status)
	}
	return out
}

type levelObserver struct {
	recordingObserver
	levels []float64
}

func (l *levelObserver) AudioLevel(level float64) {
	l.levels = append(l.levels, level)
}

func TestManagerRepeatedFailureReplacesMessage(t *testing.T) {
	t.Parallel()

	m := NewManager(logging.Nop())
	obs := &recordingObserver{}
	m.Subscribe(obs)

	mustFire(t, m, Transition{Event: EventFail, Reason: domain.ReasonTranscriptionFailed, Message: "first", RetryAvailable: true})
	mustFire(t, m, Transition{Event: EventFail, Reason: domain.ReasonCaptureFailed, Message: "second"})

	last := m.Snapshot()
	if last.Status != domain.StatusError || last.Message != "second" || last.RetryAvailable {
		t.Fatalf("unexpected snapshot after repeated failure: %+v", last)
	}
	if last.Previous != domain.StatusError {
		t.Fatalf("expected previous error, got %s", last.Previous)
	}
}
