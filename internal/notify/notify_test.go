package notify

import (
	"strings"
	"sync"
	"testing"
	"time"

	"voicetype/internal/domain"
	"voicetype/internal/logging"
)

type sentLog struct {
	mu   sync.Mutex
	msgs []string
	ch   chan struct{}
}

func newSentLog() *sentLog {
	return &sentLog{ch: make(chan struct{}, 8)}
}

func (s *sentLog) send(_, message, _ string) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, message)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func (s *sentLog) wait(t *testing.T) string {
	t.Helper()
	select {
	case <-s.ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for notification")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs[len(s.msgs)-1]
}

func TestObserverNotifiesErrors(t *testing.T) {
	t.Parallel()

	sent := newSentLog()
	o := NewObserverWith(sent.send, Options{Errors: true}, logging.Nop())
	o.StatusChanged(domain.StatusUpdate{
		Status:         domain.StatusError,
		Message:        "Transcription failed: timeout",
		RetryAvailable: true,
	})

	got := sent.wait(t)
	if !strings.HasPrefix(got, "Transcription failed: timeout") || !strings.Contains(got, "retry") {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestObserverSuccessIsOptIn(t *testing.T) {
	t.Parallel()

	inserted := domain.StatusUpdate{Status: domain.StatusIdle, Reason: domain.ReasonTextInserted}

	quiet := NewObserverWith(func(string, string, string) error {
		t.Errorf("success notification sent while disabled")
		return nil
	}, Options{Errors: true}, logging.Nop())
	quiet.StatusChanged(inserted)
	quiet.StatusChanged(domain.StatusUpdate{Status: domain.StatusRecording})

	sent := newSentLog()
	loud := NewObserverWith(sent.send, Options{Success: true}, logging.Nop())
	loud.StatusChanged(inserted)
	if got := sent.wait(t); got != "Text inserted" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestObserverErrorsCanBeDisabled(t *testing.T) {
	t.Parallel()

	sent := newSentLog()
	o := NewObserverWith(func(title, message, icon string) error {
		if message != "Text inserted" {
			t.Errorf("unexpected notification %q while errors are disabled", message)
		}
		return sent.send(title, message, icon)
	}, Options{Success: true}, logging.Nop())

	o.StatusChanged(domain.StatusUpdate{Status: domain.StatusError, Message: "Transcription failed"})
	o.StatusChanged(domain.StatusUpdate{Status: domain.StatusIdle, Reason: domain.ReasonTextInserted})

	if got := sent.wait(t); got != "Text inserted" {
		t.Fatalf("unexpected message %q", got)
	}
	select {
	case <-sent.ch:
		t.Fatalf("error notification sent while disabled")
	case <-time.After(50 * time.Millisecond):
	}
}
