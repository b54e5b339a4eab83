package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"voicetype/internal/domain"
	"voicetype/internal/ports"
)

// ErrInvalidTransition is returned when an event is not allowed from the current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// Event names a status transition.
type Event string

const (
	EventRecord   Event = "record"
	EventProcess  Event = "process"
	EventRetry    Event = "retry"
	EventComplete Event = "complete"
	EventSkip     Event = "skip"
	EventDiscard  Event = "discard"
	EventFail     Event = "fail"
	EventDismiss  Event = "dismiss"
)

var transitions = fsm.Events{
	{Name: string(EventRecord), Src: []string{string(domain.StatusIdle), string(domain.StatusError)}, Dst: string(domain.StatusRecording)},
	{Name: string(EventProcess), Src: []string{string(domain.StatusRecording)}, Dst: string(domain.StatusProcessing)},
	{Name: string(EventRetry), Src: []string{string(domain.StatusError)}, Dst: string(domain.StatusProcessing)},
	{Name: string(EventComplete), Src: []string{string(domain.StatusProcessing)}, Dst: string(domain.StatusIdle)},
	{Name: string(EventSkip), Src: []string{string(domain.StatusRecording)}, Dst: string(domain.StatusIdle)},
	{Name: string(EventDiscard), Src: []string{string(domain.StatusRecording), string(domain.StatusProcessing)}, Dst: string(domain.StatusIdle)},
	{Name: string(EventFail), Src: []string{string(domain.StatusIdle), string(domain.StatusRecording), string(domain.StatusProcessing), string(domain.StatusError)}, Dst: string(domain.StatusError)},
	{Name: string(EventDismiss), Src: []string{string(domain.StatusError)}, Dst: string(domain.StatusIdle)},
}

// Transition describes one requested status change.
type Transition struct {
	Event          Event
	Reason         domain.StatusReason
	Message        string
	RetryAvailable bool
}

// Manager owns the current status and broadcasts every transition to its observers.
// Observers must not fire transitions from inside StatusChanged.
type Manager struct {
	log *zap.SugaredLogger
	now func() time.Time

	mu        sync.Mutex
	machine   *fsm.FSM
	observers []ports.StatusObserver
	last      domain.StatusUpdate
}

func NewManager(log *zap.SugaredLogger) *Manager {
	m := &Manager{
		log:     log,
		now:     time.Now,
		machine: fsm.NewFSM(string(domain.StatusIdle), transitions, fsm.Callbacks{}),
	}
	m.last = domain.StatusUpdate{
		Status:   domain.StatusIdle,
		Previous: domain.StatusIdle,
		Reason:   domain.ReasonReady,
		View:     ViewFor(domain.StatusIdle),
		At:       m.now(),
	}
	return m
}

// Subscribe registers an observer. Observers that also implement ports.LevelObserver receive
// audio levels.
func (m *Manager) Subscribe(observer ports.StatusObserver) {
	if observer == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, observer)
	m.mu.Unlock()
}

// Current returns the current status.
func (m *Manager) Current() domain.Status {
	return domain.Status(m.machine.Current())
}

// Snapshot returns the most recent broadcast update.
func (m *Manager) Snapshot() domain.StatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Can reports whether event is allowed from the current status.
func (m *Manager) Can(event Event) bool {
	return m.machine.Can(string(event))
}

// Fire applies a transition and broadcasts the result. Illegal transitions return an error and
// leave the status unchanged.
func (m *Manager) Fire(ctx context.Context, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous := domain.Status(m.machine.Current())
	if err := m.machine.Event(ctx, string(t.Event)); err != nil {
		var (
			invalid   fsm.InvalidEventError
			unchanged fsm.NoTransitionError
		)
		switch {
		case errors.As(err, &invalid):
			return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t.Event, previous)
		case errors.As(err, &unchanged):
			// a repeated failure replaces the message
		default:
			return fmt.Errorf("status transition %s failed: %w", t.Event, err)
		}
	}

	current := domain.Status(m.machine.Current())
	update := domain.StatusUpdate{
		Status:         current,
		Previous:       previous,
		Reason:         t.Reason,
		Message:        t.Message,
		View:           ViewFor(current),
		RetryAvailable: current == domain.StatusError && t.RetryAvailable,
		At:             m.now(),
	}
	m.last = update

	m.log.Debugw("status changed", "from", previous, "to", current, "reason", t.Reason, "message", t.Message)
	for _, observer := range m.observers {
		observer.StatusChanged(update)
	}
	return nil
}

// PublishLevel forwards an input level to level observers.
func (m *Manager) PublishLevel(level float64) {
	m.mu.Lock()
	observers := append([]ports.StatusObserver(nil), m.observers...)
	m.mu.Unlock()

	for _, observer := range observers {
		if lo, ok := observer.(ports.LevelObserver); ok {
			lo.AudioLevel(level)
		}
	}
}
