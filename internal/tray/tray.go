// Package tray is the notification-area icon and its menu.
package tray

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"voicetype/internal/domain"
	"voicetype/internal/settings"
)

const maxHistory = 10

// Controller is the part of the dictation controller the tray drives.
type Controller interface {
	Toggle(ctx context.Context) error
	Retry(ctx context.Context) error
	CanRetry() bool
	Status() domain.StatusUpdate
}

// Preferences is the settings surface the tray reads and toggles.
type Preferences interface {
	Toggle(key string) (bool, error)
	CleanTranscription() bool
	SilenceTimeout() time.Duration
	ToggleSilenceDetection() (bool, error)
	SelectedMicrophone() (domain.DeviceIdentifier, bool)
	SelectMicrophone(id domain.DeviceIdentifier) error
	Favorites() []domain.DeviceIdentifier
	ToggleFavorite(id domain.DeviceIdentifier) (bool, error)
}

type HistorySource interface {
	Recent(n int) []domain.HistoryEntry
}

type Deps struct {
	Controller Controller
	Prefs      Preferences
	History    HistorySource
	Devices    func() ([]domain.Device, error)
	Copy       func(text string) error
	Quit       func()
}

type Tray struct {
	deps Deps
	log  *zap.SugaredLogger

	refresh chan struct{}

	mu      sync.Mutex
	ready   bool
	devices []domain.Device
	model   Model
	root    []*slot
	icons   map[string][]byte
}

func New(deps Deps, log *zap.SugaredLogger) *Tray {
	return &Tray{
		deps:    deps,
		log:     log,
		refresh: make(chan struct{}, 1),
		icons:   make(map[string][]byte),
	}
}

// Register attaches the tray to an event loop owned by another library.
func (t *Tray) Register() {
	systray.Register(t.onReady, func() {})
}

// StatusChanged schedules a menu and icon refresh.
func (t *Tray) StatusChanged(domain.StatusUpdate) {
	t.Refresh()
}

func (t *Tray) Refresh() {
	select {
	case t.refresh <- struct{}{}:
	default:
	}
}

func (t *Tray) onReady() {
	systray.SetTitle("Voice Typing")
	t.loadDevices()

	root := []*slot{
		newSlot(nil, 0),
		newSlot(nil, 0),
		newSlot(nil, maxHistory),
		newSlot(nil, maxDevices+2),
		newSlot(nil, maxDevices),
		newSlot(nil, 2),
	}
	systray.AddSeparator()
	root = append(root, newSlot(nil, 0))

	t.mu.Lock()
	t.root = root
	t.ready = true
	t.mu.Unlock()

	for _, s := range root {
		s.listen(t.Handle)
	}
	go func() {
		for range t.refresh {
			t.render()
		}
	}()
	t.Refresh()
}

func (t *Tray) loadDevices() {
	if t.deps.Devices == nil {
		return
	}
	devices, err := t.deps.Devices()
	if err != nil {
		t.log.Warnw("listing input devices failed", "error", err)
		return
	}
	t.mu.Lock()
	t.devices = devices
	t.mu.Unlock()
}

// snapshot builds the current menu model.
func (t *Tray) snapshot() Model {
	m := Model{}
	if c := t.deps.Controller; c != nil {
		m.Status = c.Status()
		m.CanRetry = c.CanRetry()
	}
	if t.deps.History != nil {
		m.History = t.deps.History.Recent(maxHistory)
	}
	if p := t.deps.Prefs; p != nil {
		m.CleanTranscription = p.CleanTranscription()
		m.AutoStop = p.SilenceTimeout() > 0
		m.Favorites = p.Favorites()
		if id, ok := p.SelectedMicrophone(); ok {
			m.Selected = &id
		}
	}
	t.mu.Lock()
	m.Devices = append([]domain.Device(nil), t.devices...)
	t.mu.Unlock()
	return m
}

func (t *Tray) render() {
	m := t.snapshot()
	items := Build(m)

	t.mu.Lock()
	t.model = m
	root := t.root
	t.mu.Unlock()

	for i, item := range items {
		if i < len(root) {
			root[i].apply(item)
		}
	}
	systray.SetTooltip(Tooltip(m.Status))
	if icon := t.icon(m.Status.View.TrayColor); icon != nil {
		systray.SetIcon(icon)
	}
}

func (t *Tray) icon(color string) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cached, ok := t.icons[color]; ok {
		return cached
	}
	data, err := IconPNG(color)
	if err != nil {
		t.log.Debugw("tray icon render failed", "color", color, "error", err)
		return nil
	}
	if runtime.GOOS == "windows" {
		data = IconICO(data)
	}
	t.icons[color] = data
	return data
}

// Handle runs a menu action against the model the menu was last rendered from.
func (t *Tray) Handle(action string) {
	kind, index := ParseAction(action)
	t.mu.Lock()
	m := t.model
	t.mu.Unlock()

	var err error
	switch kind {
	case ActionToggle:
		err = t.deps.Controller.Toggle(context.Background())
	case ActionRetry:
		err = t.deps.Controller.Retry(context.Background())
	case ActionCopy:
		if index >= 0 && index < len(m.History) && t.deps.Copy != nil {
			err = t.deps.Copy(m.History[index].Text)
		}
	case ActionSelectMic:
		if d, ok := deviceAt(m.Devices, index); ok {
			err = t.deps.Prefs.SelectMicrophone(d.Identifier())
		}
	case ActionFavorite:
		if d, ok := deviceAt(m.Devices, index); ok {
			_, err = t.deps.Prefs.ToggleFavorite(d.Identifier())
		}
	case ActionRefresh:
		t.loadDevices()
	case ActionClean:
		_, err = t.deps.Prefs.Toggle(settings.KeyCleanTranscription)
	case ActionAutoStop:
		_, err = t.deps.Prefs.ToggleSilenceDetection()
	case ActionExit:
		if t.deps.Quit != nil {
			t.deps.Quit()
		}
		return
	default:
		return
	}
	if err != nil {
		t.log.Infow("tray action failed", "action", action, "error", err)
	}
	t.Refresh()
}

func deviceAt(devices []domain.Device, index int) (domain.Device, bool) {
	deduped := listed(devices)
	if index < 0 || index >= len(deduped) {
		return domain.Device{}, false
	}
	return deduped[index], true
}

// slot is a menu item whose title and action are reassigned on every render. systray
// cannot delete items, so unused slots are hidden.
type slot struct {
	item     *systray.MenuItem
	children []*slot

	mu     sync.Mutex
	action string
}

func newSlot(parent *slot, children int) *slot {
	s := &slot{}
	if parent == nil {
		s.item = systray.AddMenuItem("", "")
	} else {
		s.item = parent.item.AddSubMenuItem("", "")
	}
	for i := 0; i < children; i++ {
		s.children = append(s.children, newSlot(s, 0))
	}
	return s
}

func (s *slot) listen(handle func(string)) {
	go func() {
		for range s.item.ClickedCh {
			s.mu.Lock()
			action := s.action
			s.mu.Unlock()
			if action != "" {
				handle(action)
			}
		}
	}()
	for _, c := range s.children {
		c.listen(handle)
	}
}

func (s *slot) apply(item Item) {
	s.mu.Lock()
	s.action = item.Action
	s.mu.Unlock()

	s.item.SetTitle(item.Title)
	if item.Checked {
		s.item.Check()
	} else {
		s.item.Uncheck()
	}
	if item.Disabled {
		s.item.Disable()
	} else {
		s.item.Enable()
	}
	s.item.Show()

	for i, c := range s.children {
		if i < len(item.Children) {
			c.apply(item.Children[i])
		} else {
			c.hide()
		}
	}
}

func (s *slot) hide() {
	s.mu.Lock()
	s.action = ""
	s.mu.Unlock()
	s.item.Hide()
}
