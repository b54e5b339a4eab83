// Package settings persists the user's tray toggles and microphone choices as a flat JSON
// document. Every change is written through immediately.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"voicetype/internal/domain"
)

const (
	KeyContinuousCapture   = "continuous_capture"
	KeySmartCapture        = "smart_capture"
	KeyCleanTranscription  = "clean_transcription"
	KeySilenceTimeout      = "silence_timeout"
	KeySelectedMicrophone  = "selected_microphone"
	KeyFavoriteMicrophones = "favorite_microphones"
)

// DefaultSilenceTimeout is applied when auto-stop is switched on from the tray.
const DefaultSilenceTimeout = 2 * time.Second

// DeviceLookup resolves a legacy numeric device index.
type DeviceLookup func(index int) (domain.DeviceIdentifier, bool)

// DefaultPath is settings.json under the XDG config directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "voicetype", "settings.json")
}

type Store struct {
	path string
	log  *zap.SugaredLogger

	mu sync.Mutex
	v  *viper.Viper
}

// Open loads path over the defaults. A missing or unreadable file falls back to defaults.
func Open(path string, log *zap.SugaredLogger) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault(KeyContinuousCapture, true)
	v.SetDefault(KeySmartCapture, false)
	v.SetDefault(KeyCleanTranscription, true)
	v.SetDefault(KeySilenceTimeout, 0)
	v.SetDefault(KeySelectedMicrophone, nil)
	v.SetDefault(KeyFavoriteMicrophones, []any{})

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnw("settings unreadable, using defaults", "path", path, "error", err)
	}
	return &Store{path: path, log: log, v: v}
}

func (s *Store) Path() string {
	return s.path
}

// Bool returns a boolean setting.
func (s *Store) Bool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetBool(key)
}

// Set stores value under key and saves the document.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	return s.save()
}

// Toggle flips a boolean setting and returns the new value.
func (s *Store) Toggle(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := !s.v.GetBool(key)
	s.v.Set(key, next)
	return next, s.save()
}

func (s *Store) CleanTranscription() bool {
	return s.Bool(KeyCleanTranscription)
}

// SilenceTimeout returns the initial-silence auto-stop delay. Zero disables auto-stop.
func (s *Store) SilenceTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v.Get(KeySilenceTimeout) == nil {
		return 0
	}
	seconds := s.v.GetFloat64(KeySilenceTimeout)
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// ToggleSilenceDetection switches auto-stop between off and DefaultSilenceTimeout.
func (s *Store) ToggleSilenceDetection() (bool, error) {
	enabled := s.SilenceTimeout() == 0
	value := 0.0
	if enabled {
		value = DefaultSilenceTimeout.Seconds()
	}
	return enabled, s.Set(KeySilenceTimeout, value)
}

// SelectedMicrophone returns the saved input device, if any.
func (s *Store) SelectedMicrophone() (domain.DeviceIdentifier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toIdentifier(s.v.Get(KeySelectedMicrophone))
}

func (s *Store) SelectMicrophone(id domain.DeviceIdentifier) error {
	return s.Set(KeySelectedMicrophone, identifierMap(id))
}

// Favorites returns the favourite microphones in the order they were added.
func (s *Store) Favorites() []domain.DeviceIdentifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites()
}

func (s *Store) IsFavorite(id domain.DeviceIdentifier) bool {
	for _, f := range s.Favorites() {
		if f == id {
			return true
		}
	}
	return false
}

// ToggleFavorite adds or removes id and reports whether it is now a favourite.
func (s *Store) ToggleFavorite(id domain.DeviceIdentifier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.favorites()
	next := make([]any, 0, len(current)+1)
	removed := false
	for _, f := range current {
		if f == id {
			removed = true
			continue
		}
		next = append(next, identifierMap(f))
	}
	if !removed {
		next = append(next, identifierMap(id))
	}
	s.v.Set(KeyFavoriteMicrophones, next)
	return !removed, s.save()
}

func (s *Store) favorites() []domain.DeviceIdentifier {
	raw, _ := s.v.Get(KeyFavoriteMicrophones).([]any)
	out := make([]domain.DeviceIdentifier, 0, len(raw))
	for _, item := range raw {
		if id, ok := toIdentifier(item); ok {
			out = append(out, id)
		}
	}
	return out
}

// Migrate rewrites numeric device indexes from older settings files as identifiers. Indexes
// that no longer resolve are dropped. The document is saved only when something changed.
func (s *Store) Migrate(lookup DeviceLookup) error {
	if lookup == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	if index, ok := toIndex(s.v.Get(KeySelectedMicrophone)); ok {
		if id, found := lookup(index); found {
			s.v.Set(KeySelectedMicrophone, identifierMap(id))
		} else {
			// viper falls back to the file value for nil overrides
			s.v.Set(KeySelectedMicrophone, "")
		}
		changed = true
	}

	raw, _ := s.v.Get(KeyFavoriteMicrophones).([]any)
	migrated := make([]any, 0, len(raw))
	for _, item := range raw {
		index, ok := toIndex(item)
		if !ok {
			migrated = append(migrated, item)
			continue
		}
		changed = true
		if id, found := lookup(index); found {
			migrated = append(migrated, identifierMap(id))
		}
	}
	if !changed {
		return nil
	}
	s.v.Set(KeyFavoriteMicrophones, migrated)
	s.log.Infow("migrated legacy device settings", "path", s.path)
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}

func identifierMap(id domain.DeviceIdentifier) map[string]any {
	return map[string]any{
		"name":               id.Name,
		"channels":           id.Channels,
		"default_samplerate": id.DefaultSampleRate,
	}
}

func toIdentifier(value any) (domain.DeviceIdentifier, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return domain.DeviceIdentifier{}, false
	}
	name, _ := m["name"].(string)
	if name == "" {
		return domain.DeviceIdentifier{}, false
	}
	id := domain.DeviceIdentifier{Name: name}
	if channels, ok := toIndex(m["channels"]); ok {
		id.Channels = channels
	}
	id.DefaultSampleRate = toFloat(m["default_samplerate"])
	return id, true
}

func toIndex(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
