// Package history persists the most recent transcripts.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/adrg/xdg"

	"voicetype/internal/domain"
)

const (
	AppName      = "voicetype"
	DefaultLimit = 10
)

// DefaultPath is history.json under the XDG data directory.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, AppName, "history.json")
}

type document struct {
	Transcriptions []json.RawMessage `json:"transcriptions"`
}

// Store keeps up to limit entries, oldest first, and rewrites the file on every append.
type Store struct {
	path  string
	limit int
	now   func() time.Time

	mu      sync.Mutex
	entries []domain.HistoryEntry
}

// Open loads path. A missing file starts an empty history.
func Open(path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &Store{path: path, limit: limit, now: time.Now}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return s, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", path, err)
	}
	for _, item := range doc.Transcriptions {
		entry, ok := decodeEntry(item)
		if ok {
			s.entries = append(s.entries, entry)
		}
	}
	if len(s.entries) > s.limit {
		s.entries = s.entries[len(s.entries)-s.limit:]
	}
	return s, nil
}

// decodeEntry accepts both the current object form and bare strings from older files.
func decodeEntry(raw json.RawMessage) (domain.HistoryEntry, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return domain.HistoryEntry{Text: text}, text != ""
	}
	var entry domain.HistoryEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Text == "" {
		return domain.HistoryEntry{}, false
	}
	return entry, true
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Append records text. Blank text is ignored.
func (s *Store) Append(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, domain.HistoryEntry{Text: text, CreatedAt: s.now().UTC()})
	if len(s.entries) > s.limit {
		s.entries = append([]domain.HistoryEntry(nil), s.entries[len(s.entries)-s.limit:]...)
	}
	return s.save()
}

// Recent returns up to n entries, newest first. n <= 0 returns everything.
func (s *Store) Recent(n int) []domain.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]domain.HistoryEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// Latest returns the newest entry.
func (s *Store) Latest() (domain.HistoryEntry, bool) {
	recent := s.Recent(1)
	if len(recent) == 0 {
		return domain.HistoryEntry{}, false
	}
	return recent[0], true
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// save writes the whole document to a temp file and renames it over the old one.
func (s *Store) save() error {
	items := make([]json.RawMessage, 0, len(s.entries))
	for _, e := range s.entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
		items = append(items, b)
	}
	payload, err := json.MarshalIndent(document{Transcriptions: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// Preview flattens whitespace and truncates text to max runes, ending in "...".
func Preview(text string, max int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if max <= 3 || utf8.RuneCountInString(flat) <= max {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:max-3]) + "..."
}
