package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"voicetype/internal/logging"
)

func TestRemoveStaleRecordings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"RecordTemp_abc.wav", "RecordTemp_def.wav", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "RecordTemp_dir"), 0o700); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	if got := RemoveStaleRecordings(dir, logging.Nop()); got != 2 {
		t.Fatalf("expected 2 removals, got %d", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected notes.txt and the directory to remain, got %d entries", len(entries))
	}
	if got := RemoveStaleRecordings(filepath.Join(dir, "missing"), logging.Nop()); got != 0 {
		t.Fatalf("missing dir should remove nothing, got %d", got)
	}
}
