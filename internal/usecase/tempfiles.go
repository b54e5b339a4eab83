package usecase

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const recordingPrefix = "RecordTemp_"

func recordingPath(dir, id string) string {
	return filepath.Join(dir, recordingPrefix+id+".wav")
}

// RemoveStaleRecordings deletes recordings left behind by a previous run and returns how many
// were removed. Call it before the controller starts.
func RemoveStaleRecordings(dir string, log *zap.SugaredLogger) int {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnw("reading temp dir failed", "dir", dir, "error", err)
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), recordingPrefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			log.Warnw("removing stale recording failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Infow("removed stale recordings", "dir", dir, "count", removed)
	}
	return removed
}
