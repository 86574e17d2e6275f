package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// backupTimeFormat sorts lexicographically in time order, so rotation can
// sort backup filenames instead of parsing timestamps back out.
const backupTimeFormat = "20060102T150405.000"

// BackupManager snapshots the primary data file before every mutating
// write and keeps only the most recent N snapshots. Snapshots are strictly
// best-effort: a failed backup is logged and never blocks the write.
type BackupManager struct {
	dir    string
	keep   int
	logger *zap.Logger
	now    func() time.Time
}

// NewBackupManager constructs a manager rotating at keep snapshots.
func NewBackupManager(dir string, keep int, logger *zap.Logger) *BackupManager {
	if keep <= 0 {
		keep = 10
	}
	return &BackupManager{dir: dir, keep: keep, logger: logger, now: time.Now}
}

// Snapshot copies the current contents of primaryPath into the backup
// directory and rotates old snapshots. A missing primary file is fine (the
// very first write has nothing to snapshot).
func (b *BackupManager) Snapshot(primaryPath string) {
	data, err := os.ReadFile(primaryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("backup read failed", zap.String("path", primaryPath), zap.Error(err))
		}
		return
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		b.logger.Warn("backup dir unavailable", zap.String("dir", b.dir), zap.Error(err))
		return
	}

	name := fmt.Sprintf("tickets-%s.json", b.now().UTC().Format(backupTimeFormat))
	if err := os.WriteFile(filepath.Join(b.dir, name), data, 0o644); err != nil {
		b.logger.Warn("backup write failed", zap.String("file", name), zap.Error(err))
		return
	}

	b.rotate()
}

func (b *BackupManager) rotate() {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		b.logger.Warn("backup rotation skipped", zap.Error(err))
		return
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "tickets-") && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= b.keep {
		return
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-b.keep] {
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil {
			b.logger.Warn("backup prune failed", zap.String("file", name), zap.Error(err))
		}
	}
}
