package audit

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recallhq/memvault/services"
)

// archiveDirName is the subdirectory daily files are moved into once past
// the retention window.
const archiveDirName = "archive"

// RotateLogs moves daily files older than retentionDays into the archive
// subdirectory. Returns the number of files archived. The current day's
// file is never touched.
func (s *Service) RotateLogs(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, services.ErrInvalidInput.WithDetail("reason", "retention days must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	archiveDir := filepath.Join(s.cfg.Dir, archiveDirName)
	if err := os.MkdirAll(archiveDir, 0o750); err != nil {
		return 0, services.WrapStorage("creating archive directory", err)
	}

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, services.WrapStorage("listing audit directory", err)
	}

	archived := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		day, ok := dayOfFileName(e.Name())
		if !ok {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		src := filepath.Join(s.cfg.Dir, e.Name())
		dst := filepath.Join(archiveDir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return archived, services.WrapStorage("archiving "+e.Name(), err)
		}
		archived++
	}

	if archived > 0 {
		s.logger.Info("audit logs rotated",
			zap.Int("archived", archived),
			zap.Int("retention_days", retentionDays))
	}
	return archived, nil
}

// dayOfFileName parses the calendar day out of audit_YYYY-MM-DD.jsonl.
func dayOfFileName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, fileNamePrefix) || !strings.HasSuffix(name, fileNameSuffix) {
		return time.Time{}, false
	}
	day := strings.TrimSuffix(strings.TrimPrefix(name, fileNamePrefix), fileNameSuffix)
	t, err := time.Parse(dayFormat, day)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
