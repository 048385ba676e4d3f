// Package audit implements the durable append-only trail of access
// decisions. Logging never blocks the caller: entries are enqueued onto a
// bounded channel drained by a single background writer, which is what
// guarantees total write order within a daily file without per-write
// locking. When the queue is full new entries are dropped with a warning;
// audit durability is best-effort and must never stall primary operations.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
)

// fileNameFormat is the daily audit file layout: audit_YYYY-MM-DD.jsonl.
const (
	fileNamePrefix = "audit_"
	fileNameSuffix = ".jsonl"
	dayFormat      = "2006-01-02"
)

// Config holds configuration for the audit Service.
type Config struct {
	Dir        string // directory holding daily files
	BufferSize int    // size of the event buffer channel
}

// DefaultConfig returns the default configuration.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, BufferSize: 10000}
}

// Service is the asynchronous audit trail writer.
type Service struct {
	cfg    Config
	logger *zap.Logger

	eventChan chan *models.AuditEntry
	wg        sync.WaitGroup
	mu        sync.Mutex
	started   bool

	dropped atomic.Uint64
	written atomic.Uint64

	// current open day file; owned exclusively by the writer goroutine
	currentDay  string
	currentFile *os.File
}

// NewService creates an audit Service. Call Start before logging.
func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig(cfg.Dir).BufferSize
	}
	return &Service{
		cfg:       cfg,
		logger:    logger,
		eventChan: make(chan *models.AuditEntry, cfg.BufferSize),
	}
}

// Start launches the single background writer.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o750); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	s.wg.Add(1)
	go s.writer()
	s.started = true

	s.logger.Info("started audit service",
		zap.String("dir", s.cfg.Dir),
		zap.Int("buffer_size", s.cfg.BufferSize))
	return nil
}

// Stop drains pending entries and closes the current file. Entries logged
// after Stop are dropped.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record enqueues a prepared entry. Fire-and-forget: the returned id is the
// entry id, and a full queue drops the entry rather than blocking. Security
// sensitive actions are additionally surfaced synchronously as warnings.
func (s *Service) Record(entry *models.AuditEntry) string {
	if entry.Action.SecuritySensitive() {
		s.logger.Warn("security-relevant audit event",
			zap.String("action", string(entry.Action)),
			zap.String("user", entry.User),
			zap.String("details", entry.Details))
	}

	// The send happens under the same lock Stop takes before closing the
	// channel, so a Record racing shutdown can never send on a closed
	// channel. The send itself is non-blocking, so the lock is never held
	// for longer than a channel enqueue.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.dropped.Add(1)
		return entry.ID
	}

	select {
	case s.eventChan <- entry:
	default:
		// Queue overflow policy: drop-new with a warning. Chosen over
		// blocking so audit pressure can never stall store/search paths.
		s.dropped.Add(1)
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(entry.Action)),
			zap.String("user", entry.User))
	}
	return entry.ID
}

// Log builds and enqueues an entry. Convenience wrapper over Record.
func (s *Service) Log(action models.AuditAction, user, details string) string {
	return s.Record(models.NewAuditEntry(action, user, details))
}

// Stats reports queue health counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	return Stats{
		BufferSize:    s.cfg.BufferSize,
		PendingEvents: len(s.eventChan),
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Started:       started,
	}
}

// Stats represents audit service statistics.
type Stats struct {
	BufferSize    int
	PendingEvents int
	Written       uint64
	Dropped       uint64
	Started       bool
}

// writer is the single goroutine appending entries to daily files in
// arrival order.
func (s *Service) writer() {
	defer s.wg.Done()
	defer s.closeCurrent()

	for entry := range s.eventChan {
		if err := s.append(entry); err != nil {
			// Writer failures go to the fallback channel (process log) and
			// the entry is dropped; they are never propagated to callers.
			s.dropped.Add(1)
			s.logger.Error("failed to append audit entry",
				zap.Error(err),
				zap.String("action", string(entry.Action)),
				zap.String("entry_id", entry.ID))
		}
	}
}

// append writes one JSON line to the entry's calendar-day file, rotating
// the open handle when the day changes.
func (s *Service) append(entry *models.AuditEntry) error {
	day := entry.Timestamp.UTC().Format(dayFormat)
	if s.currentFile == nil || day != s.currentDay {
		s.closeCurrent()
		path := filepath.Join(s.cfg.Dir, fileNamePrefix+day+fileNameSuffix)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		s.currentFile = f
		s.currentDay = day
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	if _, err := s.currentFile.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	s.written.Add(1)
	return nil
}

func (s *Service) closeCurrent() {
	if s.currentFile != nil {
		_ = s.currentFile.Close()
		s.currentFile = nil
		s.currentDay = ""
	}
}
