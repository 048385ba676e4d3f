package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
)

func startedService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewService(Config{Dir: dir, BufferSize: 128}, zap.NewNop())
	require.NoError(t, s.Start())
	return s, dir
}

func readLines(t *testing.T, path string) []models.AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []models.AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e models.AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func todayFile(dir string) string {
	return filepath.Join(dir, fileNamePrefix+time.Now().UTC().Format(dayFormat)+fileNameSuffix)
}

func TestService_WritesOneLinePerEntry(t *testing.T) {
	s, dir := startedService(t)

	id1 := s.Log(models.AuditActionMemoryStored, "+15550001", "stored memory abc")
	id2 := s.Log(models.AuditActionMemorySearch, "+15550001", "self search")
	require.NoError(t, s.Stop(5*time.Second))

	entries := readLines(t, todayFile(dir))
	require.Len(t, entries, 2)
	assert.Equal(t, id1, entries[0].ID)
	assert.Equal(t, id2, entries[1].ID)
	assert.Equal(t, models.AuditActionMemoryStored, entries[0].Action)
}

func TestService_SingleWriterPreservesOrder(t *testing.T) {
	s, dir := startedService(t)

	const n = 100
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = s.Log(models.AuditActionMemoryStored, "+15550001", "entry")
	}
	require.NoError(t, s.Stop(5*time.Second))

	entries := readLines(t, todayFile(dir))
	require.Len(t, entries, n)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID, "total order per daily file")
	}
}

func TestService_RecordNeverBlocksWhenFull(t *testing.T) {
	dir := t.TempDir()
	s := NewService(Config{Dir: dir, BufferSize: 1}, zap.NewNop())
	// Stopped service: nothing drains the queue. Record must still return
	// immediately, counting drops instead of blocking.
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(5*time.Second))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.Record(models.NewAuditEntry(models.AuditActionMemoryStored, "+1", "x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked")
	}
	assert.NotZero(t, s.Stats().Dropped)
}

func TestService_RecordDuringStopDoesNotPanic(t *testing.T) {
	s, _ := startedService(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Record(models.NewAuditEntry(models.AuditActionMemoryStored, "+1", "x"))
			}
		}()
	}

	// Stop races the recorders; entries landing after shutdown are dropped,
	// never sent on the closed channel.
	require.NoError(t, s.Stop(5*time.Second))
	wg.Wait()
}

func TestService_RotateLogs(t *testing.T) {
	s, dir := startedService(t)
	defer s.Stop(time.Second)

	oldDay := time.Now().UTC().AddDate(0, 0, -45).Format(dayFormat)
	recentDay := time.Now().UTC().AddDate(0, 0, -5).Format(dayFormat)
	for _, day := range []string{oldDay, recentDay} {
		path := filepath.Join(dir, fileNamePrefix+day+fileNameSuffix)
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o640))
	}

	archived, err := s.RotateLogs(30)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	_, err = os.Stat(filepath.Join(dir, archiveDirName, fileNamePrefix+oldDay+fileNameSuffix))
	assert.NoError(t, err, "old file moved to archive")
	_, err = os.Stat(filepath.Join(dir, fileNamePrefix+recentDay+fileNameSuffix))
	assert.NoError(t, err, "recent file untouched")
}

func TestService_SearchLogs(t *testing.T) {
	s, _ := startedService(t)

	s.Record(models.NewAuditEntry(models.AuditActionMemoryStored, "+15550001", "stored budget memo").
		WithTenant("acme", "finance").WithSensitivity(models.TierSecret))
	s.Record(models.NewAuditEntry(models.AuditActionAccessDenied, "+15550002", "get denied"))
	s.Record(models.NewAuditEntry(models.AuditActionMemoryStored, "+15550002", "stored note"))
	require.NoError(t, s.Stop(5*time.Second))

	day := time.Now().UTC()

	t.Run("by user", func(t *testing.T) {
		got, err := s.SearchLogs(Filters{User: "+15550001"}, day, day, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "acme", got[0].TenantID)
	})

	t.Run("by action", func(t *testing.T) {
		got, err := s.SearchLogs(Filters{Action: models.AuditActionMemoryStored}, day, day, 10)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by details substring", func(t *testing.T) {
		got, err := s.SearchLogs(Filters{Contains: "budget"}, day, day, 10)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.SearchLogs(Filters{}, day, day, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("empty range day", func(t *testing.T) {
		past := day.AddDate(0, 0, -3)
		got, err := s.SearchLogs(Filters{}, past, past, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestService_ComplianceReport(t *testing.T) {
	s, _ := startedService(t)

	s.Record(models.NewAuditEntry(models.AuditActionMemoryStored, "+15550001", "a").
		WithTenant("acme", "finance").WithSensitivity(models.TierSecret))
	s.Record(models.NewAuditEntry(models.AuditActionMemorySearch, "+15550001", "b").
		WithTenant("acme", "finance"))
	s.Record(models.NewAuditEntry(models.AuditActionMemoryStored, "+15550009", "c").
		WithTenant("globex", "hq"))
	require.NoError(t, s.Stop(5*time.Second))

	day := time.Now().UTC()
	report, err := s.GenerateComplianceReport("acme", day.AddDate(0, 0, -1), day)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalEvents, "other tenants excluded")
	assert.Equal(t, 1, report.ByAction[string(models.AuditActionMemoryStored)])
	assert.Equal(t, 1, report.BySensitivity["SECRET"])
	assert.Equal(t, 2, report.ByDepartment["finance"])
	assert.Equal(t, 2, report.ByUser["+15550001"])
}
