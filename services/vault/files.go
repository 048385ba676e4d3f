package vault

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
)

// Markdown entry line format, append-only:
//
//	- [<RFC3339 timestamp>] (<id>) <escaped content>
//
// Content is escaped so every entry stays on one line. Sealed content is
// base64 under the ENC:: tag and never needs escaping, but gets the same
// treatment for uniformity.

const chronologicalDir = "CHRONOLOGICAL"

func escapeContent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func unescapeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func formatLine(id string, ts time.Time, content string) string {
	return fmt.Sprintf("- [%s] (%s) %s\n", ts.UTC().Format(time.RFC3339), id, escapeContent(content))
}

// ownerDir returns the root directory for one owner's memories.
func (v *Vault) ownerDir(owner string) string {
	return filepath.Join(v.contactsDir, owner)
}

func (v *Vault) categoryFile(owner string, tier models.CategoryTier) string {
	return filepath.Join(v.ownerDir(owner), string(tier), tier.FileName())
}

func (v *Vault) chronologicalFile(owner string, ts time.Time) string {
	return filepath.Join(v.ownerDir(owner), chronologicalDir, ts.UTC().Format("2006-01-02")+".md")
}

// appendLine appends one formatted line, creating parent directories as
// needed. Appends run to completion even if the caller has given up.
func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return services.WrapStorage("creating directory", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return services.WrapStorage("opening "+filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return services.WrapStorage("appending to "+filepath.Base(path), err)
	}
	return nil
}

// parseLine splits a category file line into its entry id and escaped
// content. The id is taken from the structural `- [timestamp] (id) ` prefix,
// never from a matching substring later in the line, so content that quotes
// another entry's marker cannot shadow it.
func parseLine(line string) (id, content string, ok bool) {
	rest, ok := strings.CutPrefix(line, "- [")
	if !ok {
		return "", "", false
	}
	_, rest, ok = strings.Cut(rest, "] (")
	if !ok {
		return "", "", false
	}
	id, content, ok = strings.Cut(rest, ") ")
	if !ok {
		return "", "", false
	}
	return id, content, true
}

// readEntryContent scans a category file for the entry with the given id
// and returns its unescaped content. Soft-deleted entries remain in the
// file; the index decides visibility, so this helper is only called for
// live index entries.
func readEntryContent(path, id string) (string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", services.ErrMemoryNotFound.WithDetail("id", id)
	}
	if err != nil {
		return "", services.WrapStorage("opening "+filepath.Base(path), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		entryID, content, ok := parseLine(scanner.Text())
		if !ok || entryID != id {
			continue
		}
		return unescapeContent(content), nil
	}
	if err := scanner.Err(); err != nil {
		return "", services.WrapStorage("scanning "+filepath.Base(path), err)
	}
	return "", services.ErrMemoryNotFound.WithDetail("id", id)
}
