package models

import (
	"strings"
	"time"
)

// CategoryTier represents the sensitivity level of a memory record.
// Tiers are ordered: GENERAL < CHRONOLOGICAL < CONFIDENTIAL < SECRET < ULTRA_SECRET.
type CategoryTier string

const (
	TierGeneral       CategoryTier = "GENERAL"
	TierChronological CategoryTier = "CHRONOLOGICAL"
	TierConfidential  CategoryTier = "CONFIDENTIAL"
	TierSecret        CategoryTier = "SECRET"
	TierUltraSecret   CategoryTier = "ULTRA_SECRET"
)

// tierRanks orders tiers by sensitivity for comparisons and reporting.
var tierRanks = map[CategoryTier]int{
	TierGeneral:       0,
	TierChronological: 1,
	TierConfidential:  2,
	TierSecret:        3,
	TierUltraSecret:   4,
}

// ParseTier parses a tier name (case-insensitive). Returns false if unknown.
func ParseTier(s string) (CategoryTier, bool) {
	t := CategoryTier(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := tierRanks[t]
	return t, ok
}

// Valid returns true if the tier is a known tier.
func (t CategoryTier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// Rank returns the sensitivity rank of the tier (higher is more sensitive).
func (t CategoryTier) Rank() int {
	return tierRanks[t]
}

// RequiresSession returns true if reading cleartext at this tier requires
// an active elevated session.
func (t CategoryTier) RequiresSession() bool {
	return t == TierSecret || t == TierUltraSecret
}

// FileName returns the markdown file name for the tier's category file.
func (t CategoryTier) FileName() string {
	return strings.ToLower(string(t)) + ".md"
}

// MemoryRecord is a single stored memory. Content holds the plaintext after
// a successful read; Preview is the indexed summary and is always empty for
// SECRET and ULTRA_SECRET records.
type MemoryRecord struct {
	ID           string       `json:"id"`
	OwnerPhone   string       `json:"owner_phone"`
	Tier         CategoryTier `json:"tier"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      string       `json:"content"`
	Preview      string       `json:"preview"`
	Encrypted    bool         `json:"encrypted"`
	TenantID     string       `json:"tenant_id,omitempty"`
	DepartmentID string       `json:"department_id,omitempty"`
}

// IndexEntry is the per-memory summary persisted in index.json. Field names
// are part of the on-disk format and must not change.
type IndexEntry struct {
	ID             string       `json:"id"`
	Category       CategoryTier `json:"category"`
	Timestamp      time.Time    `json:"timestamp"`
	ContentPreview string       `json:"content_preview"`
	Encrypted      bool         `json:"encrypted"`
	TenantID       string       `json:"tenant_id,omitempty"`
	DepartmentID   string       `json:"department_id,omitempty"`
	UserPhone      string       `json:"user_phone"`
}

// IndexStats summarizes an owner's index.
type IndexStats struct {
	Total       int            `json:"total"`
	ByCategory  map[string]int `json:"by_category"`
	FirstMemory *time.Time     `json:"first_memory,omitempty"`
	LastMemory  *time.Time     `json:"last_memory,omitempty"`
}

// UserIndex is the root structure of index.json. Memories is append-mostly:
// a successful store appends exactly one entry, a delete removes the entry
// (tombstone semantics; the underlying markdown line is retained on disk).
type UserIndex struct {
	Memories []IndexEntry `json:"memories"`
	Stats    IndexStats   `json:"stats"`
}

// NewUserIndex returns an empty index.
func NewUserIndex() *UserIndex {
	return &UserIndex{
		Memories: []IndexEntry{},
		Stats:    IndexStats{ByCategory: make(map[string]int)},
	}
}

// Append records a new entry and updates the stats counters.
func (ix *UserIndex) Append(entry IndexEntry) {
	ix.Memories = append(ix.Memories, entry)
	if ix.Stats.ByCategory == nil {
		ix.Stats.ByCategory = make(map[string]int)
	}
	ix.Stats.Total++
	ix.Stats.ByCategory[string(entry.Category)]++
	ts := entry.Timestamp
	if ix.Stats.FirstMemory == nil || ts.Before(*ix.Stats.FirstMemory) {
		ix.Stats.FirstMemory = &ts
	}
	if ix.Stats.LastMemory == nil || ts.After(*ix.Stats.LastMemory) {
		ix.Stats.LastMemory = &ts
	}
}

// Find returns the entry with the given id, or nil.
func (ix *UserIndex) Find(id string) *IndexEntry {
	for i := range ix.Memories {
		if ix.Memories[i].ID == id {
			return &ix.Memories[i]
		}
	}
	return nil
}

// Remove drops the entry with the given id and decrements the stats
// counters. Returns true if an entry was removed. The markdown line the
// entry pointed at is not touched; this is a soft delete.
func (ix *UserIndex) Remove(id string) bool {
	for i := range ix.Memories {
		if ix.Memories[i].ID == id {
			category := ix.Memories[i].Category
			ix.Memories = append(ix.Memories[:i], ix.Memories[i+1:]...)
			ix.Stats.Total--
			if ix.Stats.ByCategory != nil {
				ix.Stats.ByCategory[string(category)]--
			}
			return true
		}
	}
	return false
}
