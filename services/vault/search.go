package vault

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
)

// SearchRequest describes a single-owner search.
type SearchRequest struct {
	Owner string `validate:"required"`
	Query string
	// Tier restricts results to one category when set.
	Tier models.CategoryTier
	// Start and End bound the record timestamps when non-zero.
	Start time.Time
	End   time.Time
	// Limit bounds the result count. Zero means the default; negative
	// means unbounded.
	Limit int
	// SessionToken, when it names a valid elevated session for the owner,
	// allows secret-tier records to be decrypted and scored. Without it
	// secret records are excluded from term searches entirely.
	SessionToken string
}

// SearchResult pairs a record with its term score.
type SearchResult struct {
	Record models.MemoryRecord
	Score  int
}

// Search loads the owner's index, applies tier and date filters, and scores
// candidates by term occurrence in the preview. An empty query returns all
// filtered candidates with score 0, newest first. Results are ordered by
// (-score, timestamp desc) and truncated to the limit.
//
// Internal failures surface as errors; search never masks a storage fault
// behind an empty result list.
func (v *Vault) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if req.Owner == "" {
		return nil, services.ErrEmptyPhone
	}
	if req.Tier != "" && !req.Tier.Valid() {
		return nil, services.ErrInvalidTier.WithDetail("tier", string(req.Tier))
	}
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	ix, err := v.loadIndexForRead(req.Owner)
	if err != nil {
		return nil, err
	}

	sess, sessOK := v.sessions.Get(req.SessionToken)
	if sessOK && sess.OwnerPhone != req.Owner {
		sessOK = false
	}

	terms := queryTerms(req.Query)
	var results []SearchResult
	for i := range ix.Memories {
		entry := &ix.Memories[i]
		if req.Tier != "" && entry.Category != req.Tier {
			continue
		}
		if !req.Start.IsZero() && entry.Timestamp.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && entry.Timestamp.After(req.End) {
			continue
		}

		score := 0
		if len(terms) > 0 {
			score = scoreText(entry.ContentPreview, terms)
			if score == 0 && entry.Category.RequiresSession() {
				// The preview is empty for secret tiers. Decrypt-and-score
				// only under a valid session; otherwise the record is
				// excluded entirely.
				if !sessOK {
					continue
				}
				content, err := v.decryptForScoring(req.Owner, entry, sess)
				if err != nil {
					return nil, err
				}
				score = scoreText(content, terms)
			}
			if score == 0 {
				continue
			}
		}

		results = append(results, SearchResult{
			Record: models.MemoryRecord{
				ID:           entry.ID,
				OwnerPhone:   req.Owner,
				Tier:         entry.Category,
				Timestamp:    entry.Timestamp,
				Preview:      entry.ContentPreview,
				Encrypted:    entry.Encrypted,
				TenantID:     entry.TenantID,
				DepartmentID: entry.DepartmentID,
			},
			Score: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.Timestamp.After(results[j].Record.Timestamp)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// decryptForScoring reads and unseals one secret record under a session
// that has already been validated for the owner.
func (v *Vault) decryptForScoring(owner string, entry *models.IndexEntry, sess *models.ElevatedSession) (string, error) {
	raw, err := readEntryContent(v.categoryFile(owner, entry.Category), entry.ID)
	if err != nil {
		return "", err
	}
	return v.gate.Unseal(raw, owner, entry.Category, sess)
}

// queryTerms lowercases and splits the query into terms.
func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// scoreText counts total term occurrences in the text.
func scoreText(text string, terms []string) int {
	lowered := strings.ToLower(text)
	score := 0
	for _, term := range terms {
		score += strings.Count(lowered, term)
	}
	return score
}
