// Package search maintains the derived, rebuildable projection of snapshot
// metadata and answers owner-scoped ranked queries. The store is the source
// of truth; a full rebuild from store enumeration always reproduces the same
// query results, which is what lets indexing stay best-effort on the write
// path.
package search

import (
	"strings"
	"sync"

	"github.com/ctxkeep/ctxkeep/internal/snapshot"
)

// Index is an in-memory metadata index keyed by snapshot id.
type Index struct {
	mu   sync.RWMutex
	byID map[string]snapshot.Summary
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{byID: make(map[string]snapshot.Summary)}
}

// Upsert records the searchable fields for one snapshot. Calling it twice
// with identical data leaves query results unchanged.
func (ix *Index) Upsert(sum snapshot.Summary) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byID[sum.ID] = sum
}

// Remove drops a snapshot from the index. Called on soft delete; removing an
// absent id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.byID, id)
}

// Rebuild replaces the entire index with summaries enumerated from the store.
func (ix *Index) Rebuild(summaries []snapshot.Summary) {
	fresh := make(map[string]snapshot.Summary, len(summaries))
	for _, sum := range summaries {
		fresh[sum.ID] = sum
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byID = fresh
}

// Len reports the number of indexed snapshots.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

// matchTerms counts how many query terms appear in the summary's title, tags,
// or tool id. Case-insensitive substring matching.
func matchTerms(sum snapshot.Summary, terms []string) int {
	var haystack strings.Builder
	if sum.Title != nil {
		haystack.WriteString(strings.ToLower(*sum.Title))
	}
	haystack.WriteByte(' ')
	haystack.WriteString(strings.ToLower(sum.ToolID))
	for _, tag := range sum.Tags {
		haystack.WriteByte(' ')
		haystack.WriteString(strings.ToLower(tag))
	}

	text := haystack.String()
	count := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			count++
		}
	}
	return count
}
