package search

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/snapshot"
)

// Query limits
const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 100
	MinQueryChars     = 2
)

// QueryInput contains parameters for the Query operation.
type QueryInput struct {
	OwnerID string  // required; results are always scoped to this owner
	Text    string  // optional; ranks by term matches when present
	Tag     *string // optional filter
	ToolID  *string // optional filter
	SortBy  string  // "updated_at" (default) or "created_at"; used when Text is empty
	Limit   int     // default: 20, max: 100
	Offset  int     // default: 0
}

// Pagination contains pagination metadata for query results.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// QueryOutput contains the result of the Query operation.
type QueryOutput struct {
	Items      []snapshot.Summary `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"` // "relevance", "updated_at_desc", "created_at_desc"
}

// Query returns ranked, filtered snapshot summaries for one owner.
// Relevance is a monotonic function of term-match count; ties (and the no-text
// case) order by the selected timestamp descending, id descending.
func (ix *Index) Query(input QueryInput) (*QueryOutput, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, errors.NewInvalidPayload("owner_id", "owner is required")
	}

	text := strings.TrimSpace(input.Text)
	if text != "" && utf8.RuneCountInString(text) < MinQueryChars {
		return nil, errors.NewInvalidPayload("query",
			fmt.Sprintf("search query must be at least %d characters", MinQueryChars))
	}

	sortBy := input.SortBy
	switch sortBy {
	case "", "updated_at":
		sortBy = "updated_at"
	case "created_at":
	default:
		return nil, errors.NewInvalidPayload("sort_by", "must be updated_at or created_at")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	offset := max(input.Offset, 0)

	terms := strings.Fields(strings.ToLower(text))

	type ranked struct {
		sum   snapshot.Summary
		score int
	}

	ix.mu.RLock()
	matches := make([]ranked, 0, len(ix.byID))
	for _, sum := range ix.byID {
		if sum.OwnerID != input.OwnerID {
			continue
		}
		if input.ToolID != nil && sum.ToolID != *input.ToolID {
			continue
		}
		if input.Tag != nil && !slices.Contains(sum.Tags, *input.Tag) {
			continue
		}

		score := 0
		if len(terms) > 0 {
			score = matchTerms(sum, terms)
			if score == 0 {
				continue
			}
		}
		matches = append(matches, ranked{sum: sum, score: score})
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		var ti, tj int64
		if sortBy == "created_at" {
			ti, tj = matches[i].sum.CreatedAt, matches[j].sum.CreatedAt
		} else {
			ti, tj = matches[i].sum.UpdatedAt, matches[j].sum.UpdatedAt
		}
		if ti != tj {
			return ti > tj
		}
		return matches[i].sum.ID > matches[j].sum.ID
	})

	total := len(matches)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)

	items := make([]snapshot.Summary, 0, end-offset)
	for _, m := range matches[offset:end] {
		items = append(items, m.sum)
	}

	sortLabel := sortBy + "_desc"
	if len(terms) > 0 {
		sortLabel = "relevance"
	}

	return &QueryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: sortLabel,
	}, nil
}
