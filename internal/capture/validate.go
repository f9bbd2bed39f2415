package capture

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ctxkeep/ctxkeep/internal/errors"
)

// Metadata limits, matching the capture request contract.
const (
	MaxToolIDChars = 50
	MaxTitleChars  = 200
	MaxTags        = 20
	MaxTagChars    = 50
)

// validateToolID checks the tool identifier is present and within bounds.
func validateToolID(toolID string) error {
	toolID = strings.TrimSpace(toolID)
	if toolID == "" {
		return errors.NewInvalidPayload("tool_id", "tool id is required")
	}
	if utf8.RuneCountInString(toolID) > MaxToolIDChars {
		return errors.NewInvalidPayload("tool_id",
			fmt.Sprintf("must be at most %d characters", MaxToolIDChars))
	}
	return nil
}

// validateTitle checks an optional title is within bounds.
func validateTitle(title *string) error {
	if title == nil {
		return nil
	}
	if utf8.RuneCountInString(*title) > MaxTitleChars {
		return errors.NewInvalidPayload("title",
			fmt.Sprintf("must be at most %d characters", MaxTitleChars))
	}
	return nil
}

// normalizeTags trims, deduplicates, and bounds the tag set, preserving the
// caller's order for the survivors.
func normalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagChars {
			return nil, errors.NewInvalidPayload("tags",
				fmt.Sprintf("tag %q exceeds %d characters", tag, MaxTagChars))
		}
		seen[tag] = true
		result = append(result, tag)
	}

	if len(result) > MaxTags {
		return nil, errors.NewInvalidPayload("tags",
			fmt.Sprintf("maximum %d tags allowed", MaxTags))
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}
