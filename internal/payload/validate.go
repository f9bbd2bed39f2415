package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ctxkeep/ctxkeep/internal/errors"
)

// allowedTopLevelFields is the closed set of keys a raw context description
// may carry. Anything else is rejected rather than silently dropped.
var allowedTopLevelFields = map[string]bool{
	"conversation": true,
	"code_refs":    true,
	"tool_state":   true,
	"project_meta": true,
}

// Parse validates a raw context description against the canonical payload
// shape and returns the normalized payload. Validation failures return
// INVALID_PAYLOAD with a field-level reason; nothing invalid ever reaches the
// codec or the store.
func Parse(raw []byte) (*ContextPayload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.NewInvalidPayload("payload", "context data cannot be empty")
	}

	// First pass: reject unknown top-level fields explicitly, with the field
	// name in the error, before strict struct decoding.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, errors.NewInvalidPayload("payload", fmt.Sprintf("not a JSON object: %v", err))
	}
	for key := range top {
		if !allowedTopLevelFields[key] {
			return nil, errors.NewInvalidPayload(key, "unknown field")
		}
	}

	var p ContextPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, errors.NewInvalidPayload("payload", err.Error())
	}

	if err := validateTurns(p.Conversation); err != nil {
		return nil, err
	}
	if err := validateCodeRefs(p.CodeRefs); err != nil {
		return nil, err
	}

	n := p.normalized()
	return &n, nil
}

// validateTurns checks each conversation turn has a speaker role.
func validateTurns(turns []Turn) error {
	for i, turn := range turns {
		if strings.TrimSpace(turn.Role) == "" {
			return errors.NewInvalidPayload(
				fmt.Sprintf("conversation[%d].role", i), "role is required")
		}
	}
	return nil
}

// validateCodeRefs checks keys are non-empty and kinds are in the closed set.
func validateCodeRefs(refs map[string]CodeRef) error {
	for path, ref := range refs {
		if strings.TrimSpace(path) == "" {
			return errors.NewInvalidPayload("code_refs", "path key must not be empty")
		}
		switch ref.Kind {
		case RefKindFull, RefKindDiff:
		case "":
			return errors.NewInvalidPayload(
				fmt.Sprintf("code_refs[%s].kind", path), "kind is required (full or diff)")
		default:
			return errors.NewInvalidPayload(
				fmt.Sprintf("code_refs[%s].kind", path),
				fmt.Sprintf("unknown kind %q (must be full or diff)", ref.Kind))
		}
	}
	return nil
}
