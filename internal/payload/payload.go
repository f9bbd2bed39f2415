package payload

import (
	"encoding/json"
)

// RefKind distinguishes how a code reference captures file content.
type RefKind string

const (
	RefKindFull RefKind = "full" // complete file content
	RefKindDiff RefKind = "diff" // unified diff against some base
)

// Turn is a single conversation exchange. Turns are append-only within a
// session and never reordered.
type Turn struct {
	// Role identifies the speaker (e.g., "user", "assistant")
	Role string `json:"role"`

	// Text is the message content
	Text string `json:"text"`

	// Timestamp is the Unix timestamp when the turn occurred
	Timestamp int64 `json:"timestamp"`
}

// CodeRef captures referenced code keyed by a path-like string.
type CodeRef struct {
	// Content is the file content or diff text
	Content string `json:"content"`

	// Kind is either "full" or "diff"
	Kind RefKind `json:"kind"`
}

// ContextPayload is the canonical, tool-agnostic representation of captured
// session context. The engine preserves and transports it; it never
// interprets ToolState or ProjectMeta.
type ContextPayload struct {
	// Conversation is the ordered sequence of conversation turns
	Conversation []Turn `json:"conversation"`

	// CodeRefs maps path-like keys to referenced code
	CodeRefs map[string]CodeRef `json:"code_refs"`

	// ToolState is opaque tool-specific configuration, passed through untouched
	ToolState map[string]any `json:"tool_state,omitempty"`

	// ProjectMeta holds descriptive key/value pairs (language, framework, repo)
	ProjectMeta map[string]string `json:"project_meta,omitempty"`
}

// Canonical returns the deterministic JSON encoding of the payload.
// Map keys are emitted in sorted order by encoding/json, so equal payloads
// always produce identical bytes; this is what the codec compresses and what
// rawSizeBytes measures.
func (p *ContextPayload) Canonical() ([]byte, error) {
	n := p.normalized()
	return json.Marshal(&n)
}

// normalized returns a copy with nil collections replaced by empty ones so
// the canonical encoding of "absent" and "empty" is identical.
func (p *ContextPayload) normalized() ContextPayload {
	n := *p
	if n.Conversation == nil {
		n.Conversation = []Turn{}
	}
	if n.CodeRefs == nil {
		n.CodeRefs = map[string]CodeRef{}
	}
	return n
}

// Decode parses canonical payload bytes produced by Canonical.
func Decode(data []byte) (*ContextPayload, error) {
	var p ContextPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	n := p.normalized()
	return &n, nil
}

// Stats reports shallow counts used by preview output.
type Stats struct {
	TurnCount    int `json:"turn_count"`
	CodeRefCount int `json:"code_ref_count"`
}

// Stats returns shallow counts without touching ToolState or ProjectMeta.
func (p *ContextPayload) Stats() Stats {
	return Stats{
		TurnCount:    len(p.Conversation),
		CodeRefCount: len(p.CodeRefs),
	}
}
