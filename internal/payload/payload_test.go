package payload

import (
	"bytes"
	"testing"
)

func samplePayload() *ContextPayload {
	return &ContextPayload{
		Conversation: []Turn{
			{Role: "user", Text: "How does the retry loop work?", Timestamp: 1700000000},
			{Role: "assistant", Text: "It backs off exponentially.", Timestamp: 1700000060},
		},
		CodeRefs: map[string]CodeRef{
			"internal/retry/retry.go": {Content: "package retry\n", Kind: RefKindFull},
			"internal/retry/loop.go":  {Content: "@@ -1,3 +1,4 @@\n", Kind: RefKindDiff},
		},
		ToolState:   map[string]any{"model": "default"},
		ProjectMeta: map[string]string{"language": "go"},
	}
}

func TestCanonicalDeterministic(t *testing.T) {
	p := samplePayload()

	first, err := p.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	second, err := p.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("Canonical is not deterministic:\n%s\n%s", first, second)
	}
}

func TestCanonicalNilAndEmptyCollectionsMatch(t *testing.T) {
	withNil := &ContextPayload{}
	withEmpty := &ContextPayload{
		Conversation: []Turn{},
		CodeRefs:     map[string]CodeRef{},
	}

	a, err := withNil.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	b, err := withEmpty.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	if !bytes.Equal(a, b) {
		t.Errorf("nil and empty collections encode differently:\n%s\n%s", a, b)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	p := samplePayload()

	data, err := p.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(decoded.Conversation) != 2 {
		t.Fatalf("Conversation length = %d, want 2", len(decoded.Conversation))
	}
	if decoded.Conversation[0].Role != "user" {
		t.Errorf("Role = %q, want %q", decoded.Conversation[0].Role, "user")
	}
	if decoded.Conversation[1].Timestamp != 1700000060 {
		t.Errorf("Timestamp = %d, want 1700000060", decoded.Conversation[1].Timestamp)
	}

	ref, ok := decoded.CodeRefs["internal/retry/loop.go"]
	if !ok {
		t.Fatal("code ref internal/retry/loop.go missing after round trip")
	}
	if ref.Kind != RefKindDiff {
		t.Errorf("Kind = %q, want %q", ref.Kind, RefKindDiff)
	}

	if decoded.ProjectMeta["language"] != "go" {
		t.Errorf("ProjectMeta[language] = %q, want %q", decoded.ProjectMeta["language"], "go")
	}

	reencoded, err := decoded.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if !bytes.Equal(data, reencoded) {
		t.Error("re-encoding a decoded payload changed the bytes")
	}
}

func TestStats(t *testing.T) {
	p := samplePayload()
	stats := p.Stats()

	if stats.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", stats.TurnCount)
	}
	if stats.CodeRefCount != 2 {
		t.Errorf("CodeRefCount = %d, want 2", stats.CodeRefCount)
	}

	empty := &ContextPayload{}
	stats = empty.Stats()
	if stats.TurnCount != 0 || stats.CodeRefCount != 0 {
		t.Errorf("empty payload stats = %+v, want zeros", stats)
	}
}
