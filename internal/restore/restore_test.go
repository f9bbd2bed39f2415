package restore

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ctxkeep/ctxkeep/internal/codec"
	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/payload"
	"github.com/ctxkeep/ctxkeep/internal/store"
	"github.com/ctxkeep/ctxkeep/internal/workpool"
)

// newTestFormatter wires a formatter and its backing store against a
// temporary database.
func newTestFormatter(t *testing.T) (*Formatter, *store.Store) {
	t.Helper()

	db, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db, codec.New(0))
	return NewFormatter(st, nil, nil), st
}

func storedPayload() *payload.ContextPayload {
	return &payload.ContextPayload{
		Conversation: []payload.Turn{
			{Role: "user", Text: "restore me", Timestamp: 1700000000},
		},
		CodeRefs: map[string]payload.CodeRef{
			"a.go": {Content: "package a\n", Kind: payload.RefKindFull},
		},
		ProjectMeta: map[string]string{"language": "go"},
	}
}

func stringPtr(s string) *string {
	return &s
}

func TestRestoreGenericRoundTrip(t *testing.T) {
	f, st := newTestFormatter(t)
	ctx := context.Background()

	original := storedPayload()
	snap, err := st.Create(ctx, "alice", "claude-code", stringPtr("Round trip"), nil, original)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := f.Restore(ctx, snap.ID, "alice", nil)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if out.Payload == nil {
		t.Fatal("generic restore should carry the canonical payload")
	}
	if out.Formatted != nil {
		t.Error("generic restore should not carry a tool shape")
	}

	// Byte-for-byte equality against what was captured.
	want, err := original.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	got, err := out.Payload.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Error("restored payload differs from the captured payload")
	}

	if out.Snapshot.ID != snap.ID {
		t.Errorf("Snapshot.ID = %q, want %q", out.Snapshot.ID, snap.ID)
	}
}

func TestRestoreForTargetTool(t *testing.T) {
	f, st := newTestFormatter(t)
	ctx := context.Background()

	snap, err := st.Create(ctx, "alice", "claude-code", nil, nil, storedPayload())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := f.Restore(ctx, snap.ID, "alice", stringPtr("cursor"))
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if out.ToolID != "cursor" {
		t.Errorf("ToolID = %q, want cursor", out.ToolID)
	}
	if out.Payload != nil {
		t.Error("formatted restore should not carry the raw payload")
	}
	if _, ok := out.Formatted["workspace"]; !ok {
		t.Errorf("cursor shape missing workspace: %v", out.Formatted)
	}
}

func TestRestoreUnknownToolFailsExplicitly(t *testing.T) {
	f, st := newTestFormatter(t)
	ctx := context.Background()

	snap, err := st.Create(ctx, "alice", "claude-code", nil, nil, storedPayload())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = f.Restore(ctx, snap.ID, "alice", stringPtr("emacs"))
	if !errors.Is(err, errors.ErrUnsupportedTool) {
		t.Fatalf("unknown tool should return ErrUnsupportedTool, got: %v", err)
	}

	// The error names the supported tools; no silent generic fallback.
	engErr := err.(*errors.EngineError)
	supported, ok := engErr.Details["supported"].([]string)
	if !ok || len(supported) == 0 {
		t.Errorf("error should list supported tools, got details: %v", engErr.Details)
	}
}

func TestRestoreBlankTargetIsGeneric(t *testing.T) {
	f, st := newTestFormatter(t)
	ctx := context.Background()

	snap, err := st.Create(ctx, "alice", "claude-code", nil, nil, storedPayload())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := f.Restore(ctx, snap.ID, "alice", stringPtr("  "))
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if out.Payload == nil {
		t.Error("blank target should behave like no target")
	}
}

func TestRestoreNotFound(t *testing.T) {
	f, _ := newTestFormatter(t)

	_, err := f.Restore(context.Background(), "nonexistent", "alice", nil)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Restore should return ErrNotFound, got: %v", err)
	}
}

func TestPreview(t *testing.T) {
	f, st := newTestFormatter(t)
	ctx := context.Background()

	snap, err := st.Create(ctx, "alice", "claude-code", stringPtr("Big refactor"), []string{"go", "auth"}, storedPayload())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := f.Preview(ctx, snap.ID, "alice")
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}

	if out.Stats.TurnCount != 1 || out.Stats.CodeRefCount != 1 {
		t.Errorf("Stats = %+v, want 1 turn and 1 code ref", out.Stats)
	}
	if !strings.Contains(out.Summary, "Big refactor") {
		t.Errorf("Summary = %q, should mention the title", out.Summary)
	}
	if !strings.Contains(out.Summary, "claude-code") {
		t.Errorf("Summary = %q, should mention the tool", out.Summary)
	}
	if out.CompressionRatio <= 0 {
		t.Errorf("CompressionRatio = %v, want > 0", out.CompressionRatio)
	}
}

func TestRestoreHonorsDeadline(t *testing.T) {
	db, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db, codec.New(0))
	pool := workpool.New(1)
	f := NewFormatter(st, nil, pool)
	ctx := context.Background()

	snap, err := st.Create(ctx, "alice", "claude-code", nil, nil, storedPayload())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "holder", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Restore(short, snap.ID, "alice", nil); !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("Restore with the pool full should return ErrTimeout, got: %v", err)
	}
	if _, err := f.Preview(short, snap.ID, "alice"); !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("Preview with the pool full should return ErrTimeout, got: %v", err)
	}
}

func TestFormatterRegistryExtension(t *testing.T) {
	f, st := newTestFormatter(t)
	ctx := context.Background()

	f.Registry().Register("zed", func(p *payload.ContextPayload) (map[string]any, error) {
		return map[string]any{"turns": len(p.Conversation)}, nil
	})

	snap, err := st.Create(ctx, "alice", "zed", nil, nil, storedPayload())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := f.Restore(ctx, snap.ID, "alice", stringPtr("zed"))
	if err != nil {
		t.Fatalf("Restore with a registered adapter failed: %v", err)
	}
	if out.ToolID != "zed" {
		t.Errorf("ToolID = %q, want zed", out.ToolID)
	}
	if got := out.Formatted["turns"]; got != 1 {
		t.Errorf("Formatted[turns] = %v, want 1", got)
	}
}
