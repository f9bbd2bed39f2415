package capture

import (
	"context"
	"strings"
	"testing"

	"github.com/ctxkeep/ctxkeep/internal/codec"
	"github.com/ctxkeep/ctxkeep/internal/config"
	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/quota"
	"github.com/ctxkeep/ctxkeep/internal/search"
	"github.com/ctxkeep/ctxkeep/internal/store"
)

// newTestService wires a capture service against a temporary database.
func newTestService(t *testing.T, cfg *config.Config) (*Service, *search.Index) {
	t.Helper()

	db, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	st := store.New(db, codec.New(cfg.CompressThresholdBytes))
	index := search.NewIndex()
	checker := quota.NewCountChecker(st, cfg.MaxSnapshots)
	return NewService(st, index, checker, nil, cfg), index
}

func validContext() []byte {
	return []byte(`{
		"conversation": [
			{"role": "user", "text": "why does the test flake?", "timestamp": 1700000000},
			{"role": "assistant", "text": "shared temp dir", "timestamp": 1700000030}
		],
		"code_refs": {
			"foo_test.go": {"content": "func TestFoo(t *testing.T) {}", "kind": "full"}
		}
	}`)
}

func stringPtr(s string) *string {
	return &s
}

func TestCaptureNew(t *testing.T) {
	svc, index := newTestService(t, nil)

	snap, err := svc.CaptureNew(context.Background(), NewInput{
		OwnerID: "alice",
		ToolID:  "claude-code",
		Title:   stringPtr("Flaky test hunt"),
		Tags:    []string{"tests", "tests", " flaky "},
		Raw:     validContext(),
	})
	if err != nil {
		t.Fatalf("CaptureNew failed: %v", err)
	}

	if snap.Version != 1 {
		t.Errorf("Version = %d, want 1", snap.Version)
	}
	if len(snap.Tags) != 2 {
		t.Errorf("Tags = %v, want deduplicated [tests flaky]", snap.Tags)
	}
	if snap.RawSizeBytes <= 0 || snap.CompressedSizeBytes <= 0 {
		t.Errorf("size metadata missing: raw=%d compressed=%d", snap.RawSizeBytes, snap.CompressedSizeBytes)
	}

	// The write also landed in the index.
	if index.Len() != 1 {
		t.Errorf("index Len = %d, want 1", index.Len())
	}
}

func TestCaptureNewValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input NewInput
	}{
		{"missing owner", NewInput{ToolID: "cursor", Raw: validContext()}},
		{"missing tool", NewInput{OwnerID: "alice", Raw: validContext()}},
		{"oversized tool id", NewInput{OwnerID: "alice", ToolID: strings.Repeat("x", MaxToolIDChars+1), Raw: validContext()}},
		{"oversized title", NewInput{OwnerID: "alice", ToolID: "cursor", Title: stringPtr(strings.Repeat("t", MaxTitleChars+1)), Raw: validContext()}},
		{"empty context", NewInput{OwnerID: "alice", ToolID: "cursor", Raw: nil}},
		{"malformed context", NewInput{OwnerID: "alice", ToolID: "cursor", Raw: []byte(`{"bogus": 1}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CaptureNew(ctx, tt.input)
			if !errors.Is(err, errors.ErrInvalidPayload) {
				t.Errorf("CaptureNew should return ErrInvalidPayload, got: %v", err)
			}
		})
	}
}

func TestCaptureNewOversizedPayload(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRawBytes = 256
	svc, _ := newTestService(t, cfg)

	big := []byte(`{"conversation": [{"role": "user", "text": "` +
		strings.Repeat("a", 512) + `", "timestamp": 1}]}`)

	_, err := svc.CaptureNew(context.Background(), NewInput{
		OwnerID: "alice",
		ToolID:  "cursor",
		Raw:     big,
	})
	if !errors.Is(err, errors.ErrInvalidPayload) {
		t.Fatalf("oversized capture should return ErrInvalidPayload, got: %v", err)
	}

	engErr := err.(*errors.EngineError)
	if engErr.Details["max_bytes"] != 256 {
		t.Errorf("error should carry the size limit, got details: %v", engErr.Details)
	}
}

func TestCaptureNewQuotaDenied(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxSnapshots = 1
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	if _, err := svc.CaptureNew(ctx, NewInput{OwnerID: "alice", ToolID: "cursor", Raw: validContext()}); err != nil {
		t.Fatalf("first capture failed: %v", err)
	}

	_, err := svc.CaptureNew(ctx, NewInput{OwnerID: "alice", ToolID: "cursor", Raw: validContext()})
	if !errors.Is(err, errors.ErrQuotaExceeded) {
		t.Errorf("capture over quota should return ErrQuotaExceeded, got: %v", err)
	}

	// Other owners are unaffected.
	if _, err := svc.CaptureNew(ctx, NewInput{OwnerID: "bob", ToolID: "cursor", Raw: validContext()}); err != nil {
		t.Errorf("unrelated owner denied: %v", err)
	}
}

func TestCaptureUpdate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxSnapshots = 1
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	snap, err := svc.CaptureNew(ctx, NewInput{OwnerID: "alice", ToolID: "cursor", Raw: validContext()})
	if err != nil {
		t.Fatalf("CaptureNew failed: %v", err)
	}

	// Updates are not gated by the snapshot-count quota even at the cap.
	updated, err := svc.CaptureUpdate(ctx, snap.ID, "alice", 1,
		[]byte(`{"conversation": [{"role": "user", "text": "round two", "timestamp": 2}]}`))
	if err != nil {
		t.Fatalf("CaptureUpdate failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}

	// Stale version conflicts.
	_, err = svc.CaptureUpdate(ctx, snap.ID, "alice", 1,
		[]byte(`{"conversation": [{"role": "user", "text": "stale", "timestamp": 3}]}`))
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("stale CaptureUpdate should return ErrConflict, got: %v", err)
	}

	// Invalid payloads are rejected before any store access.
	_, err = svc.CaptureUpdate(ctx, snap.ID, "alice", 2, []byte(`{"nope": true}`))
	if !errors.Is(err, errors.ErrInvalidPayload) {
		t.Errorf("invalid CaptureUpdate should return ErrInvalidPayload, got: %v", err)
	}
}

func TestEditMeta(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	snap, err := svc.CaptureNew(ctx, NewInput{OwnerID: "alice", ToolID: "cursor", Raw: validContext()})
	if err != nil {
		t.Fatalf("CaptureNew failed: %v", err)
	}

	_, err = svc.EditMeta(ctx, snap.ID, "alice", 1, MetaInput{})
	if !errors.Is(err, errors.ErrInvalidPayload) {
		t.Errorf("empty EditMeta should return ErrInvalidPayload, got: %v", err)
	}

	tags := []string{"renamed"}
	updated, err := svc.EditMeta(ctx, snap.ID, "alice", 1, MetaInput{
		Title: stringPtr("Renamed"),
		Tags:  &tags,
	})
	if err != nil {
		t.Fatalf("EditMeta failed: %v", err)
	}
	if *updated.Title != "Renamed" {
		t.Errorf("Title = %q, want Renamed", *updated.Title)
	}
	if updated.Version != 2 {
		t.Errorf("metadata edit should bump version, got %d", updated.Version)
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	svc, index := newTestService(t, nil)
	ctx := context.Background()

	snap, err := svc.CaptureNew(ctx, NewInput{OwnerID: "alice", ToolID: "cursor", Raw: validContext()})
	if err != nil {
		t.Fatalf("CaptureNew failed: %v", err)
	}

	if err := svc.Delete(ctx, snap.ID, "alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if index.Len() != 0 {
		t.Errorf("index Len = %d, want 0 after delete", index.Len())
	}
	if err := svc.Delete(ctx, snap.ID, "alice"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete should return ErrNotFound, got: %v", err)
	}
}
