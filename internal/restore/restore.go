// Package restore implements the read path: fetch a snapshot through the
// store, decompress it, and render it either as the canonical payload or
// through a per-tool adapter. Restores never mutate the stored snapshot.
package restore

import (
	"context"
	"fmt"
	"strings"

	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/payload"
	"github.com/ctxkeep/ctxkeep/internal/snapshot"
	"github.com/ctxkeep/ctxkeep/internal/store"
	"github.com/ctxkeep/ctxkeep/internal/workpool"
)

// Formatter reads snapshots and renders them for a target tool.
type Formatter struct {
	store    *store.Store
	registry *Registry
	pool     *workpool.Pool
}

// NewFormatter wires the formatter. A nil registry gets the builtin adapters;
// a nil pool gets a private one. Pass the capture service's pool so
// decompression and compression share the same slot budget.
func NewFormatter(st *store.Store, registry *Registry, pool *workpool.Pool) *Formatter {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if pool == nil {
		pool = workpool.New(0)
	}
	return &Formatter{store: st, registry: registry, pool: pool}
}

// Registry exposes the adapter registry so additional tools can be
// registered at configuration time.
func (f *Formatter) Registry() *Registry {
	return f.registry
}

// FormattedContext is the restore result. Exactly one of Payload (generic
// format) or Formatted (tool shape) is set.
type FormattedContext struct {
	Snapshot  snapshot.Summary        `json:"snapshot"`
	ToolID    string                  `json:"tool_id,omitempty"` // set when an adapter formatted the output
	Payload   *payload.ContextPayload `json:"payload,omitempty"`
	Formatted map[string]any          `json:"formatted,omitempty"`
}

// Restore fetches and decompresses a snapshot. With no target tool the
// canonical payload is returned unchanged. With a target, the registered
// adapter shapes the output; an unknown target fails with UNSUPPORTED_TOOL
// rather than silently falling back to the generic format.
func (f *Formatter) Restore(ctx context.Context, id, ownerID string, targetToolID *string) (*FormattedContext, error) {
	snap, err := f.store.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	p, err := f.decode(ctx, "restore", snap)
	if err != nil {
		return nil, err
	}

	out := &FormattedContext{Snapshot: snap.ToSummary()}

	if targetToolID == nil || strings.TrimSpace(*targetToolID) == "" {
		out.Payload = p
		return out, nil
	}

	toolID := strings.TrimSpace(*targetToolID)
	adapter, ok := f.registry.Get(toolID)
	if !ok {
		return nil, errors.NewUnsupportedTool(toolID, f.registry.Known())
	}

	formatted, err := adapter(p)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	out.ToolID = toolID
	out.Formatted = formatted
	return out, nil
}

// PreviewOutput is a shallow look at a snapshot without a full restore.
type PreviewOutput struct {
	Snapshot         snapshot.Summary `json:"snapshot"`
	Summary          string           `json:"summary"`
	Stats            payload.Stats    `json:"stats"`
	CompressionRatio float64          `json:"compression_ratio"`
}

// Preview returns metadata, shallow payload stats, and a one-line summary.
func (f *Formatter) Preview(ctx context.Context, id, ownerID string) (*PreviewOutput, error) {
	snap, err := f.store.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	p, err := f.decode(ctx, "preview", snap)
	if err != nil {
		return nil, err
	}

	sum := snap.ToSummary()
	return &PreviewOutput{
		Snapshot:         sum,
		Summary:          summaryLine(sum),
		Stats:            p.Stats(),
		CompressionRatio: sum.CompressionRatio(),
	}, nil
}

// decode decompresses a snapshot's blob in a pool slot so a large payload
// cannot starve concurrent small requests on the read path either.
func (f *Formatter) decode(ctx context.Context, op string, snap *snapshot.Snapshot) (*payload.ContextPayload, error) {
	var p *payload.ContextPayload
	err := f.pool.Do(ctx, op, func() error {
		var derr error
		p, derr = f.store.DecodePayload(snap)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// summaryLine builds a brief pipe-separated description of a snapshot.
func summaryLine(sum snapshot.Summary) string {
	parts := make([]string, 0, 4)
	if sum.Title != nil && *sum.Title != "" {
		parts = append(parts, fmt.Sprintf("Title: %s", *sum.Title))
	}
	parts = append(parts, fmt.Sprintf("Tool: %s", sum.ToolID))
	if len(sum.Tags) > 0 {
		parts = append(parts, fmt.Sprintf("Tags: %s", strings.Join(sum.Tags, ", ")))
	}
	parts = append(parts, fmt.Sprintf("Size: %.2fMB", float64(sum.RawSizeBytes)/(1024*1024)))
	return strings.Join(parts, " | ")
}
