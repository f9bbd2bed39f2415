// Package capture implements the write path: validation and normalization of
// caller-supplied context data, quota gating, compression on a bounded worker
// pool, the store write, and the best-effort index notification.
package capture

import (
	"context"
	"strings"

	"github.com/ctxkeep/ctxkeep/internal/config"
	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/payload"
	"github.com/ctxkeep/ctxkeep/internal/quota"
	"github.com/ctxkeep/ctxkeep/internal/snapshot"
	"github.com/ctxkeep/ctxkeep/internal/store"
	"github.com/ctxkeep/ctxkeep/internal/workpool"
)

// Indexer receives metadata updates after successful store writes. The store
// remains the source of truth; a missed notification is repaired by a full
// index rebuild, never by rolling back the write.
type Indexer interface {
	Upsert(sum snapshot.Summary)
	Remove(id string)
}

// Service coordinates capture, metadata edit, and delete operations.
type Service struct {
	store *store.Store
	index Indexer
	quota quota.Checker
	pool  *workpool.Pool
	cfg   *config.Config
}

// NewService wires the capture service. A nil pool gets a private one sized
// from the config; pass a shared pool so capture and restore draw from the
// same slot budget.
func NewService(st *store.Store, index Indexer, checker quota.Checker, pool *workpool.Pool, cfg *config.Config) *Service {
	if checker == nil {
		checker = quota.AllowAll{}
	}
	if pool == nil {
		pool = workpool.New(cfg.WorkerCount)
	}
	return &Service{
		store: st,
		index: index,
		quota: checker,
		pool:  pool,
		cfg:   cfg,
	}
}

// NewInput contains parameters for CaptureNew.
type NewInput struct {
	OwnerID string
	ToolID  string
	Title   *string
	Tags    []string
	Raw     []byte // raw context description (JSON)
}

// CaptureNew validates and normalizes a raw context description, then creates
// a snapshot. Validation failures never reach the codec or the store.
func (s *Service) CaptureNew(ctx context.Context, input NewInput) (*snapshot.Snapshot, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, errors.NewInvalidPayload("owner_id", "owner is required")
	}
	if err := validateToolID(input.ToolID); err != nil {
		return nil, err
	}
	if err := validateTitle(input.Title); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(input.Tags)
	if err != nil {
		return nil, err
	}

	p, err := s.parse(input.Raw)
	if err != nil {
		return nil, err
	}

	if err := s.quota.Allow(ctx, input.OwnerID, quota.OpCaptureNew); err != nil {
		return nil, err
	}

	var snap *snapshot.Snapshot
	err = s.pool.Do(ctx, "capture", func() error {
		var createErr error
		snap, createErr = s.store.Create(ctx, input.OwnerID, strings.TrimSpace(input.ToolID), input.Title, tags, p)
		return createErr
	})
	if err != nil {
		return nil, err
	}

	s.index.Upsert(snap.ToSummary())
	return snap, nil
}

// CaptureUpdate validates a raw context description and applies it to an
// existing snapshot at expectedVersion. A stale version fails with CONFLICT.
func (s *Service) CaptureUpdate(ctx context.Context, id, ownerID string, expectedVersion int64, raw []byte) (*snapshot.Snapshot, error) {
	p, err := s.parse(raw)
	if err != nil {
		return nil, err
	}

	if err := s.quota.Allow(ctx, ownerID, quota.OpCaptureUpdate); err != nil {
		return nil, err
	}

	var snap *snapshot.Snapshot
	err = s.pool.Do(ctx, "capture update", func() error {
		var updateErr error
		snap, updateErr = s.store.Update(ctx, id, ownerID, expectedVersion, store.Change{Payload: p})
		return updateErr
	})
	if err != nil {
		return nil, err
	}

	s.index.Upsert(snap.ToSummary())
	return snap, nil
}

// MetaInput contains parameters for EditMeta. Nil fields are left unchanged.
type MetaInput struct {
	Title *string
	Tags  *[]string
}

// EditMeta updates title and/or tags without touching the payload. The edit
// still goes through the version compare-and-swap and bumps version, keeping
// conflict detection uniform across content and metadata writes.
func (s *Service) EditMeta(ctx context.Context, id, ownerID string, expectedVersion int64, input MetaInput) (*snapshot.Snapshot, error) {
	if input.Title == nil && input.Tags == nil {
		return nil, errors.NewInvalidPayload("meta", "at least one of title or tags must be provided")
	}
	if err := validateTitle(input.Title); err != nil {
		return nil, err
	}

	change := store.Change{Title: input.Title}
	if input.Tags != nil {
		tags, err := normalizeTags(*input.Tags)
		if err != nil {
			return nil, err
		}
		change.Tags = &tags
	}

	snap, err := s.store.Update(ctx, id, ownerID, expectedVersion, change)
	if err != nil {
		return nil, err
	}

	s.index.Upsert(snap.ToSummary())
	return snap, nil
}

// Delete soft-deletes a snapshot and removes it from the index.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	if err := s.store.SoftDelete(ctx, id, ownerID); err != nil {
		return err
	}
	s.index.Remove(id)
	return nil
}

// parse size-checks and validates a raw context description.
func (s *Service) parse(raw []byte) (*payload.ContextPayload, error) {
	maxBytes := s.cfg.MaxRawBytes
	if maxBytes > 0 && len(raw) > maxBytes {
		return nil, errors.NewPayloadTooLarge(maxBytes, len(raw))
	}
	return payload.Parse(raw)
}
