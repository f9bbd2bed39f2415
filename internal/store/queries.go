package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ctxkeep/ctxkeep/internal/codec"
	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/payload"
	"github.com/ctxkeep/ctxkeep/internal/snapshot"
)

// Change describes a caller-supplied mutation for Update.
// Nil fields are left unchanged. ID, OwnerID, and ToolID can never change.
type Change struct {
	Payload *payload.ContextPayload
	Title   *string
	Tags    *[]string
}

// ListFilter narrows List results. Nil fields match everything.
type ListFilter struct {
	ToolID *string
	Tag    *string
}

// Create allocates an id, compresses the payload, and persists a new snapshot
// with version 1.
func (s *Store) Create(ctx context.Context, ownerID, toolID string, title *string, tags []string, p *payload.ContextPayload) (*snapshot.Snapshot, error) {
	blob, rawSize, err := s.codec.Compress(p)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	snap := &snapshot.Snapshot{
		ID:                  id,
		OwnerID:             ownerID,
		ToolID:              toolID,
		Title:               title,
		Tags:                tags,
		CompressedPayload:   blob,
		RawSizeBytes:        rawSize,
		CompressedSizeBytes: len(blob),
		Algorithm:           codec.AlgorithmName(blob),
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	tagsJSON, err := tagsToJSON(snap.Tags)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	query := `
		INSERT INTO snapshots (
			id, owner_id, tool_id, title, tags_json,
			payload, raw_size, compressed_size, algorithm,
			version, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = s.db.ExecContext(ctx, query,
		snap.ID, snap.OwnerID, snap.ToolID, toNullString(snap.Title), tagsJSON,
		snap.CompressedPayload, snap.RawSizeBytes, snap.CompressedSizeBytes, snap.Algorithm,
		snap.Version, snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(ctx, err, "create")
	}

	return snap, nil
}

// Get retrieves a snapshot by id, scoped to its owner. Unknown ids,
// soft-deleted snapshots, and snapshots owned by someone else all fail with
// NOT_FOUND; ownership is enforced here, not left to callers.
func (s *Store) Get(ctx context.Context, id, ownerID string) (*snapshot.Snapshot, error) {
	query := `
		SELECT id, owner_id, tool_id, title, tags_json,
			payload, raw_size, compressed_size, algorithm,
			version, created_at, updated_at, deleted_at
		FROM snapshots
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`

	row := s.db.QueryRowContext(ctx, query, id, ownerID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, wrapDBErr(ctx, err, "get")
	}

	return snap, nil
}

// Update applies a caller-supplied change as a single atomic compare-and-swap
// against expectedVersion. Of two concurrent updates with the same starting
// version exactly one succeeds; the other fails with CONFLICT. Compression of
// a changed payload happens before the write, so the row either moves fully
// to the new state or not at all.
func (s *Store) Update(ctx context.Context, id, ownerID string, expectedVersion int64, change Change) (*snapshot.Snapshot, error) {
	current, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, errors.NewConflict(id, expectedVersion, current.Version)
	}

	next := *current
	if change.Title != nil {
		next.Title = change.Title
	}
	if change.Tags != nil {
		next.Tags = *change.Tags
	}
	if change.Payload != nil {
		blob, rawSize, err := s.codec.Compress(change.Payload)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		next.CompressedPayload = blob
		next.RawSizeBytes = rawSize
		next.CompressedSizeBytes = len(blob)
		next.Algorithm = codec.AlgorithmName(blob)
	}
	next.UpdatedAt = time.Now().Unix()

	tagsJSON, err := tagsToJSON(next.Tags)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	// The version predicate is the whole concurrency story: SQLite serializes
	// the two UPDATEs, the loser matches zero rows.
	query := `
		UPDATE snapshots
		SET title = ?, tags_json = ?, payload = ?, raw_size = ?,
			compressed_size = ?, algorithm = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND owner_id = ? AND version = ? AND deleted_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query,
		toNullString(next.Title), tagsJSON, next.CompressedPayload, next.RawSizeBytes,
		next.CompressedSizeBytes, next.Algorithm, next.UpdatedAt,
		id, ownerID, expectedVersion,
	)
	if err != nil {
		return nil, wrapDBErr(ctx, err, "update")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		// Lost the race (or the row vanished). Re-read to report which.
		latest, getErr := s.Get(ctx, id, ownerID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, errors.NewConflict(id, expectedVersion, latest.Version)
	}

	next.Version = expectedVersion + 1
	return &next, nil
}

// SoftDelete marks a snapshot as deleted by setting deleted_at.
// Fails with NOT_FOUND under the same rules as Get.
func (s *Store) SoftDelete(ctx context.Context, id, ownerID string) error {
	now := time.Now().Unix()

	query := `
		UPDATE snapshots
		SET deleted_at = ?
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, now, id, ownerID)
	if err != nil {
		return wrapDBErr(ctx, err, "soft delete")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// List enumerates non-deleted snapshot summaries for one owner, newest first.
func (s *Store) List(ctx context.Context, ownerID string, filter ListFilter) ([]snapshot.Summary, error) {
	query := `
		SELECT id, owner_id, tool_id, title, tags_json,
			raw_size, compressed_size, algorithm,
			version, created_at, updated_at
		FROM snapshots
		WHERE owner_id = ? AND deleted_at IS NULL
	`
	args := []any{ownerID}

	if filter.ToolID != nil {
		query += " AND tool_id = ?"
		args = append(args, *filter.ToolID)
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(ctx, err, "list")
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	// Tag filtering happens here rather than in SQL since tags live in a JSON
	// column.
	if filter.Tag != nil {
		filtered := summaries[:0]
		for _, sum := range summaries {
			if slices.Contains(sum.Tags, *filter.Tag) {
				filtered = append(filtered, sum)
			}
		}
		summaries = filtered
	}

	return summaries, nil
}

// ListAll enumerates non-deleted summaries across all owners. Used to rebuild
// the derived search index from the source of truth.
func (s *Store) ListAll(ctx context.Context) ([]snapshot.Summary, error) {
	query := `
		SELECT id, owner_id, tool_id, title, tags_json,
			raw_size, compressed_size, algorithm,
			version, created_at, updated_at
		FROM snapshots
		WHERE deleted_at IS NULL
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapDBErr(ctx, err, "list all")
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return summaries, nil
}

// CountActive returns the number of non-deleted snapshots an owner holds.
func (s *Store) CountActive(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE owner_id = ? AND deleted_at IS NULL`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, wrapDBErr(ctx, err, "count")
	}
	return count, nil
}

// DecodePayload decompresses a snapshot's stored blob back into the canonical
// payload. Corruption surfaces as CORRUPT_PAYLOAD for that record; it is
// never guessed at or repaired.
func (s *Store) DecodePayload(snap *snapshot.Snapshot) (*payload.ContextPayload, error) {
	p, err := s.codec.Decompress(snap.CompressedPayload)
	if err != nil {
		if stderrors.Is(err, codec.ErrCorrupt) {
			return nil, errors.NewCorruptPayload(snap.ID, err)
		}
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// wrapDBErr converts a database failure into an engine error, reporting
// TIMEOUT when the caller's deadline elapsed mid-call.
func wrapDBErr(ctx context.Context, err error, op string) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeout(op)
	}
	return errors.NewInternal(err)
}

// scanSnapshot scans a single row into a Snapshot struct.
func scanSnapshot(row *sql.Row) (*snapshot.Snapshot, error) {
	var (
		snap      snapshot.Snapshot
		title     sql.NullString
		tagsJSON  sql.NullString
		deletedAt sql.NullInt64
	)

	err := row.Scan(
		&snap.ID, &snap.OwnerID, &snap.ToolID, &title, &tagsJSON,
		&snap.CompressedPayload, &snap.RawSizeBytes, &snap.CompressedSizeBytes, &snap.Algorithm,
		&snap.Version, &snap.CreatedAt, &snap.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.Title = fromNullString(title)
	if deletedAt.Valid {
		snap.DeletedAt = &deletedAt.Int64
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &snap.Tags); err != nil {
			return nil, err
		}
	}

	return &snap, nil
}

// scanSummaries scans list rows into Summary structs.
func scanSummaries(rows *sql.Rows) ([]snapshot.Summary, error) {
	var summaries []snapshot.Summary

	for rows.Next() {
		var (
			sum      snapshot.Summary
			title    sql.NullString
			tagsJSON sql.NullString
		)
		err := rows.Scan(
			&sum.ID, &sum.OwnerID, &sum.ToolID, &title, &tagsJSON,
			&sum.RawSizeBytes, &sum.CompressedSizeBytes, &sum.Algorithm,
			&sum.Version, &sum.CreatedAt, &sum.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		sum.Title = fromNullString(title)
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &sum.Tags); err != nil {
				return nil, err
			}
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// tagsToJSON converts a tag list to a nullable JSON column value.
func tagsToJSON(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
