// Package quota is the usage-limit collaborator consulted before any capture
// write. A denial surfaces as QUOTA_EXCEEDED without touching the store.
package quota

import (
	"context"

	"github.com/ctxkeep/ctxkeep/internal/errors"
)

// Operation identifies the kind of write being gated.
type Operation string

const (
	OpCaptureNew    Operation = "capture_new"
	OpCaptureUpdate Operation = "capture_update"
)

// Checker decides whether an owner may perform an operation.
type Checker interface {
	Allow(ctx context.Context, ownerID string, op Operation) error
}

// AllowAll is the no-limit checker.
type AllowAll struct{}

// Allow always permits the operation.
func (AllowAll) Allow(ctx context.Context, ownerID string, op Operation) error {
	return nil
}

// ActiveCounter is the slice of the store the snapshot-count checker needs.
type ActiveCounter interface {
	CountActive(ctx context.Context, ownerID string) (int, error)
}

// CountChecker caps the number of active snapshots per owner.
// Updates to existing snapshots are never blocked; only new captures count.
type CountChecker struct {
	counter ActiveCounter
	max     int
}

// NewCountChecker builds a checker that denies capture_new once an owner
// holds max active snapshots. max <= 0 means unlimited.
func NewCountChecker(counter ActiveCounter, max int) *CountChecker {
	return &CountChecker{counter: counter, max: max}
}

// Allow implements Checker.
func (c *CountChecker) Allow(ctx context.Context, ownerID string, op Operation) error {
	if c.max <= 0 || op != OpCaptureNew {
		return nil
	}

	count, err := c.counter.CountActive(ctx, ownerID)
	if err != nil {
		return err
	}
	if count >= c.max {
		return errors.NewQuotaExceeded(ownerID, string(op))
	}
	return nil
}
