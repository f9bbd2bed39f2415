// Package workpool bounds the CPU-heavy payload work (compression on the
// write path, decompression on the read path) so one large payload cannot
// starve concurrent small requests.
package workpool

import (
	"context"
	stderrors "errors"
	"runtime"

	"github.com/ctxkeep/ctxkeep/internal/errors"
)

// Pool is a fixed set of slots for CPU-bound work.
type Pool struct {
	slots chan struct{}
}

// New creates a pool with the given number of slots. size <= 0 means NumCPU.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Do runs fn in a pool slot, waiting for one to free up. A deadline that
// elapses while waiting (or while fn runs its pre-write checks) surfaces as
// TIMEOUT; a plain cancellation propagates the context error. fn is expected
// to be all-or-nothing with respect to the store, so bailing out here never
// leaves a partial record.
func (p *Pool) Do(ctx context.Context, op string, fn func() error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctxErr(ctx, op)
	}
	defer func() { <-p.slots }()

	if ctx.Err() != nil {
		return ctxErr(ctx, op)
	}
	return fn()
}

// ctxErr maps a done context to the engine error taxonomy.
func ctxErr(ctx context.Context, op string) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeout(op)
	}
	return ctx.Err()
}
