package service

import (
	"context"
	"sync"
	"time"

	dErrors "eap/pkg/domain-errors"
	txcontext "eap/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

type inTxKey struct{}

// inMemoryStoreTx serializes transactions with one lock and undoes the
// writes of a failed transaction through the tx journal the in-memory stores
// register with. Nested calls join the outer transaction.
type inMemoryStoreTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func newInMemoryStoreTx(timeout time.Duration) *inMemoryStoreTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &inMemoryStoreTx{timeout: timeout}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	txCtx, journal := txcontext.WithJournal(ctx)
	txCtx = context.WithValue(txCtx, inTxKey{}, true)
	if err := fn(txCtx); err != nil {
		journal.Rollback()
		return err
	}
	return nil
}
