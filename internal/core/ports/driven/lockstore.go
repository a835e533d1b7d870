package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
)

// LockStore provides relational-store-mediated mutual exclusion across
// processes. This is an advisory lock, not consensus: it accepts a bounded
// double-execution window equal to clock skew plus the stale-reclaim gap.
type LockStore interface {
	// Acquire inserts a lock row for key. If a live row already exists it
	// returns a *domain.LockHeldError (matches errors.Is ErrLockHeld).
	// Expired rows found along the way are reclaimed and acquisition is
	// retried, bounded to a small number of attempts.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (*domain.RunLock, error)

	// Release deletes the lock row, but only if owner still matches, so a
	// lock reclaimed as stale by another process is never released out
	// from under its new holder.
	Release(ctx context.Context, lock *domain.RunLock) error

	// Extend pushes the lock's expiry forward by additional. Returns
	// domain.ErrLockNotFound if the row no longer exists.
	Extend(ctx context.Context, lock *domain.RunLock, additional time.Duration) error
}
