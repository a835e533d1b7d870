package domain

import (
	"fmt"
	"time"
)

// RunLock is a relational-row-backed advisory lock. At most one live
// (non-expired) row exists per lock key; holding the row means holding
// the lock.
type RunLock struct {
	// Key identifies the lock. One key per deployment serialises all
	// ingestion passes against each other.
	Key string

	// AcquiredBy is an opaque process identity (host:pid).
	AcquiredBy string

	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the lock's TTL has passed at the given instant.
func (l *RunLock) Expired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}

// LockHeldError is returned when acquisition finds a live lock held by
// another process. It carries the current holder and expiry for
// diagnostics. Not an operational error: callers treat it as a normal
// "another pass is running" control signal.
type LockHeldError struct {
	Key        string
	Holder     string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("lock %q already held by %s (acquired %s, expires %s)",
		e.Key, e.Holder,
		e.AcquiredAt.UTC().Format(time.RFC3339),
		e.ExpiresAt.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrLockHeld) match.
func (e *LockHeldError) Is(target error) bool {
	return target == ErrLockHeld
}
