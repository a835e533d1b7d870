package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// lockStore implements driven.LockStore on the ingestion_locks table.
// Mutual exclusion rests on the table's primary key: only one INSERT for
// a given lock_key can succeed while a row exists.
type lockStore struct {
	store *Store
}

var _ driven.LockStore = (*lockStore)(nil)

// acquireAttempts bounds the insert/reclaim loop so two processes
// fighting over a stale lock cannot spin forever.
const acquireAttempts = 3

// Acquire takes the run lock, reclaiming expired rows along the way.
func (s *lockStore) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (*domain.RunLock, error) {
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		now := time.Now().UTC()

		// Purge any expired row first. RFC3339 UTC timestamps compare
		// correctly as strings.
		if _, err := s.store.db.ExecContext(ctx, `
			DELETE FROM ingestion_locks WHERE lock_key = ? AND expires_at < ?
		`, key, now.Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("purging expired lock: %w", err)
		}

		lock := &domain.RunLock{
			Key:        key,
			AcquiredBy: owner,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		}

		_, err := s.store.db.ExecContext(ctx, `
			INSERT INTO ingestion_locks (lock_key, acquired_by, acquired_at, expires_at)
			VALUES (?, ?, ?, ?)
		`, key, owner,
			lock.AcquiredAt.Format(time.RFC3339),
			lock.ExpiresAt.Format(time.RFC3339))
		if err == nil {
			return lock, nil
		}
		if !isConstraintViolation(err) {
			return nil, fmt.Errorf("inserting lock row: %w", err)
		}

		// Someone holds the row. Re-read it: if it expired between our
		// purge and insert, loop and try again; otherwise report the
		// holder.
		holder, readErr := s.read(ctx, key)
		if errors.Is(readErr, domain.ErrLockNotFound) {
			continue // Row vanished, retry the insert
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading held lock: %w", readErr)
		}
		if holder.Expired(time.Now().UTC()) {
			continue // Stale, next iteration purges it
		}

		return nil, &domain.LockHeldError{
			Key:        key,
			Holder:     holder.AcquiredBy,
			AcquiredAt: holder.AcquiredAt,
			ExpiresAt:  holder.ExpiresAt,
		}
	}

	return nil, fmt.Errorf("acquiring lock %q: gave up after %d attempts", key, acquireAttempts)
}

// Release deletes the lock row, but only if the owner still matches.
func (s *lockStore) Release(ctx context.Context, lock *domain.RunLock) error {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM ingestion_locks WHERE lock_key = ? AND acquired_by = ?
	`, lock.Key, lock.AcquiredBy)
	if err != nil {
		return fmt.Errorf("deleting lock row: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting deleted lock rows: %w", err)
	}
	if n == 0 {
		// Expired and reclaimed by another process. Not an error, but
		// worth knowing about: it means the pass outlived its TTL.
		logger.Warn("lock %q no longer owned by %s at release", lock.Key, lock.AcquiredBy)
	}
	return nil
}

// Extend pushes the lock's expiry forward by additional.
func (s *lockStore) Extend(ctx context.Context, lock *domain.RunLock, additional time.Duration) error {
	newExpiry := lock.ExpiresAt.Add(additional)

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ingestion_locks SET expires_at = ?
		WHERE lock_key = ? AND acquired_by = ?
	`, newExpiry.UTC().Format(time.RFC3339), lock.Key, lock.AcquiredBy)
	if err != nil {
		return fmt.Errorf("extending lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting extended lock rows: %w", err)
	}
	if n == 0 {
		return domain.ErrLockNotFound
	}

	lock.ExpiresAt = newExpiry
	return nil
}

func (s *lockStore) read(ctx context.Context, key string) (*domain.RunLock, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT lock_key, acquired_by, acquired_at, expires_at
		FROM ingestion_locks WHERE lock_key = ?
	`, key)

	var (
		lock                  domain.RunLock
		acquiredAt, expiresAt string
	)
	if err := row.Scan(&lock.Key, &lock.AcquiredBy, &acquiredAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLockNotFound
		}
		return nil, fmt.Errorf("scanning lock row: %w", err)
	}

	var err error
	if lock.AcquiredAt, err = time.Parse(time.RFC3339, acquiredAt); err != nil {
		return nil, fmt.Errorf("parsing acquired_at: %w", err)
	}
	if lock.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	return &lock, nil
}

// isConstraintViolation detects a primary-key conflict without depending
// on the driver's error types.
func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
