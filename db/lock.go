// ABOUTME: Advisory run lock stored as a lease row
// ABOUTME: Keeps overlapping scheduler invocations from dispatching at the same time
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// LeaseLocker grants named leases that expire after TTL so a crashed run
// cannot hold the lock forever.
type LeaseLocker struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

func NewLeaseLocker(store *Store, ttl time.Duration) *LeaseLocker {
	return &LeaseLocker{store: store, ttl: ttl, now: time.Now}
}

// TryLock acquires the named lease. ok is false when another owner holds an
// unexpired lease.
func (l *LeaseLocker) TryLock(ctx context.Context, name string) (release func(), ok bool, err error) {
	owner := ulid.Make().String()
	now := l.now().UTC()

	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO scheduler_lock (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE scheduler_lock.expires_at <= ?
	`, name, owner, now.Add(l.ttl), now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}

	release = func() {
		// Background context: release must run even after the caller's context is cancelled
		_, _ = l.store.db.ExecContext(context.Background(),
			`DELETE FROM scheduler_lock WHERE name = ? AND owner = ?`, name, owner)
	}
	return release, true, nil
}

// ForceRelease drops the named lease whoever holds it. It reports whether a
// lease existed. Used to clear the lock left behind by a crashed run.
func (l *LeaseLocker) ForceRelease(ctx context.Context, name string) (bool, error) {
	res, err := l.store.db.ExecContext(ctx, `DELETE FROM scheduler_lock WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to release lock %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
