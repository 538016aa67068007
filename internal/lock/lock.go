package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Manager coordinates named non-blocking locks between instances through
// lease rows in the shared registry database.
//
// A lock is one row (name, owner, expires_at). Acquiring inserts the row
// or steals it when the previous lease expired; a live lease held by
// another owner means the acquire reports false immediately. There is no
// queueing and no blocking, so callers skip contended work instead of
// piling up behind it. The TTL bounds how long a crashed holder can wedge
// the lock.
type Manager struct {
	db    *sql.DB
	owner string
	ttl   time.Duration
}

// NewManager builds a lock manager.
//
// Parameters:
//   - db: Shared registry database holding the cluster_locks table
//   - owner: This instance's identity, recorded on held leases
//   - ttl: Lease lifetime; expired leases are stealable
func NewManager(db *sql.DB, owner string, ttl time.Duration) *Manager {
	return &Manager{db: db, owner: owner, ttl: ttl}
}

// TryAcquire attempts to take the named lock without blocking.
//
// Re-acquiring a lock this instance already holds refreshes its lease.
//
// Returns:
//   - bool: true if the lease is now held by this instance
//   - error: Storage failure; contention is not an error
func (m *Manager) TryAcquire(ctx context.Context, name string) (bool, error) {
	now := time.Now().Unix()
	expires := now + int64(m.ttl.Seconds())

	// Insert a fresh lease, or take over one that is ours or expired.
	query := `
		INSERT INTO cluster_locks (name, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE
			SET owner = excluded.owner, expires_at = excluded.expires_at
			WHERE cluster_locks.owner = excluded.owner
				OR cluster_locks.expires_at < ?`

	result, err := m.db.ExecContext(ctx, query, name, m.owner, expires, now)
	if err != nil {
		return false, fmt.Errorf("acquiring lock %q: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lock result: %w", err)
	}
	return rows > 0, nil
}

// Release drops the named lock if this instance holds it.
//
// Releasing a lock held by another owner (the lease expired and was
// stolen mid-work) returns ErrNotHeld so the caller can log the overrun.
func (m *Manager) Release(ctx context.Context, name string) error {
	result, err := m.db.ExecContext(ctx,
		`DELETE FROM cluster_locks WHERE name = ? AND owner = ?`,
		name, m.owner)
	if err != nil {
		return fmt.Errorf("releasing lock %q: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking release result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, name)
	}
	return nil
}
