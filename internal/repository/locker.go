package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CourtLocker serializes bookings per court with Postgres advisory locks.
// The lock lives on a dedicated pooled connection and is released by the
// returned function, keeping the lock scope independent of any transaction
// so a non-relational backend can swap in a different strategy.
type CourtLocker struct {
	pool *pgxpool.Pool
	wait time.Duration
}

func NewCourtLocker(pool *pgxpool.Pool, wait time.Duration) *CourtLocker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &CourtLocker{pool: pool, wait: wait}
}

// LockCourt blocks until the court's advisory lock is held or the bounded
// wait elapses. A caller that cannot get the lock in time gets an error,
// never an indefinite block.
func (l *CourtLocker) LockCourt(ctx context.Context, courtID int64) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	if _, err := conn.Exec(lockCtx, `SELECT pg_advisory_lock($1)`, courtID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire court %d lock: %w", courtID, err)
	}

	unlock := func() {
		// Release must succeed even when the caller's context is done.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, courtID)
		conn.Release()
	}

	return unlock, nil
}
