package profiler

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
)

// jobLock is a session-scoped Postgres advisory lock keyed by
// hash(store_code, pipeline_id), held for the duration of one (store,
// pipeline) job so two profiler processes never run the same job
// concurrently.
type jobLock struct {
	pool   *pgxpool.Pool
	key    int64
	logger logging.Logger
	conn   *pgxpool.Conn
}

func newJobLock(pool *pgxpool.Pool, storeCode string, pipelineID domain.PipelineID, logger logging.Logger) *jobLock {
	return &jobLock{pool: pool, key: lockKey(storeCode, pipelineID), logger: logging.OrNop(logger)}
}

func lockKey(storeCode string, pipelineID domain.PipelineID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(pipelineID) + ":" + storeCode))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// tryAcquire attempts pg_try_advisory_lock once, non-blocking: if another
// host already owns this (store, pipeline)'s lock, the job is skipped
// rather than queued (spec §4.11: "failure to acquire ⇒ skip job with
// status note").
func (l *jobLock) tryAcquire(ctx context.Context) (bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock: acquire connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&locked); err != nil {
		conn.Release()
		return false, fmt.Errorf("advisory lock: pg_try_advisory_lock: %w", err)
	}
	if !locked {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// release unlocks and returns the connection to the pool. Safe to call
// even if tryAcquire never succeeded.
func (l *jobLock) release(ctx context.Context) {
	if l.conn == nil {
		return
	}
	var unlocked bool
	if err := l.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&unlocked); err != nil {
		l.logger.Warn("advisory lock: pg_advisory_unlock failed: %v", err)
	}
	l.conn.Release()
	l.conn = nil
}
