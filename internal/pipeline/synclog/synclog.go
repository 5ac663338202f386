// Package synclog implements the Sync Log Store: the append/update
// ledger in orders_sync_log that drives every planning decision the
// profiler makes, and the idempotency boundary between successive runs.
//
// Grounded on the teacher's internal/infra/auth/adapters/postgres_store.go
// (typed repo struct wrapping *pgxpool.Pool, QueryRow/Scan, pgconn.PgError
// code "23505" mapped to a domain-specific conflict).
package synclog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
)

// Entry mirrors one row of orders_sync_log.
type Entry struct {
	ID             int64
	PipelineID     domain.PipelineID
	StoreCode      string
	RunID          string
	Env            string
	CostCenter     string
	From           clock.Date
	To             clock.Date
	Status         domain.SyncLogStatus
	AttemptNo      int
	OrdersPulledAt *time.Time
	SalesPulledAt  *time.Time
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SuccessWindow is one success row surfaced to the profiler's plan
// construction.
type SuccessWindow struct {
	From clock.Date
	To   clock.Date
}

// Store is the Sync Log Store, backed by a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	clk    *clock.Clock
	logger logging.Logger
}

// New constructs a Store.
func New(pool *pgxpool.Pool, clk *clock.Clock, logger logging.Logger) *Store {
	return &Store{pool: pool, clk: clk, logger: logging.OrNop(logger)}
}

// OpenWindow inserts a new running row with attempt_no set to one more
// than the highest attempt recorded for this business key. A duplicate
// insert on the unique (pipeline_id, store_code, from_date, to_date,
// run_id) key surfaces KindConflict; callers treat the window as
// resumable (another worker, or a retried invocation, already owns it).
func (s *Store) OpenWindow(ctx context.Context, pipelineID domain.PipelineID, storeCode, runID, env, costCenter string, window clock.Window) (int64, error) {
	const query = `
INSERT INTO orders_sync_log
	(pipeline_id, store_code, run_id, run_env, cost_center, from_date, to_date, status, attempt_no, created_at, updated_at)
SELECT $1, $2, $3, $4, $5, $6, $7, 'running',
	COALESCE((SELECT MAX(attempt_no) FROM orders_sync_log
		WHERE pipeline_id = $1 AND store_code = $2 AND from_date = $6 AND to_date = $7), 0) + 1,
	now(), now()
RETURNING id
`
	var id int64
	err := s.pool.QueryRow(ctx, query, pipelineID, storeCode, runID, env, costCenter,
		window.From.String(), window.To.String()).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, pipelineerrors.New(pipelineerrors.KindConflict, "synclog.open_window",
				fmt.Sprintf("window %s..%s for %s/%s already has a running attempt this run",
					window.From, window.To, pipelineID, storeCode), err)
		}
		return 0, fmt.Errorf("open_window: %w", err)
	}

	s.logger.Info("opened window %s..%s for %s/%s (id=%d)", window.From, window.To, pipelineID, storeCode, id)
	return id, nil
}

// MarkOrdersPulled records that the orders artifact finished downloading
// and ingesting for a TD window.
func (s *Store) MarkOrdersPulled(ctx context.Context, id int64) error {
	const query = `UPDATE orders_sync_log SET orders_pulled_at = now(), updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark_orders_pulled(%d): %w", id, err)
	}
	return nil
}

// MarkSalesPulled records that the sales artifact finished downloading
// and ingesting for a TD window.
func (s *Store) MarkSalesPulled(ctx context.Context, id int64) error {
	const query = `UPDATE orders_sync_log SET sales_pulled_at = now(), updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark_sales_pulled(%d): %w", id, err)
	}
	return nil
}

// Finalize writes a terminal status (and, for failures, an
// operator-facing message) and touches updated_at.
func (s *Store) Finalize(ctx context.Context, id int64, status domain.SyncLogStatus, errMessage string) error {
	const query = `UPDATE orders_sync_log SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, status, errMessage)
	if err != nil {
		return fmt.Errorf("finalize(%d): %w", id, err)
	}
	s.logger.Info("finalized sync-log row %d as %s", id, status)
	return nil
}

// SuccessesFor returns every success row recorded for (pipeline, store),
// across all run_ids — any prior success makes a window "satisfied",
// subject to the profiler's overlap re-run rule.
func (s *Store) SuccessesFor(ctx context.Context, pipelineID domain.PipelineID, storeCode string) ([]SuccessWindow, error) {
	const query = `
SELECT from_date, to_date FROM orders_sync_log
WHERE pipeline_id = $1 AND store_code = $2 AND status = 'success'
ORDER BY to_date ASC
`
	rows, err := s.pool.Query(ctx, query, pipelineID, storeCode)
	if err != nil {
		return nil, fmt.Errorf("successes_for(%s,%s): %w", pipelineID, storeCode, err)
	}
	defer rows.Close()

	var out []SuccessWindow
	for rows.Next() {
		var from, to time.Time
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("successes_for(%s,%s): scan: %w", pipelineID, storeCode, err)
		}
		out = append(out, SuccessWindow{
			From: clock.NewDate(from.Year(), from.Month(), from.Day()),
			To:   clock.NewDate(to.Year(), to.Month(), to.Day()),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("successes_for(%s,%s): %w", pipelineID, storeCode, err)
	}
	return out, nil
}

// IsCovered reports whether a success row exists matching window exactly.
func (s *Store) IsCovered(ctx context.Context, pipelineID domain.PipelineID, storeCode string, window clock.Window) (bool, error) {
	const query = `
SELECT EXISTS(
	SELECT 1 FROM orders_sync_log
	WHERE pipeline_id = $1 AND store_code = $2 AND from_date = $3 AND to_date = $4 AND status = 'success'
)`
	var covered bool
	err := s.pool.QueryRow(ctx, query, pipelineID, storeCode, window.From.String(), window.To.String()).Scan(&covered)
	if err != nil {
		return false, fmt.Errorf("is_covered(%s,%s,%s..%s): %w", pipelineID, storeCode, window.From, window.To, err)
	}
	return covered, nil
}

// ReapOrphans finalizes as failed any `running` row older than
// watchdog, freeing its (pipeline_id, store_code, from, to) key for a
// fresh attempt. It is operational tooling invoked by the profiler at
// plan time, not a background daemon.
func (s *Store) ReapOrphans(ctx context.Context, watchdog time.Duration) (int, error) {
	const query = `
UPDATE orders_sync_log
SET status = 'failed', error_message = 'orphaned: watchdog expired', updated_at = now()
WHERE status = 'running' AND updated_at < now() - make_interval(secs => $1)
`
	tag, err := s.pool.Exec(ctx, query, watchdog.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reap_orphans: %w", err)
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		s.logger.Warn("reaped %d orphaned running window(s) older than %s", n, watchdog)
	}
	return n, nil
}

// Get fetches a single entry by id, used by tests and diagnostics.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	const query = `
SELECT id, pipeline_id, store_code, run_id, run_env, cost_center, from_date, to_date,
	status, attempt_no, orders_pulled_at, sales_pulled_at, error_message, created_at, updated_at
FROM orders_sync_log WHERE id = $1
`
	var e Entry
	var from, to time.Time
	var ordersPulled, salesPulled *time.Time
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.PipelineID, &e.StoreCode, &e.RunID, &e.Env, &e.CostCenter,
		&from, &to, &e.Status, &e.AttemptNo, &ordersPulled, &salesPulled,
		&e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, pipelineerrors.New(pipelineerrors.KindConflict, "synclog.Get", "no such sync-log row", err)
		}
		return Entry{}, fmt.Errorf("get(%d): %w", id, err)
	}
	e.From = clock.NewDate(from.Year(), from.Month(), from.Day())
	e.To = clock.NewDate(to.Year(), to.Month(), to.Day())
	e.OrdersPulledAt = ordersPulled
	e.SalesPulledAt = salesPulled
	return e, nil
}
