// Package production implements the Production Merge component: folding
// a staging batch into the mutable production tables (orders, td_sales,
// bank), plus the duplicate/edited-order flag computation that runs
// once per staging batch.
//
// Grounded on the same pgx repository idiom as internal/pipeline/staging
// (teacher's postgres_store.go QueryRow/Scan/pgconn.PgError style),
// generalized onto batched UPSERTs keyed on the production business
// keys rather than the staging ones.
package production

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/workbook"
)

// Store is the Production Merge component.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New constructs a Store.
func New(pool *pgxpool.Pool, logger logging.Logger) *Store {
	return &Store{pool: pool, logger: logging.OrNop(logger)}
}

// MergeOrders merges TD orders or UC orders (already mapped so
// order_date carries invoice_date for UC) into the orders table on
// (cost_center, order_number, order_date): insert if absent, otherwise
// update mutable fields. Never duplicates.
func (s *Store) MergeOrders(ctx context.Context, rows []workbook.Row) (int, error) {
	const query = `
INSERT INTO orders (cost_center, order_number, order_date, store_code, due_date,
                     customer_name, customer_phone, status, total_amount, paid_amount,
                     tax_amount, run_id, run_date, source_system)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (cost_center, order_number, order_date) DO UPDATE SET
    store_code      = EXCLUDED.store_code,
    due_date        = EXCLUDED.due_date,
    customer_name   = EXCLUDED.customer_name,
    customer_phone  = EXCLUDED.customer_phone,
    status          = EXCLUDED.status,
    total_amount    = EXCLUDED.total_amount,
    paid_amount     = EXCLUDED.paid_amount,
    tax_amount      = EXCLUDED.tax_amount,
    run_id          = EXCLUDED.run_id,
    run_date        = EXCLUDED.run_date
`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, pipelineerrors.New(pipelineerrors.KindTransport, "production.MergeOrders", "opening transaction", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query,
			row["cost_center"], row["order_number"], row["order_date"], row["store_code"],
			row["due_date"], row["customer_name"], row["customer_phone"], row["status"],
			row["total_amount"], row["paid_amount"], row["tax_amount"],
			row["run_id"], row["run_date"], row["source_system"])
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			_ = tx.Rollback(ctx)
			return 0, pipelineerrors.New(pipelineerrors.KindSchema, "production.MergeOrders", "merging orders", err)
		}
	}
	if err := br.Close(); err != nil {
		_ = tx.Rollback(ctx)
		return 0, pipelineerrors.New(pipelineerrors.KindSchema, "production.MergeOrders", "closing batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, pipelineerrors.New(pipelineerrors.KindTransport, "production.MergeOrders", "committing", err)
	}

	s.logger.Info("merged %d order row(s)", len(rows))
	return len(rows), nil
}

// MergeTDSales merges td_sales rows on (cost_center, order_number,
// payment_date): insert-or-update mutable attributes, never a blind
// insert.
func (s *Store) MergeTDSales(ctx context.Context, rows []workbook.Row) (int, error) {
	const query = `
INSERT INTO td_sales (cost_center, order_number, payment_date, store_code,
                       payment_mode, payment_amount, run_id, run_date, source_system)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (cost_center, order_number, payment_date) DO UPDATE SET
    store_code     = EXCLUDED.store_code,
    payment_mode   = EXCLUDED.payment_mode,
    payment_amount = EXCLUDED.payment_amount,
    run_id         = EXCLUDED.run_id,
    run_date       = EXCLUDED.run_date
`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, pipelineerrors.New(pipelineerrors.KindTransport, "production.MergeTDSales", "opening transaction", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query,
			row["cost_center"], row["order_number"], row["payment_date"], row["store_code"],
			row["payment_mode"], row["payment_amount"], row["run_id"], row["run_date"], row["source_system"])
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			_ = tx.Rollback(ctx)
			return 0, pipelineerrors.New(pipelineerrors.KindSchema, "production.MergeTDSales", "merging td_sales", err)
		}
	}
	if err := br.Close(); err != nil {
		_ = tx.Rollback(ctx)
		return 0, pipelineerrors.New(pipelineerrors.KindSchema, "production.MergeTDSales", "closing batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, pipelineerrors.New(pipelineerrors.KindTransport, "production.MergeTDSales", "committing", err)
	}

	s.logger.Info("merged %d td_sales row(s)", len(rows))
	return len(rows), nil
}

// MergeBank inserts bank rows keyed solely on row_id; spec treats bank
// rows as append-only with row_id uniqueness, so conflicts are ignored
// rather than updated.
func (s *Store) MergeBank(ctx context.Context, rows []workbook.Row) (int, error) {
	const query = `
INSERT INTO bank (row_id, cost_center, transaction_date, description, amount, balance,
                   run_id, run_date, source_system)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (row_id) DO NOTHING
`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, pipelineerrors.New(pipelineerrors.KindTransport, "production.MergeBank", "opening transaction", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query,
			row["row_id"], row["cost_center"], row["transaction_date"], row["description"],
			row["amount"], row["balance"], row["run_id"], row["run_date"], row["source_system"])
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			_ = tx.Rollback(ctx)
			return 0, pipelineerrors.New(pipelineerrors.KindSchema, "production.MergeBank", "merging bank", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		_ = tx.Rollback(ctx)
		return 0, pipelineerrors.New(pipelineerrors.KindSchema, "production.MergeBank", "closing batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, pipelineerrors.New(pipelineerrors.KindTransport, "production.MergeBank", "committing", err)
	}

	s.logger.Info("inserted %d bank row(s) (of %d seen)", inserted, len(rows))
	return inserted, nil
}

// FlagDuplicates computes is_duplicate and is_edited_order per row of a
// staging batch: a row is a duplicate of an earlier row in the same
// batch if (store_code, order_number) repeats; among duplicates, every
// occurrence after the first is also flagged is_edited_order, since a
// re-appearing order_number within one batch implies the source re-sent
// an edited record rather than a brand-new one.
func FlagDuplicates(rows []workbook.Row) {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		key := fmt.Sprintf("%v|%v", row["store_code"], row["order_number"])
		if seen[key] {
			row["is_duplicate"] = true
			row["is_edited_order"] = true
		} else {
			row["is_duplicate"] = false
			row["is_edited_order"] = false
			seen[key] = true
		}
	}
}
