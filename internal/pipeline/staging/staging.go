// Package staging implements the Staging Upsert component: idempotent
// UPSERTs of parsed workbook rows into the four staging tables, chunked
// into batches so a single artifact never opens one giant statement.
//
// Grounded on the teacher's pgx repository style
// (internal/infra/auth/adapters/postgres_store.go: pool.QueryRow/Scan,
// pgconn.PgError sniffing) generalized from single-row QueryRow calls
// onto batched multi-row UPSERTs via pgx.Batch, and on the teacher's
// chunked-write idiom for bulk writes.
package staging

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/workbook"
)

// Store is the Staging Upsert component.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
	logger    logging.Logger
}

// New constructs a Store. batchSize governs how many rows are sent per
// pgx.Batch round trip (spec §6: INGEST_BATCH_SIZE, default 3000).
func New(pool *pgxpool.Pool, batchSize int, logger logging.Logger) *Store {
	if batchSize < 1 {
		batchSize = 3000
	}
	return &Store{pool: pool, batchSize: batchSize, logger: logging.OrNop(logger)}
}

// tableSpec names one staging table's columns and conflict key, in the
// order values must be bound.
type tableSpec struct {
	table      string
	conflict   []string
	columns    []string // includes conflict columns; values read from workbook.Row by this name
}

var tdOrdersTable = tableSpec{
	table:    "stg_td_orders",
	conflict: []string{"store_code", "order_number", "order_date"},
	columns: []string{
		"store_code", "order_number", "order_date", "due_date", "default_due_date",
		"due_days_delta", "due_date_flag", "complete_processing_by",
		"customer_name", "customer_phone", "status", "total_amount", "paid_amount",
		"cost_center", "run_id", "run_date", "source_system",
	},
}

var tdSalesTable = tableSpec{
	table:    "stg_td_sales",
	conflict: []string{"store_code", "order_number", "payment_date"},
	columns: []string{
		"store_code", "order_number", "payment_date", "payment_mode", "payment_amount",
		"cost_center", "run_id", "run_date", "source_system",
	},
}

var ucOrdersTable = tableSpec{
	table:    "stg_uc_orders",
	conflict: []string{"store_code", "order_number", "invoice_date"},
	columns: []string{
		"store_code", "order_number", "invoice_date", "customer_name", "customer_phone",
		"taxable_amount", "cgst", "sgst", "tax_amount", "total_amount",
		"cost_center", "run_id", "run_date", "source_system",
	},
}

var bankTable = tableSpec{
	table:    "stg_bank",
	conflict: []string{"row_id"},
	columns: []string{
		"row_id", "transaction_date", "description", "amount", "balance",
		"cost_center", "run_id", "run_date", "source_system",
	},
}

// UpsertTDOrders stages parsed TD Orders rows.
func (s *Store) UpsertTDOrders(ctx context.Context, rows []workbook.Row) (int, error) {
	return s.upsert(ctx, tdOrdersTable, rows)
}

// UpsertTDSales stages parsed TD Sales & Delivery rows.
func (s *Store) UpsertTDSales(ctx context.Context, rows []workbook.Row) (int, error) {
	return s.upsert(ctx, tdSalesTable, rows)
}

// UpsertUCOrders stages parsed UC GST export rows.
func (s *Store) UpsertUCOrders(ctx context.Context, rows []workbook.Row) (int, error) {
	return s.upsert(ctx, ucOrdersTable, rows)
}

// UpsertBank stages parsed bank statement rows.
func (s *Store) UpsertBank(ctx context.Context, rows []workbook.Row) (int, error) {
	return s.upsert(ctx, bankTable, rows)
}

func (s *Store) upsert(ctx context.Context, spec tableSpec, rows []workbook.Row) (int, error) {
	query := buildUpsertSQL(spec)
	total := 0

	for chunkStart := 0; chunkStart < len(rows); chunkStart += s.batchSize {
		chunkEnd := chunkStart + s.batchSize
		if chunkEnd > len(rows) {
			chunkEnd = len(rows)
		}
		chunk := rows[chunkStart:chunkEnd]

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return total, pipelineerrors.New(pipelineerrors.KindTransport, "staging.upsert",
				fmt.Sprintf("opening transaction for %s", spec.table), err)
		}

		batch := &pgx.Batch{}
		for _, row := range chunk {
			batch.Queue(query, rowValues(spec, row)...)
		}

		br := tx.SendBatch(ctx, batch)
		for range chunk {
			if _, err := br.Exec(); err != nil {
				br.Close()
				_ = tx.Rollback(ctx)
				return total, pipelineerrors.New(pipelineerrors.KindSchema, "staging.upsert",
					fmt.Sprintf("upserting into %s", spec.table), err)
			}
		}
		if err := br.Close(); err != nil {
			_ = tx.Rollback(ctx)
			return total, pipelineerrors.New(pipelineerrors.KindSchema, "staging.upsert",
				fmt.Sprintf("closing batch for %s", spec.table), err)
		}
		if err := tx.Commit(ctx); err != nil {
			return total, pipelineerrors.New(pipelineerrors.KindTransport, "staging.upsert",
				fmt.Sprintf("committing %s", spec.table), err)
		}

		total += len(chunk)
	}

	s.logger.Info("staged %d row(s) into %s", total, spec.table)
	return total, nil
}

func rowValues(spec tableSpec, row workbook.Row) []any {
	values := make([]any, len(spec.columns))
	for i, col := range spec.columns {
		values[i] = row[col]
	}
	return values
}

func buildUpsertSQL(spec tableSpec) string {
	isConflictCol := make(map[string]bool, len(spec.conflict))
	for _, c := range spec.conflict {
		isConflictCol[c] = true
	}

	placeholders := make([]string, len(spec.columns))
	var updates []string
	for i, col := range spec.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if !isConflictCol[col] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		spec.table,
		joinColumns(spec.columns),
		joinColumns(placeholders),
		joinColumns(spec.conflict),
		joinColumns(updates),
	)
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
