package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
)

// Store is the notification dispatcher's read side plus the
// notification_dispatch_log idempotency ledger, backed by a pgx
// connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New constructs a Store.
func New(pool *pgxpool.Pool, logger logging.Logger) *Store {
	return &Store{pool: pool, logger: logging.OrNop(logger)}
}

// LoadDocumentsForRun returns every document recorded against runID.
func (s *Store) LoadDocumentsForRun(ctx context.Context, runID string) ([]Document, error) {
	const query = `
SELECT id, run_id, COALESCE(store_code, ''), kind, subtype, path, file_name, recorded_at::text
FROM run_documents WHERE run_id = $1
ORDER BY store_code, id
`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("load_documents_for_run(%s): %w", runID, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.RunID, &d.StoreCode, &d.Kind, &d.Subtype, &d.Path, &d.FileName, &d.RecordedAt); err != nil {
			return nil, fmt.Errorf("load_documents_for_run(%s): scan: %w", runID, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load_documents_for_run(%s): %w", runID, err)
	}
	return out, nil
}

// ActiveProfiles returns every active notification_profiles row bound
// to pipelineName.
func (s *Store) ActiveProfiles(ctx context.Context, pipelineName string) ([]Profile, error) {
	const query = `
SELECT id, pipeline_name, scope, attach_mode, is_active
FROM notification_profiles WHERE pipeline_name = $1 AND is_active
ORDER BY id
`
	rows, err := s.pool.Query(ctx, query, pipelineName)
	if err != nil {
		return nil, fmt.Errorf("active_profiles(%s): %w", pipelineName, err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.PipelineName, &p.Scope, &p.AttachMode, &p.IsActive); err != nil {
			return nil, fmt.Errorf("active_profiles(%s): scan: %w", pipelineName, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active_profiles(%s): %w", pipelineName, err)
	}
	return out, nil
}

// ActiveTemplates returns every active notification_templates row for
// profileID. Most profiles carry exactly one.
func (s *Store) ActiveTemplates(ctx context.Context, profileID int64) ([]Template, error) {
	const query = `
SELECT id, profile_id, subject, body, is_active
FROM notification_templates WHERE profile_id = $1 AND is_active
ORDER BY id
`
	rows, err := s.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("active_templates(%d): %w", profileID, err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.ProfileID, &t.Subject, &t.Body, &t.IsActive); err != nil {
			return nil, fmt.Errorf("active_templates(%d): scan: %w", profileID, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active_templates(%d): %w", profileID, err)
	}
	return out, nil
}

// ActiveRecipients returns every active notification_recipients row for
// profileID and env.
func (s *Store) ActiveRecipients(ctx context.Context, profileID int64, env string) ([]Recipient, error) {
	const query = `
SELECT id, profile_id, COALESCE(store_code, ''), env, email, is_active
FROM notification_recipients
WHERE profile_id = $1 AND env = $2 AND is_active
ORDER BY store_code, id
`
	rows, err := s.pool.Query(ctx, query, profileID, env)
	if err != nil {
		return nil, fmt.Errorf("active_recipients(%d,%s): %w", profileID, env, err)
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.StoreCode, &r.Env, &r.Email, &r.IsActive); err != nil {
			return nil, fmt.Errorf("active_recipients(%d,%s): scan: %w", profileID, env, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active_recipients(%d,%s): %w", profileID, env, err)
	}
	return out, nil
}

// AlreadyDispatched reports whether a dispatch for (runID, profileID,
// storeCode) was already recorded, making Dispatch safe to re-invoke
// for the same run.
func (s *Store) AlreadyDispatched(ctx context.Context, runID string, profileID int64, storeCode string) (bool, error) {
	const query = `
SELECT EXISTS(
	SELECT 1 FROM notification_dispatch_log
	WHERE run_id = $1 AND profile_id = $2 AND store_code = $3
)`
	var done bool
	if err := s.pool.QueryRow(ctx, query, runID, profileID, storeCode).Scan(&done); err != nil {
		return false, fmt.Errorf("already_dispatched(%s,%d,%s): %w", runID, profileID, storeCode, err)
	}
	return done, nil
}

// RecordDispatch inserts the idempotency row for one plan's send
// attempt. sendErr is empty on success; a non-empty sendErr still
// records the attempt so a failed send is not silently retried forever
// by a naive re-invocation, matching the spec's "record per-plan
// failures without failing the run" rule.
func (s *Store) RecordDispatch(ctx context.Context, runID string, profileID int64, storeCode string, sendErr string) error {
	const query = `
INSERT INTO notification_dispatch_log (run_id, profile_id, store_code, dispatched_at, error_message)
VALUES ($1, $2, $3, now(), NULLIF($4, ''))
`
	if _, err := s.pool.Exec(ctx, query, runID, profileID, storeCode, sendErr); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil // another invocation already recorded this dispatch
		}
		return fmt.Errorf("record_dispatch(%s,%d,%s): %w", runID, profileID, storeCode, err)
	}
	return nil
}
