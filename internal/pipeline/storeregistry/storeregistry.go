// Package storeregistry is a read-only facade over store_master: the
// list of stores eligible for syncing, their routing metadata, and the
// frozen per-store SyncConfig value object.
//
// Grounded on the same pgx repository idiom as internal/pipeline/synclog
// (teacher's internal/infra/auth/adapters/postgres_store.go); SyncConfig
// validation is grounded on the teacher's declared-but-previously-unwired
// github.com/go-playground/validator/v10 dependency.
package storeregistry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
)

// LoginSelectors names the CSS/role selectors the web automation adapter
// fills during login, per store.
type LoginSelectors struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	StoreCode string `json:"store_code"`
	Submit   string `json:"submit" validate:"required"`
}

// URLs are the navigation targets the adapter drives, per store.
type URLs struct {
	Login      string `json:"login" validate:"required,url"`
	Home       string `json:"home" validate:"required,url"`
	OrdersLink string `json:"orders_link" validate:"required,url"`
	SalesLink  string `json:"sales_link"`
}

// SyncConfig is the frozen, validated structured record backing a
// store's sync_config JSON column. Unknown JSON fields are ignored
// (spec §9: "unknown fields are ignored"), required fields are checked
// once at load time so a malformed store never reaches the adapter.
type SyncConfig struct {
	URLs           URLs            `json:"urls" validate:"required"`
	LoginSelectors LoginSelectors  `json:"login_selector" validate:"required"`
	Username       string          `json:"username" validate:"required"`
	Password       string          `json:"password" validate:"required"`
}

var validate = validator.New()

// ParseSyncConfig unmarshals and validates raw JSON into a SyncConfig.
func ParseSyncConfig(raw []byte) (SyncConfig, error) {
	var cfg SyncConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return SyncConfig{}, pipelineerrors.New(pipelineerrors.KindFatalConfig, "storeregistry.ParseSyncConfig",
			"sync_config is not valid JSON", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return SyncConfig{}, pipelineerrors.New(pipelineerrors.KindFatalConfig, "storeregistry.ParseSyncConfig",
			"sync_config failed validation: "+err.Error(), err)
	}
	return cfg, nil
}

// Store is one row of store_master.
type Store struct {
	StoreCode      string
	SyncGroup      domain.PipelineID
	CostCenter     string
	StartDate      string // "2006-01-02"; parsed into clock.Date by callers that need arithmetic
	SyncOrdersFlag bool
	IsActive       bool
	Config         SyncConfig
}

// Registry is the Store Registry, backed by a pgx connection pool.
type Registry struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New constructs a Registry.
func New(pool *pgxpool.Pool, logger logging.Logger) *Registry {
	return &Registry{pool: pool, logger: logging.OrNop(logger)}
}

// EligibleStores returns active stores with sync_orders_flag=true,
// optionally filtered by sync_group and/or an explicit store_code.
func (r *Registry) EligibleStores(ctx context.Context, group domain.PipelineID, explicitCode string) ([]Store, error) {
	query := `
SELECT store_code, sync_group, cost_center, start_date, sync_orders_flag, is_active, sync_config
FROM store_master
WHERE is_active = true AND sync_orders_flag = true
`
	args := []any{}
	argc := 1

	if group != "" && group != "ALL" {
		query += fmt.Sprintf(" AND sync_group = $%d", argc)
		args = append(args, group)
		argc++
	}
	if explicitCode != "" {
		query += fmt.Sprintf(" AND store_code = $%d", argc)
		args = append(args, explicitCode)
		argc++
	}
	query += " ORDER BY store_code"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eligible_stores: %w", err)
	}
	defer rows.Close()

	var out []Store
	for rows.Next() {
		var s Store
		var rawConfig []byte
		if err := rows.Scan(&s.StoreCode, &s.SyncGroup, &s.CostCenter, &s.StartDate,
			&s.SyncOrdersFlag, &s.IsActive, &rawConfig); err != nil {
			return nil, fmt.Errorf("eligible_stores: scan: %w", err)
		}

		cfg, err := ParseSyncConfig(rawConfig)
		if err != nil {
			r.logger.Warn("store %s has an invalid sync_config, skipping: %v", s.StoreCode, err)
			continue
		}
		s.Config = cfg
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eligible_stores: %w", err)
	}

	r.logger.Debug("resolved %d eligible store(s) (group=%s, explicit=%q)", len(out), group, explicitCode)
	return out, nil
}
