// Package sessioncache persists and probes per-store browser storage
// state, so a sync engine can reuse an authenticated session across
// windows instead of logging in for every run.
//
// Grounded on the teacher's atomic-write idiom (write-to-temp then
// rename, used throughout its session/state-persistence code) and its
// logging.OrNop guard convention.
package sessioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
)

// State is an opaque browser storage state blob (cookies, localStorage,
// origin state) as produced and consumed by the web automation adapter.
// The cache never interprets its contents; it only persists it.
type State json.RawMessage

// Probe is the outcome of checking whether a persisted State is still
// usable.
type Probe int

const (
	ProbeUnknown Probe = iota
	ProbeValid
	ProbeExpired
)

func (p Probe) String() string {
	switch p {
	case ProbeValid:
		return "valid"
	case ProbeExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Prober is supplied by the web automation adapter: given a loaded
// State and a home URL, navigate and decide whether the session is
// still authenticated. The cache itself has no browser capability.
type Prober func(ctx context.Context, storeCode string, state State, homeURL string) (Probe, error)

// Cache persists one storage-state file per store under dir, named
// "{store_code}_storage_state.json". Session state is never cross-used
// between stores: every operation is keyed by store_code and touches
// only that store's file.
type Cache struct {
	dir    string
	logger logging.Logger
}

// New constructs a Cache rooted at dir. dir is created if absent.
func New(dir string, logger logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, pipelineerrors.New(pipelineerrors.KindFatalConfig, "sessioncache.New",
			fmt.Sprintf("creating session state dir %s", dir), err)
	}
	return &Cache{dir: dir, logger: logging.OrNop(logger)}, nil
}

func (c *Cache) path(storeCode string) string {
	return filepath.Join(c.dir, storeCode+"_storage_state.json")
}

// LoadState returns the persisted state for storeCode, or (nil, false)
// if none exists yet.
func (c *Cache) LoadState(storeCode string) (State, bool, error) {
	data, err := os.ReadFile(c.path(storeCode))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load_state(%s): %w", storeCode, err)
	}
	return State(data), true, nil
}

// SaveState atomically replaces storeCode's persisted state: the new
// state is written to a temp file in the same directory, then renamed
// over the target, so a crash mid-write never leaves a truncated file.
func (c *Cache) SaveState(storeCode string, state State) error {
	target := c.path(storeCode)
	tmp, err := os.CreateTemp(c.dir, storeCode+"_storage_state.*.tmp")
	if err != nil {
		return fmt.Errorf("save_state(%s): %w", storeCode, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(state); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("save_state(%s): write: %w", storeCode, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save_state(%s): close: %w", storeCode, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save_state(%s): rename: %w", storeCode, err)
	}

	c.logger.Debug("saved session state for %s", storeCode)
	return nil
}

// ProbeState loads storeCode's state (if any) and asks prober whether it
// is still valid. A missing state is reported as expired so the caller
// performs a full login.
func (c *Cache) ProbeState(ctx context.Context, storeCode, homeURL string, prober Prober) (Probe, error) {
	state, ok, err := c.LoadState(storeCode)
	if err != nil {
		return ProbeUnknown, err
	}
	if !ok {
		return ProbeExpired, nil
	}
	return prober(ctx, storeCode, state, homeURL)
}
