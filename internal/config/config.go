// Package config loads the process's runtime configuration from a layered
// stack: an optional YAML file, then environment variables, then explicit
// in-process overrides (highest precedence). Every field's winning source
// is recorded in Metadata so operators can tell where a value came from.
//
// Grounded on the teacher's internal/config/load.go and types.go: the
// same file < environment < override precedence and per-field
// Metadata.sources provenance map, generalized from the teacher's
// LLM-provider fields onto the environment variables of this pipeline.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"gopkg.in/yaml.v3"
)

// ValueSource records where a config field's winning value came from.
type ValueSource int

const (
	SourceDefault ValueSource = iota
	SourceFile
	SourceEnv
	SourceOverride
)

func (s ValueSource) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourceEnv:
		return "env"
	case SourceOverride:
		return "override"
	default:
		return "default"
	}
}

// Metadata records, per field name, which layer supplied its final value.
type Metadata struct {
	sources map[string]ValueSource
}

// SourceOf reports which layer supplied field's value.
func (m Metadata) SourceOf(field string) ValueSource {
	return m.sources[field]
}

// RuntimeConfig is the fully-resolved process configuration, per spec.md
// §6.
type RuntimeConfig struct {
	// Ambient
	PipelineTimezone string
	DatabaseURL      string
	IngestBatchSize  int

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string
	SMTPTLS  bool

	SessionStateDir string
	DownloadDir     string

	// Invocation parameters (spec.md §6: "a single process entrypoint
	// accepts env, sync_group, window_days, overlap_days, max_workers,
	// force, optional store_code filter").
	Env          string
	SyncGroup    string // TD | UC | ALL
	WindowDays   int
	OverlapDays  int
	MaxWorkers   int
	Force        bool
	StoreCode    string // optional filter, empty means "all eligible"
}

func defaults() RuntimeConfig {
	return RuntimeConfig{
		PipelineTimezone: "Asia/Kolkata",
		IngestBatchSize:  3000,
		SMTPPort:         587,
		SMTPTLS:          true,
		SessionStateDir:  "./session_state",
		DownloadDir:      "./downloads",
		Env:              "production",
		SyncGroup:        "ALL",
		WindowDays:       90,
		OverlapDays:      1,
		MaxWorkers:       3,
	}
}

// Option customizes a Load call; used by tests to inject a fake
// environment or override specific fields without touching the process
// environment.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup func(string) (string, bool)
	readFile  func(string) ([]byte, error)
	filePath  string
	overrides RuntimeConfig
}

// WithEnvLookup overrides how environment variables are read (for tests).
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithFile points Load at a YAML overlay file. Missing files are treated
// as "no overlay", not an error.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.filePath = path }
}

// WithOverride sets a field directly, taking precedence over file and
// environment. The syncrunner entrypoint passes no overrides; its
// configuration comes from the file and the environment alone.
func WithOverride(apply func(*RuntimeConfig)) Option {
	return func(o *loadOptions) { apply(&o.overrides) }
}

// fileOverlay is the subset of RuntimeConfig a YAML file may supply.
type fileOverlay struct {
	PipelineTimezone string `yaml:"pipeline_timezone"`
	IngestBatchSize  int    `yaml:"ingest_batch_size"`
	SMTPHost         string `yaml:"smtp_host"`
	SMTPPort         int    `yaml:"smtp_port"`
	SMTPUser         string `yaml:"smtp_user"`
	SMTPFrom         string `yaml:"smtp_from"`
	SMTPTLS          *bool  `yaml:"smtp_tls"`
	SessionStateDir  string `yaml:"session_state_dir"`
	DownloadDir      string `yaml:"download_dir"`
	WindowDays       int    `yaml:"window_days"`
	OverlapDays      int    `yaml:"overlap_days"`
	MaxWorkers       int    `yaml:"max_workers"`
}

// Load resolves a RuntimeConfig from defaults, an optional file, the
// environment, and any supplied overrides, in that increasing order of
// precedence. Missing DATABASE_URL, or a PIPELINE_TIMEZONE left empty
// after all layers, surfaces KindFatalConfig, per spec.md §7. An unset
// PIPELINE_TIMEZONE keeps its "Asia/Kolkata" default, and Load does not
// check that the zone name resolves.
func Load(opts ...Option) (RuntimeConfig, Metadata, error) {
	o := loadOptions{
		envLookup: os.LookupEnv,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := defaults()
	meta := Metadata{sources: map[string]ValueSource{}}

	if o.filePath != "" {
		if err := applyFile(&cfg, meta, o.filePath, o.readFile); err != nil {
			return RuntimeConfig{}, Metadata{}, err
		}
	}

	applyEnv(&cfg, meta, o.envLookup)

	applyOverrides(&cfg, meta, o.overrides)

	if cfg.DatabaseURL == "" {
		return RuntimeConfig{}, Metadata{}, pipelineerrors.New(
			pipelineerrors.KindFatalConfig, "config.Load", "DATABASE_URL is required", nil)
	}
	if cfg.PipelineTimezone == "" {
		return RuntimeConfig{}, Metadata{}, pipelineerrors.New(
			pipelineerrors.KindFatalConfig, "config.Load", "PIPELINE_TIMEZONE must not be empty", nil)
	}

	return cfg, meta, nil
}

func applyFile(cfg *RuntimeConfig, meta Metadata, path string, readFile func(string) ([]byte, error)) error {
	data, err := readFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pipelineerrors.New(pipelineerrors.KindFatalConfig, "config.applyFile",
			fmt.Sprintf("reading config file %s", path), err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return pipelineerrors.New(pipelineerrors.KindFatalConfig, "config.applyFile",
			fmt.Sprintf("parsing config file %s", path), err)
	}

	set := func(field string, assign func()) {
		assign()
		meta.sources[field] = SourceFile
	}
	if overlay.PipelineTimezone != "" {
		set("PipelineTimezone", func() { cfg.PipelineTimezone = overlay.PipelineTimezone })
	}
	if overlay.IngestBatchSize != 0 {
		set("IngestBatchSize", func() { cfg.IngestBatchSize = overlay.IngestBatchSize })
	}
	if overlay.SMTPHost != "" {
		set("SMTPHost", func() { cfg.SMTPHost = overlay.SMTPHost })
	}
	if overlay.SMTPPort != 0 {
		set("SMTPPort", func() { cfg.SMTPPort = overlay.SMTPPort })
	}
	if overlay.SMTPUser != "" {
		set("SMTPUser", func() { cfg.SMTPUser = overlay.SMTPUser })
	}
	if overlay.SMTPFrom != "" {
		set("SMTPFrom", func() { cfg.SMTPFrom = overlay.SMTPFrom })
	}
	if overlay.SMTPTLS != nil {
		set("SMTPTLS", func() { cfg.SMTPTLS = *overlay.SMTPTLS })
	}
	if overlay.SessionStateDir != "" {
		set("SessionStateDir", func() { cfg.SessionStateDir = overlay.SessionStateDir })
	}
	if overlay.DownloadDir != "" {
		set("DownloadDir", func() { cfg.DownloadDir = overlay.DownloadDir })
	}
	if overlay.WindowDays != 0 {
		set("WindowDays", func() { cfg.WindowDays = overlay.WindowDays })
	}
	if overlay.OverlapDays != 0 {
		set("OverlapDays", func() { cfg.OverlapDays = overlay.OverlapDays })
	}
	if overlay.MaxWorkers != 0 {
		set("MaxWorkers", func() { cfg.MaxWorkers = overlay.MaxWorkers })
	}

	return nil
}

func applyEnv(cfg *RuntimeConfig, meta Metadata, lookup func(string) (string, bool)) {
	str := func(field, key string, assign func(string)) {
		if v, ok := lookup(key); ok && v != "" {
			assign(v)
			meta.sources[field] = SourceEnv
		}
	}
	num := func(field, key string, assign func(int)) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				assign(n)
				meta.sources[field] = SourceEnv
			}
		}
	}
	boolean := func(field, key string, assign func(bool)) {
		if v, ok := lookup(key); ok && v != "" {
			assign(parseBool(v))
			meta.sources[field] = SourceEnv
		}
	}

	str("PipelineTimezone", "PIPELINE_TIMEZONE", func(v string) { cfg.PipelineTimezone = v })
	str("DatabaseURL", "DATABASE_URL", func(v string) { cfg.DatabaseURL = v })
	num("IngestBatchSize", "INGEST_BATCH_SIZE", func(v int) { cfg.IngestBatchSize = v })

	str("SMTPHost", "SMTP_HOST", func(v string) { cfg.SMTPHost = v })
	num("SMTPPort", "SMTP_PORT", func(v int) { cfg.SMTPPort = v })
	str("SMTPUser", "SMTP_USER", func(v string) { cfg.SMTPUser = v })
	str("SMTPPass", "SMTP_PASS", func(v string) { cfg.SMTPPass = v })
	str("SMTPFrom", "SMTP_FROM", func(v string) { cfg.SMTPFrom = v })
	boolean("SMTPTLS", "SMTP_TLS", func(v bool) { cfg.SMTPTLS = v })

	str("SessionStateDir", "SESSION_STATE_DIR", func(v string) { cfg.SessionStateDir = v })
	str("DownloadDir", "DOWNLOAD_DIR", func(v string) { cfg.DownloadDir = v })

	str("Env", "PIPELINE_ENV", func(v string) { cfg.Env = v })
	str("SyncGroup", "SYNC_GROUP", func(v string) { cfg.SyncGroup = strings.ToUpper(v) })
	num("WindowDays", "WINDOW_DAYS", func(v int) { cfg.WindowDays = v })
	num("OverlapDays", "OVERLAP_DAYS", func(v int) { cfg.OverlapDays = v })
	num("MaxWorkers", "MAX_WORKERS", func(v int) { cfg.MaxWorkers = v })
	boolean("Force", "FORCE", func(v bool) { cfg.Force = v })
	str("StoreCode", "STORE_CODE", func(v string) { cfg.StoreCode = v })
}

// applyOverrides layers in the caller-supplied override struct. Only
// fields left non-zero by the accumulated WithOverride closures are
// treated as explicitly set, so an override cannot force a field to its
// zero value.
func applyOverrides(cfg *RuntimeConfig, meta Metadata, overrides RuntimeConfig) {
	strField := func(name string, dst *string, v string) {
		if v != "" {
			*dst = v
			meta.sources[name] = SourceOverride
		}
	}
	intField := func(name string, dst *int, v int) {
		if v != 0 {
			*dst = v
			meta.sources[name] = SourceOverride
		}
	}

	strField("PipelineTimezone", &cfg.PipelineTimezone, overrides.PipelineTimezone)
	strField("DatabaseURL", &cfg.DatabaseURL, overrides.DatabaseURL)
	intField("IngestBatchSize", &cfg.IngestBatchSize, overrides.IngestBatchSize)
	strField("SMTPHost", &cfg.SMTPHost, overrides.SMTPHost)
	intField("SMTPPort", &cfg.SMTPPort, overrides.SMTPPort)
	strField("SMTPUser", &cfg.SMTPUser, overrides.SMTPUser)
	strField("SMTPPass", &cfg.SMTPPass, overrides.SMTPPass)
	strField("SMTPFrom", &cfg.SMTPFrom, overrides.SMTPFrom)
	strField("SessionStateDir", &cfg.SessionStateDir, overrides.SessionStateDir)
	strField("DownloadDir", &cfg.DownloadDir, overrides.DownloadDir)
	strField("Env", &cfg.Env, overrides.Env)
	strField("SyncGroup", &cfg.SyncGroup, overrides.SyncGroup)
	intField("WindowDays", &cfg.WindowDays, overrides.WindowDays)
	intField("OverlapDays", &cfg.OverlapDays, overrides.OverlapDays)
	intField("MaxWorkers", &cfg.MaxWorkers, overrides.MaxWorkers)
	strField("StoreCode", &cfg.StoreCode, overrides.StoreCode)

	if overrides.Force {
		cfg.Force = true
		meta.sources["Force"] = SourceOverride
	}
	if overrides.SMTPTLS {
		cfg.SMTPTLS = true
		meta.sources["SMTPTLS"] = SourceOverride
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
