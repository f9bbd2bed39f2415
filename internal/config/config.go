package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// MaxRawBytes is the maximum canonical payload size accepted at capture.
	MaxRawBytes int `json:"max_raw_bytes"`

	// CompressThresholdBytes is the raw size below which payloads are stored
	// as-is instead of compressed. 0 means use the codec default.
	CompressThresholdBytes int `json:"compress_threshold_bytes,omitempty"`

	// WorkerCount bounds the compression worker pool. 0 means NumCPU.
	WorkerCount int `json:"worker_count,omitempty"`

	// MaxSnapshots caps active (non-deleted) snapshots per owner.
	// 0 means unlimited.
	MaxSnapshots int `json:"max_snapshots,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultMaxRawBytes caps raw payloads at 50 MiB.
const DefaultMaxRawBytes = 50 * 1024 * 1024

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRawBytes: DefaultMaxRawBytes,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.ctxkeep.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.MaxRawBytes = overlay.MaxRawBytes
	if result.MaxRawBytes == 0 {
		result.MaxRawBytes = base.MaxRawBytes
	}

	result.CompressThresholdBytes = overlay.CompressThresholdBytes
	if result.CompressThresholdBytes == 0 {
		result.CompressThresholdBytes = base.CompressThresholdBytes
	}

	result.WorkerCount = overlay.WorkerCount
	if result.WorkerCount == 0 {
		result.WorkerCount = base.WorkerCount
	}

	result.MaxSnapshots = overlay.MaxSnapshots
	if result.MaxSnapshots == 0 {
		result.MaxSnapshots = base.MaxSnapshots
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
