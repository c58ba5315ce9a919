// Package config provides configuration for the litebrowse CLI and server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LITEBROWSE_"

// Config holds the full litebrowse configuration.
type Config struct {
	// Database selects the file to open
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Browse configuration
	Browse BrowseConfig `json:"browse" yaml:"browse"`

	// Import configuration
	Import ImportConfig `json:"import" yaml:"import"`

	// Export configuration
	Export ExportConfig `json:"export" yaml:"export"`

	// Storage configuration for s3:// artifact locations
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Server configuration for litebrowse serve
	Server ServerConfig `json:"server" yaml:"server"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`
}

// DatabaseConfig holds connection settings.
type DatabaseConfig struct {
	// Path is a file path, or a libsql:// / http(s):// URL
	Path string `json:"path" yaml:"path"`

	// Driver overrides driver detection: sqlite3 or libsql
	Driver string `json:"driver" yaml:"driver"`

	// BusyTimeout is how long the engine waits on a locked file
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`

	// ForeignKeys enables foreign key enforcement
	ForeignKeys bool `json:"foreign_keys" yaml:"foreign_keys"`

	// ReadOnly opens the file read-only
	ReadOnly bool `json:"read_only" yaml:"read_only"`
}

// BrowseConfig holds table browsing and query editor settings.
type BrowseConfig struct {
	// PageSize is the default row limit of a table load, 0 loads everything
	PageSize int `json:"page_size" yaml:"page_size"`

	// HistoryLimit is how many entries the history view shows (default 50)
	HistoryLimit int `json:"history_limit" yaml:"history_limit"`

	// HistoryRetain caps the stored history, 0 keeps everything
	HistoryRetain int `json:"history_retain" yaml:"history_retain"`

	// RowIDFallback addresses key-less rows by rowid instead of a full-row match
	RowIDFallback bool `json:"rowid_fallback" yaml:"rowid_fallback"`

	// AllowMultiple lets a full-row update or delete touch several identical rows
	AllowMultiple bool `json:"allow_multiple" yaml:"allow_multiple"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// Inference is single, multi or sniff
	Inference string `json:"inference" yaml:"inference"`

	// SampleRows is the sample size of the multi and sniff strategies
	SampleRows int `json:"sample_rows" yaml:"sample_rows"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// Indent is the JSON indent, empty for compact output
	Indent string `json:"indent" yaml:"indent"`

	// Compress appends .sz and writes snappy-framed artifacts
	Compress bool `json:"compress" yaml:"compress"`

	// Concurrency bounds parallel artifact downloads
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type for s3:// locations: s3 or local
	Type string `json:"type" yaml:"type"`

	// Path is the local directory standing in for buckets (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// ServerConfig holds the network surface configuration.
type ServerConfig struct {
	// HTTPAddr is the HTTP API address
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`

	// GRPCAddr is the gRPC address
	GRPCAddr string `json:"grpc_addr" yaml:"grpc_addr"`

	// GRPCEnabled controls whether gRPC is served
	GRPCEnabled bool `json:"grpc_enabled" yaml:"grpc_enabled"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// DrainTimeout bounds in-flight request draining on shutdown
	DrainTimeout time.Duration `json:"drain_timeout" yaml:"drain_timeout"`

	// ShutdownTimeout bounds the whole shutdown sequence
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`

	// SeqURL enables the Seq sink
	SeqURL string `json:"seq_url" yaml:"seq_url"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			BusyTimeout: 5 * time.Second,
		},
		Browse: BrowseConfig{
			PageSize:     0,
			HistoryLimit: 50,
		},
		Import: ImportConfig{
			Inference:  "single",
			SampleRows: 100,
		},
		Export: ExportConfig{
			Indent:      "  ",
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Type: "s3",
		},
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			GRPCEnabled:     true,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			DrainTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", "sqlite3", "libsql":
	default:
		return fmt.Errorf("invalid database.driver: %s (must be sqlite3 or libsql)", c.Database.Driver)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}

	if c.Browse.PageSize < 0 {
		return fmt.Errorf("browse.page_size must not be negative, got %d", c.Browse.PageSize)
	}
	if c.Browse.HistoryLimit < 1 || c.Browse.HistoryLimit > 10000 {
		return fmt.Errorf("browse.history_limit must be between 1 and 10000, got %d", c.Browse.HistoryLimit)
	}
	if c.Browse.HistoryRetain < 0 {
		return fmt.Errorf("browse.history_retain must not be negative, got %d", c.Browse.HistoryRetain)
	}

	switch c.Import.Inference {
	case "single", "multi", "sniff":
	default:
		return fmt.Errorf("invalid import.inference: %s (must be single, multi, or sniff)", c.Import.Inference)
	}
	if c.Import.SampleRows < 1 {
		return fmt.Errorf("import.sample_rows must be positive, got %d", c.Import.SampleRows)
	}

	if c.Export.Concurrency < 1 || c.Export.Concurrency > 64 {
		return fmt.Errorf("export.concurrency must be between 1 and 64, got %d", c.Export.Concurrency)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage type is local")
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.GRPCEnabled && c.Server.GRPCAddr == "" {
		return fmt.Errorf("server.grpc_addr is required when gRPC is enabled")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}

// Load builds the configuration: defaults, then the optional file, then
// .env (when present in the working directory), then LITEBROWSE_* variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv applies environment overrides.
// Environment variables use the LITEBROWSE_ prefix.
func LoadFromEnv(cfg *Config) error {
	e := envReader{}

	// Database configuration
	e.str("DB", &cfg.Database.Path)
	e.str("DB_DRIVER", &cfg.Database.Driver)
	e.duration("DB_BUSY_TIMEOUT", &cfg.Database.BusyTimeout)
	e.boolean("DB_FOREIGN_KEYS", &cfg.Database.ForeignKeys)
	e.boolean("DB_READ_ONLY", &cfg.Database.ReadOnly)

	// Browse configuration
	e.integer("PAGE_SIZE", &cfg.Browse.PageSize)
	e.integer("HISTORY_LIMIT", &cfg.Browse.HistoryLimit)
	e.boolean("ROWID_FALLBACK", &cfg.Browse.RowIDFallback)
	e.boolean("ALLOW_MULTIPLE", &cfg.Browse.AllowMultiple)

	// Import/export configuration
	e.str("IMPORT_INFERENCE", &cfg.Import.Inference)
	e.integer("IMPORT_SAMPLE_ROWS", &cfg.Import.SampleRows)
	e.boolean("EXPORT_COMPRESS", &cfg.Export.Compress)

	// Storage configuration
	e.str("STORAGE_TYPE", &cfg.Storage.Type)
	e.str("STORAGE_PATH", &cfg.Storage.Path)
	e.str("S3_REGION", &cfg.Storage.S3.Region)
	e.str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	e.boolean("S3_USE_PATH_STYLE", &cfg.Storage.S3.UsePathStyle)

	// Server configuration
	e.str("HTTP_ADDR", &cfg.Server.HTTPAddr)
	e.str("GRPC_ADDR", &cfg.Server.GRPCAddr)
	e.boolean("GRPC_ENABLED", &cfg.Server.GRPCEnabled)

	// Log configuration
	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)
	e.str("SEQ_URL", &cfg.Log.SeqURL)

	return e.err
}

// envReader applies LITEBROWSE_ variables and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	return v, ok && v != ""
}

func (e *envReader) fail(name, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
	}
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = d
	}
}
