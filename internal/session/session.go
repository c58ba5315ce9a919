// Package session holds the one open database and every operation a front
// end performs on it. All engine calls go through a single-slot gate, so
// front ends serving many goroutines never have two statements in flight.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"golang.org/x/sync/semaphore"

	"github.com/litebrowse/litebrowse/internal/catalog"
	"github.com/litebrowse/litebrowse/internal/config"
	"github.com/litebrowse/litebrowse/internal/csvimport"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/history"
	"github.com/litebrowse/litebrowse/internal/observability"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/internal/storage"
)

// Driver names registered by the engine drivers.
const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// Options configures a session.
type Options struct {
	// Driver forces a driver; empty picks libsql for libsql:// and http(s)://
	// locations and sqlite3 otherwise
	Driver string

	// BusyTimeout is how long the engine waits on a locked file
	BusyTimeout time.Duration

	// ForeignKeys enables foreign key enforcement
	ForeignKeys bool

	// ReadOnly opens files read-only
	ReadOnly bool

	// PageSize is the default row limit of LoadTable, 0 means unlimited
	PageSize int

	// HistoryLimit caps the History view (default 50)
	HistoryLimit int

	// HistoryRetain caps the stored history, 0 keeps everything
	HistoryRetain int

	// UseRowID addresses key-less rows by rowid when it was fetched
	UseRowID bool

	// AllowMultiple lets a full-row update or delete touch several identical rows
	AllowMultiple bool

	// Inferencer types imported CSV columns, SingleSample when nil
	Inferencer csvimport.Inferencer

	// Artifacts resolves import/export locations; local paths only when nil
	Artifacts *storage.Artifacts

	// Compress writes exports snappy framed (adds .sz)
	Compress bool

	// JSONIndent is the export indent
	JSONIndent string

	// Concurrency bounds parallel downloads of multi-file imports
	Concurrency int

	// Stats receives one record per statement, may be nil
	Stats *observability.QueryStats

	// Logger for statement and lifecycle logging
	Logger *slog.Logger
}

// OptionsFromConfig derives session options from cfg.
func OptionsFromConfig(cfg *config.Config, stats *observability.QueryStats, logger *slog.Logger) (Options, error) {
	inf, err := csvimport.NewInferencer(cfg.Import.Inference, cfg.Import.SampleRows)
	if err != nil {
		return Options{}, err
	}

	var opener storage.StoreOpener
	switch cfg.Storage.Type {
	case "local":
		opener = storage.LocalOpener(cfg.Storage.Path)
	default:
		s3cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3cfg.Region = cfg.Storage.S3.Region
		}
		s3cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3cfg.UsePathStyle = cfg.Storage.S3.UsePathStyle
		opener = storage.S3Opener(s3cfg)
	}

	return Options{
		Driver:        cfg.Database.Driver,
		BusyTimeout:   cfg.Database.BusyTimeout,
		ForeignKeys:   cfg.Database.ForeignKeys,
		ReadOnly:      cfg.Database.ReadOnly,
		PageSize:      cfg.Browse.PageSize,
		HistoryLimit:  cfg.Browse.HistoryLimit,
		HistoryRetain: cfg.Browse.HistoryRetain,
		UseRowID:      cfg.Browse.RowIDFallback,
		AllowMultiple: cfg.Browse.AllowMultiple,
		Inferencer:    inf,
		Artifacts:     storage.NewArtifacts(opener),
		Compress:      cfg.Export.Compress,
		JSONIndent:    cfg.Export.Indent,
		Concurrency:   cfg.Export.Concurrency,
		Stats:         stats,
		Logger:        logger,
	}, nil
}

// Session is the explicit replacement for process-wide browser state: the
// open connection, its location, the selected table and the query history.
type Session struct {
	opts    Options
	logger  *slog.Logger
	gate    *semaphore.Weighted
	history *history.History

	mu      sync.RWMutex
	db      *sql.DB
	path    string
	driver  string
	current string
}

// New creates a session with no database open.
func New(opts Options) *Session {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = history.DefaultLimit
	}
	if opts.Inferencer == nil {
		opts.Inferencer = csvimport.SingleSample{}
	}
	if opts.Artifacts == nil {
		opts.Artifacts = storage.NewArtifacts(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		opts:    opts,
		logger:  opts.Logger,
		gate:    semaphore.NewWeighted(1),
		history: history.New(opts.HistoryRetain),
	}
}

// Open opens the database at path, closing any database already open. A
// local file must exist; use Create for new files.
func (s *Session) Open(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return lberrors.NewUserInputError(lberrors.CodeMissingArgument, "no database path given")
	}
	driver := s.driverFor(path)
	if driver == DriverSQLite {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return lberrors.NewStorageError(lberrors.CodeObjectNotFound, "database file does not exist: "+path, err)
			}
			return lberrors.NewStorageError(lberrors.CodeFileIO, "cannot access "+path, err)
		}
	}
	return s.open(ctx, driver, path)
}

// Create creates a new database file at path and opens it. It fails when the
// file already exists.
func (s *Session) Create(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return lberrors.NewUserInputError(lberrors.CodeMissingArgument, "no database path given")
	}
	if s.driverFor(path) != DriverSQLite {
		return lberrors.NewPreconditionError(lberrors.CodeInvalidFormat, "only local database files can be created")
	}
	if _, err := os.Stat(path); err == nil {
		return lberrors.NewPreconditionError(lberrors.CodeAlreadyExists, "database file already exists: "+path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create "+path, err)
	}
	f.Close()

	if err := s.open(ctx, DriverSQLite, path); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func (s *Session) open(ctx context.Context, driver, path string) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	db, err := sql.Open(driver, s.dsn(driver, path))
	if err != nil {
		return lberrors.NewEngineError("failed to open "+path, err)
	}
	db.SetMaxOpenConns(1)

	// sqlite3 defers reading the header until the first statement
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return lberrors.NewEngineError("failed to open "+path, err)
	}

	s.mu.Lock()
	old := s.db
	s.db, s.path, s.driver, s.current = db, path, driver, ""
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	s.logger.Info("database opened", "path", path, "driver", driver, "objects", n)
	return nil
}

// Close closes the open database. It waits for an in-flight statement.
func (s *Session) Close() error {
	if err := s.gate.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	s.mu.Lock()
	db, path := s.db, s.path
	s.db, s.path, s.driver, s.current = nil, "", "", ""
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return lberrors.NewEngineError("failed to close "+path, err)
	}
	s.logger.Info("database closed", "path", path)
	return nil
}

// Path returns the open database location, empty when none is open.
func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// IsOpen reports whether a database is open.
func (s *Session) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Options returns the options the session was created with.
func (s *Session) Options() Options {
	return s.opts
}

func (s *Session) driverFor(path string) string {
	if s.opts.Driver != "" {
		return s.opts.Driver
	}
	lower := strings.ToLower(path)
	for _, scheme := range []string{"libsql://", "http://", "https://", "wss://", "ws://"} {
		if strings.HasPrefix(lower, scheme) {
			return DriverLibSQL
		}
	}
	return DriverSQLite
}

func (s *Session) dsn(driver, path string) string {
	if driver != DriverSQLite {
		return path
	}
	q := url.Values{}
	if s.opts.BusyTimeout > 0 {
		q.Set("_busy_timeout", fmt.Sprint(s.opts.BusyTimeout.Milliseconds()))
	}
	if s.opts.ForeignKeys {
		q.Set("_foreign_keys", "on")
	}
	if s.opts.ReadOnly {
		q.Set("mode", "ro")
	}
	if len(q) == 0 {
		return path
	}
	return "file:" + path + "?" + q.Encode()
}

// acquire takes the gate and returns the open connection. The caller must
// call release exactly once.
func (s *Session) acquire(ctx context.Context) (db *sql.DB, release func(), err error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	db = s.db
	s.mu.RUnlock()
	if db == nil {
		s.gate.Release(1)
		return nil, nil, lberrors.NewPreconditionError(lberrors.CodeNoDatabase, "no database is open")
	}
	return db, func() { s.gate.Release(1) }, nil
}

// exec runs one generated statement and records it.
func (s *Session) exec(ctx context.Context, db *sql.DB, table string, st sqlgen.Statement) (sql.Result, error) {
	start := time.Now()
	res, err := db.ExecContext(ctx, st.SQL, st.Args...)
	s.record(sqlgen.StatementKind(st.SQL), table, time.Since(start), err)
	if err != nil {
		return nil, lberrors.NewEngineError("statement failed", err)
	}
	return res, nil
}

func (s *Session) record(kind, table string, d time.Duration, err error) {
	if s.opts.Stats != nil {
		s.opts.Stats.RecordStatement(strings.ToUpper(kind), table, d, err != nil)
	}
	if err != nil {
		s.logger.Warn("statement failed", "kind", kind, "table", table, "duration", d, "error", err)
		return
	}
	s.logger.Debug("statement executed", "kind", kind, "table", table, "duration", d)
}

// Tables lists every table.
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return catalog.New(db).ListTables(ctx)
}

// FilterTables lists the tables whose name contains term, ignoring case.
func (s *Session) FilterTables(ctx context.Context, term string) ([]string, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return catalog.New(db).FilterTables(ctx, term)
}

// SelectTable makes table the current table.
func (s *Session) SelectTable(ctx context.Context, table string) error {
	tables, err := s.Tables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if t == table {
			s.mu.Lock()
			s.current = table
			s.mu.Unlock()
			return nil
		}
	}
	return lberrors.New(lberrors.ErrCategoryEngine, lberrors.CodeObjectNotFound, "no such table: "+table)
}

// CurrentTable returns the selected table, empty when none is selected.
func (s *Session) CurrentTable() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) currentTable() (string, error) {
	t := s.CurrentTable()
	if t == "" {
		return "", lberrors.NewUserInputError(lberrors.CodeNoTableSelected, "no table selected")
	}
	return t, nil
}
