package session

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/litebrowse/litebrowse/internal/catalog"
	"github.com/litebrowse/litebrowse/internal/csvimport"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/export"
	"github.com/litebrowse/litebrowse/internal/rowid"
	"github.com/litebrowse/litebrowse/internal/storage"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// Schema returns every table with its columns plus indexes, views and triggers.
func (s *Session) Schema(ctx context.Context) (*types.Schema, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return catalog.New(db).Schema(ctx)
}

// DDL returns the stored definition of a table, index, view or trigger.
func (s *Session) DDL(ctx context.Context, name string) (string, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return catalog.New(db).DDL(ctx, name)
}

// DatabaseInfo summarizes the open database.
func (s *Session) DatabaseInfo(ctx context.Context) (*catalog.DatabaseInfo, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return catalog.New(db).DatabaseInfo(ctx)
}

// IntegrityCheck runs the engine's integrity check.
func (s *Session) IntegrityCheck(ctx context.Context) (*catalog.IntegrityReport, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return catalog.New(db).IntegrityCheck(ctx)
}

// Vacuum rebuilds the database file.
func (s *Session) Vacuum(ctx context.Context) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	start := time.Now()
	err = catalog.New(db).Vacuum(ctx)
	s.record("other", "", time.Since(start), err)
	return err
}

// DuplicateRows reports groups of identical rows in table.
func (s *Session) DuplicateRows(ctx context.Context, table string) ([]rowid.DuplicateGroup, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return catalog.New(db).DuplicateRows(ctx, table)
}

// target appends the compression suffix when exports are compressed.
func (s *Session) target(location string) string {
	if s.opts.Compress && !strings.HasSuffix(location, ".sz") {
		return location + ".sz"
	}
	return location
}

// ExportSQL writes a replayable dump of the whole database to location and
// returns the location written.
func (s *Session) ExportSQL(ctx context.Context, location string) (string, error) {
	location = s.target(location)
	db, release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	w, err := s.opts.Artifacts.Create(ctx, location)
	if err != nil {
		return "", err
	}
	if err := export.DumpSQL(ctx, db, w); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	s.logger.Info("database exported", "format", "sql", "location", location)
	return location, nil
}

// ImportSQL replays the SQL script at location. A failed script leaves the
// database unchanged.
func (s *Session) ImportSQL(ctx context.Context, location string) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	r, err := s.opts.Artifacts.Open(ctx, location)
	if err != nil {
		return err
	}
	defer r.Close()

	start := time.Now()
	err = export.ReplaySQL(ctx, db, r)
	s.record("other", "", time.Since(start), err)
	if err != nil {
		return err
	}
	s.logger.Info("SQL script imported", "location", location)
	return nil
}

// ExportCSV writes table as CSV to location and returns the location
// written and the row count.
func (s *Session) ExportCSV(ctx context.Context, table, location string) (string, int64, error) {
	location = s.target(location)
	db, release, err := s.acquire(ctx)
	if err != nil {
		return "", 0, err
	}
	defer release()

	w, err := s.opts.Artifacts.Create(ctx, location)
	if err != nil {
		return "", 0, err
	}
	n, err := export.WriteTableCSV(ctx, db, table, w)
	if err != nil {
		w.Close()
		return "", 0, err
	}
	if err := w.Close(); err != nil {
		return "", 0, err
	}
	s.logger.Info("table exported", "format", "csv", "table", table, "rows", n, "location", location)
	return location, n, nil
}

// ExportAllCSV writes one CSV file per table into dir.
func (s *Session) ExportAllCSV(ctx context.Context, dir string) ([]string, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	written, err := export.WriteAllCSV(ctx, db, s.opts.Artifacts, dir)
	if err != nil {
		return written, err
	}
	s.logger.Info("database exported", "format", "csv", "files", len(written), "location", dir)
	return written, nil
}

// ExportJSON writes table, or the whole database when table is empty, as
// JSON to location.
func (s *Session) ExportJSON(ctx context.Context, table, location string) (string, error) {
	location = s.target(location)
	db, release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	w, err := s.opts.Artifacts.Create(ctx, location)
	if err != nil {
		return "", err
	}
	opts := export.JSONOptions{Indent: s.opts.JSONIndent}
	if table == "" {
		err = export.WriteDatabaseJSON(ctx, db, w, opts)
	} else {
		err = export.WriteTableJSON(ctx, db, table, w, opts)
	}
	if err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	s.logger.Info("exported JSON", "table", table, "location", location)
	return location, nil
}

// ImportCSV loads the CSV file at location into table, creating the table
// when needed. An empty table name derives one from the file name.
func (s *Session) ImportCSV(ctx context.Context, location, table string) (*csvimport.Result, error) {
	if table == "" {
		table = TableNameFor(location)
	}
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.importCSV(ctx, db, location, table)
}

// ImportCSVFiles imports several CSV files, each into the table named after
// it. Remote files are downloaded in parallel first; imports then run one at
// a time. The first failure stops the batch.
func (s *Session) ImportCSVFiles(ctx context.Context, locations []string) ([]*csvimport.Result, error) {
	dir, err := os.MkdirTemp("", "litebrowse-import-*")
	if err != nil {
		return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create staging directory", err)
	}
	defer os.RemoveAll(dir)

	fetched, err := storage.NewPrefetcher(s.opts.Artifacts, s.opts.Concurrency, dir).Fetch(ctx, locations)
	if err != nil {
		return nil, err
	}
	for _, loc := range locations {
		if err := fetched.Errors[loc]; err != nil {
			return nil, err
		}
	}
	s.logger.Debug("import files staged", "files", len(locations), "downloads", fetched.Downloads)

	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	results := make([]*csvimport.Result, 0, len(locations))
	for _, loc := range locations {
		res, err := s.importCSV(ctx, db, fetched.LocalPaths[loc], TableNameFor(loc))
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Session) importCSV(ctx context.Context, db csvimport.TxBeginner, location, table string) (*csvimport.Result, error) {
	r, err := s.opts.Artifacts.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	start := time.Now()
	res, err := csvimport.NewImporter(db, s.opts.Inferencer, s.logger).Import(ctx, r, table)
	s.record("insert", table, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CSV imported", "table", res.Table, "rows", res.Rows, "location", location)
	return res, nil
}

// TableNameFor derives a table name from a file location: the base name
// without compression and format suffixes, normalized like a CSV header.
func TableNameFor(location string) string {
	base := path.Base(strings.ReplaceAll(location, "\\", "/"))
	base = strings.TrimSuffix(base, ".sz")
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return csvimport.NormalizeName(base)
}
