package session

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/litebrowse/litebrowse/internal/catalog"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/history"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// QueryResult is the outcome of a statement run from the query editor.
type QueryResult struct {
	HistoryID string `json:"history_id"`
	Kind      string `json:"kind"`

	// Read reports whether the statement returned a result grid
	Read bool `json:"read"`

	*types.ResultSet

	RowsAffected int64         `json:"rows_affected"`
	LastInsertID int64         `json:"last_insert_id,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Execute runs user-authored SQL untouched. Statements that return rows
// produce a grid; anything else reports the rows affected. Every attempt
// that reaches the engine is added to the history.
func (s *Session) Execute(ctx context.Context, query string) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, lberrors.NewUserInputError(lberrors.CodeEmptyQuery, "the query is empty")
	}

	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res := &QueryResult{Kind: sqlgen.StatementKind(query), Read: sqlgen.IsReadQuery(query)}
	start := time.Now()
	if res.Read {
		rows, queryErr := db.QueryContext(ctx, query)
		err = queryErr
		if err == nil {
			res.ResultSet, err = catalog.ScanAll(rows)
		}
	} else {
		r, execErr := db.ExecContext(ctx, query)
		err = execErr
		if err == nil {
			res.RowsAffected, _ = r.RowsAffected()
			res.LastInsertID, _ = r.LastInsertId()
		}
	}
	res.Duration = time.Since(start)
	s.record(res.Kind, "", res.Duration, err)

	entry := history.Entry{
		SQL:          query,
		Success:      err == nil,
		Duration:     res.Duration,
		RowsAffected: res.RowsAffected,
	}
	if res.ResultSet != nil {
		entry.RowsReturned = len(res.Rows)
	}
	if err != nil {
		entry.Error = err.Error()
	}
	res.HistoryID = s.history.Add(entry).ID

	if err != nil {
		return nil, lberrors.NewEngineError("query failed", err).
			WithDetails(map[string]interface{}{"history_id": res.HistoryID})
	}
	return res, nil
}

// History returns the most recent statements, newest first, capped at the
// configured history limit.
func (s *Session) History() []history.Entry {
	return s.history.Recent(s.opts.HistoryLimit)
}

// HistoryEntry returns one history entry.
func (s *Session) HistoryEntry(id string) (history.Entry, error) {
	e, ok := s.history.Get(id)
	if !ok {
		return history.Entry{}, lberrors.NewUserInputError(lberrors.CodeObjectNotFound, "no history entry "+id)
	}
	return e, nil
}

// SaveQuery writes query text to location (a local path or s3:// URL).
func (s *Session) SaveQuery(ctx context.Context, location, query string) error {
	w, err := s.opts.Artifacts.Create(ctx, location)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, query); err != nil {
		w.Close()
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to save query", err)
	}
	return w.Close()
}

// LoadQuery reads query text saved at location.
func (s *Session) LoadQuery(ctx context.Context, location string) (string, error) {
	r, err := s.opts.Artifacts.Open(ctx, location)
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", lberrors.NewStorageError(lberrors.CodeFileIO, "failed to load query", err)
	}
	return string(data), nil
}
