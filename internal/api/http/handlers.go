package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/history"
	"github.com/litebrowse/litebrowse/internal/session"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// TablesResponse lists table names.
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// InsertRequest is the body of POST /v1/tables/:name/rows.
type InsertRequest struct {
	Values []any `json:"values"`
}

// InsertResponse reports the new row's rowid.
type InsertResponse struct {
	RowID int64 `json:"rowid"`
}

// EditRequest is the body of PUT and DELETE /v1/tables/:name/rows. Values
// is ignored for deletes.
type EditRequest struct {
	Snapshot      types.RowSnapshot `json:"snapshot"`
	Values        []any             `json:"values,omitempty"`
	AllowMultiple bool              `json:"allow_multiple,omitempty"`
}

// EditResponse reports how many rows an edit changed.
type EditResponse struct {
	RowsAffected int64 `json:"rows_affected"`
}

// QueryRequest represents a query request.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// HistoryResponse lists history entries, newest first.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// DDLResponse carries an object's stored definition.
type DDLResponse struct {
	Name string `json:"name"`
	DDL  string `json:"ddl"`
}

// Handler serves the API routes from one session.
type Handler struct {
	sess *session.Session
}

// NewHandler creates a handler for sess.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{sess: sess}
}

// ListTables handles GET /v1/tables. The optional q parameter filters names.
func (h *Handler) ListTables(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		tables []string
		err    error
	)
	if q := c.QueryParam("q"); q != "" {
		tables, err = h.sess.FilterTables(ctx, q)
	} else {
		tables, err = h.sess.Tables(ctx)
	}
	if err != nil {
		return err
	}
	if tables == nil {
		tables = []string{}
	}
	return c.JSON(http.StatusOK, TablesResponse{Tables: tables})
}

// TableInfo handles GET /v1/tables/:name.
func (h *Handler) TableInfo(c echo.Context) error {
	info, err := h.sess.TableInfo(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// Rows handles GET /v1/tables/:name/rows with filter, sort, desc, limit
// and offset query parameters.
func (h *Handler) Rows(c echo.Context) error {
	opts := sqlgen.SelectOptions{
		Filter:     c.QueryParam("filter"),
		SortColumn: c.QueryParam("sort"),
	}
	var err error
	if opts.Desc, err = boolParam(c, "desc"); err != nil {
		return err
	}
	if opts.Limit, err = intParam(c, "limit"); err != nil {
		return err
	}
	if opts.Offset, err = intParam(c, "offset"); err != nil {
		return err
	}

	data, err := h.sess.Rows(c.Request().Context(), c.Param("name"), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

// InsertRow handles POST /v1/tables/:name/rows.
func (h *Handler) InsertRow(c echo.Context) error {
	var req InsertRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	id, err := h.sess.Insert(c.Request().Context(), c.Param("name"), cellValues(req.Values))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, InsertResponse{RowID: id})
}

// UpdateRow handles PUT /v1/tables/:name/rows.
func (h *Handler) UpdateRow(c echo.Context) error {
	var req EditRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	req.Snapshot.Values = cellValues(req.Snapshot.Values)
	n, err := h.sess.Update(c.Request().Context(), c.Param("name"), req.Snapshot,
		cellValues(req.Values), session.EditOptions{AllowMultiple: req.AllowMultiple})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, EditResponse{RowsAffected: n})
}

// DeleteRow handles DELETE /v1/tables/:name/rows.
func (h *Handler) DeleteRow(c echo.Context) error {
	var req EditRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	req.Snapshot.Values = cellValues(req.Snapshot.Values)
	n, err := h.sess.Delete(c.Request().Context(), c.Param("name"), req.Snapshot,
		session.EditOptions{AllowMultiple: req.AllowMultiple})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, EditResponse{RowsAffected: n})
}

// Query handles POST /v1/query. Any statement is accepted and recorded in
// the history.
func (h *Handler) Query(c echo.Context) error {
	var req QueryRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	res, err := h.sess.Execute(c.Request().Context(), req.SQL)
	if err != nil {
		return err
	}
	if res.Read && res.Rows == nil {
		res.Rows = [][]any{}
	}
	return c.JSON(http.StatusOK, res)
}

// History handles GET /v1/history.
func (h *Handler) History(c echo.Context) error {
	return c.JSON(http.StatusOK, HistoryResponse{Entries: h.sess.History()})
}

// Schema handles GET /v1/schema.
func (h *Handler) Schema(c echo.Context) error {
	schema, err := h.sess.Schema(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schema)
}

// DDL handles GET /v1/ddl/:name.
func (h *Handler) DDL(c echo.Context) error {
	name := c.Param("name")
	ddl, err := h.sess.DDL(c.Request().Context(), name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DDLResponse{Name: name, DDL: ddl})
}

// Info handles GET /v1/info.
func (h *Handler) Info(c echo.Context) error {
	info, err := h.sess.DatabaseInfo(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// Integrity handles POST /v1/integrity.
func (h *Handler) Integrity(c echo.Context) error {
	report, err := h.sess.IntegrityCheck(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// Health handles GET /healthz.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"database": h.sess.Path(),
		"open":     h.sess.IsOpen(),
	})
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, lberrors.NewUserInputError(lberrors.CodeInvalidFormat, name+" must be a non-negative integer")
	}
	return n, nil
}

func boolParam(c echo.Context, name string) (bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, lberrors.NewUserInputError(lberrors.CodeInvalidFormat, name+" must be a boolean")
	}
	return b, nil
}
