// Package http serves the open database over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

type contextKey string

// requestIDKey is the context key for the request ID.
const requestIDKey contextKey = "request_id"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Category  string                 `json:"category,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// RequestIDMiddleware adds a unique request_id to each request.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLogger logs one line per request at info, or warn for failures.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		HandleError:  true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	if lberrors.GetCode(err) == lberrors.CodeObjectNotFound {
		return http.StatusNotFound
	}
	switch lberrors.GetCategory(err) {
	case lberrors.ErrCategoryUserInput, lberrors.ErrCategoryValidation, lberrors.ErrCategoryPrecondition:
		return http.StatusBadRequest
	case lberrors.ErrCategoryEngine:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler writes err as an ErrorResponse.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	resp := ErrorResponse{
		Error:     err.Error(),
		RequestID: GetRequestID(c.Request().Context()),
	}

	status := StatusFor(err)
	var he *echo.HTTPError
	var be *lberrors.BrowserError
	switch {
	case errors.As(err, &he):
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			resp.Error = msg
		}
	case errors.As(err, &be):
		resp.Category = string(be.Category)
		resp.Code = be.Code
		resp.Details = be.Details
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(status)
		return
	}
	c.JSON(status, resp)
}

// decodeJSON decodes the request body into v. Numbers inside untyped
// values stay json.Number so integers survive the round trip.
func decodeJSON(c echo.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return lberrors.NewUserInputError(lberrors.CodeInvalidFormat, "invalid request body: "+err.Error())
	}
	return nil
}

// cellValues converts decoded JSON cells to engine values: integral numbers
// become int64, other numbers float64.
func cellValues(raw []any) []any {
	out := make([]any, len(raw))
	for i, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			out[i] = v
			continue
		}
		if iv, err := n.Int64(); err == nil {
			out[i] = iv
		} else if fv, err := n.Float64(); err == nil {
			out[i] = fv
		} else {
			out[i] = n.String()
		}
	}
	return out
}
