// Package grpc exposes a read-mostly subset of the browser over gRPC. Messages
// are google.protobuf.Struct values, so no generated stubs are needed.
package grpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "litebrowse.v1.Browser"

// Full method names.
const (
	MethodListTables = "/" + ServiceName + "/ListTables"
	MethodQuery      = "/" + ServiceName + "/Query"
	MethodTableInfo  = "/" + ServiceName + "/TableInfo"
)

// BrowserServer is the server API of the Browser service.
type BrowserServer interface {
	ListTables(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TableInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(BrowserServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BrowserServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BrowserServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the Browser service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BrowserServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListTables", Handler: unaryHandler(MethodListTables, BrowserServer.ListTables)},
		{MethodName: "Query", Handler: unaryHandler(MethodQuery, BrowserServer.Query)},
		{MethodName: "TableInfo", Handler: unaryHandler(MethodTableInfo, BrowserServer.TableInfo)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "litebrowse/v1/browser.proto",
}

// RegisterBrowserServer registers srv on s.
func RegisterBrowserServer(s grpc.ServiceRegistrar, srv BrowserServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Server implements BrowserServer on top of a session.
type Server struct {
	sess   *session.Session
	logger *slog.Logger
}

// NewServer creates a gRPC browser server.
func NewServer(sess *session.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{sess: sess, logger: logger}
}

// ListTables returns {"tables": [...]}. An optional "filter" field narrows
// the list.
func (s *Server) ListTables(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		tables []string
		err    error
	)
	if term := stringField(req, "filter"); term != "" {
		tables, err = s.sess.FilterTables(ctx, term)
	} else {
		tables, err = s.sess.Tables(ctx)
	}
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	names := make([]any, len(tables))
	for i, t := range tables {
		names[i] = t
	}
	return structpb.NewStruct(map[string]any{"tables": names})
}

// Query runs the "sql" field and returns the grid or the rows affected.
func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.sess.Execute(ctx, stringField(req, "sql"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := map[string]any{
		"history_id":    res.HistoryID,
		"kind":          res.Kind,
		"read":          res.Read,
		"rows_affected": res.RowsAffected,
		"duration_ms":   res.Duration.Milliseconds(),
	}
	if res.ResultSet != nil {
		cols := make([]any, len(res.Columns))
		for i, c := range res.Columns {
			cols[i] = c
		}
		rows := make([]any, len(res.Rows))
		for i, r := range res.Rows {
			cells := make([]any, len(r))
			for j, v := range r {
				cells[j] = cellValue(v)
			}
			rows[i] = cells
		}
		out["columns"] = cols
		out["rows"] = rows
	}
	return structpb.NewStruct(out)
}

// TableInfo returns the columns and row count of the "table" field.
func (s *Server) TableInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	table := stringField(req, "table")
	if table == "" {
		return nil, status.Error(codes.InvalidArgument, "table is required")
	}
	info, err := s.sess.TableInfo(ctx, table)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	cols := make([]any, len(info.Columns))
	for i, c := range info.Columns {
		col := map[string]any{
			"name":        c.Name,
			"type":        c.DeclaredType,
			"not_null":    c.NotNull,
			"primary_key": c.IsPrimaryKey,
		}
		if c.DefaultValue != nil {
			col["default"] = *c.DefaultValue
		}
		cols[i] = col
	}
	return structpb.NewStruct(map[string]any{
		"name":      info.Name,
		"columns":   cols,
		"row_count": info.RowCount,
	})
}

// toStatus converts a session error to a gRPC status, logging it with the
// caller's request ID.
func (s *Server) toStatus(ctx context.Context, err error) error {
	s.logger.Warn("grpc request failed", "request_id", extractRequestID(ctx), "error", err)
	return status.Error(CodeFor(err), err.Error())
}

// CodeFor maps an error to its gRPC status code.
func CodeFor(err error) codes.Code {
	if lberrors.GetCode(err) == lberrors.CodeObjectNotFound {
		return codes.NotFound
	}
	switch lberrors.GetCategory(err) {
	case lberrors.ErrCategoryUserInput, lberrors.ErrCategoryValidation, lberrors.ErrCategoryEngine:
		return codes.InvalidArgument
	case lberrors.ErrCategoryPrecondition:
		return codes.FailedPrecondition
	case lberrors.ErrCategoryStorage:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

// cellValue makes v representable as a protobuf Value: blobs become base64
// strings, times RFC 3339 strings.
func cellValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case nil, string, bool, int64, float64:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}
