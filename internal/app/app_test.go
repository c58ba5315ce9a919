package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	grpcapi "github.com/litebrowse/litebrowse/internal/api/grpc"
	"github.com/litebrowse/litebrowse/internal/config"
	"github.com/litebrowse/litebrowse/internal/logging"
)

const (
	timeout = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "served.db")
	require.NoError(t, os.WriteFile(dbPath, nil, 0644))

	cfg := config.DefaultConfig()
	cfg.Database.Path = dbPath
	cfg.Storage.Type = "local"
	cfg.Storage.Path = filepath.Join(dir, "buckets")
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	return cfg
}

func TestAppServesHTTPAndGRPC(t *testing.T) {
	a, err := New(testConfig(t), logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))

	resp, err := http.Post("http://"+a.HTTPAddr()+"/v1/query", "application/json",
		strings.NewReader(`{"sql":"CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, err = http.Get("http://" + a.HTTPAddr() + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, true, health["open"])

	conn, err := grpc.NewClient(a.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, grpcapi.MethodListTables, &structpb.Struct{}, out))
	assert.Equal(t, []any{"kv"}, out.AsMap()["tables"])

	kinds := a.Stats().Kinds()
	require.NotEmpty(t, kinds)

	require.NoError(t, a.Stop(ctx))
	assert.False(t, a.Session().IsOpen())
	require.NoError(t, a.Stop(ctx), "stopping twice is a no-op")
}

func TestAppStartFailsOnMissingDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing.db")
	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)

	require.Error(t, a.Start(context.Background()))
	assert.Empty(t, a.HTTPAddr())

	// a failed start leaves the app restartable
	cfg.Database.Path = ""
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.HTTPAddr = ""
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.GRPCEnabled = false
	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Session().IsOpen() }, timeout, tick)
	cancel()
	require.NoError(t, <-done)
	assert.False(t, a.Session().IsOpen())
}
