package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

func TestLocalStore_PutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "dump.sql")
	content := []byte("BEGIN TRANSACTION;\nCOMMIT;\n")
	if err := os.WriteFile(srcPath, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ctx := context.Background()
	key := "dumps/2026/app.sql"

	if err := store.Put(ctx, srcPath, key); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected artifact to exist")
	}

	dstPath := filepath.Join(srcDir, "fetched.sql")
	if err := store.Get(ctx, key, dstPath); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read fetched file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	keys, err := store.List(ctx, "dumps/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("List = %v, want [%s]", keys, key)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	exists, _ = store.Exists(ctx, key)
	if exists {
		t.Error("expected artifact to be gone after delete")
	}
}

func TestLocalStore_GetNotFound(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	err = store.Get(context.Background(), "missing.csv", filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("expected ErrArtifactNotFound, got %v", err)
	}
	if lberrors.GetCategory(err) != lberrors.ErrCategoryStorage {
		t.Errorf("expected storage category, got %s", lberrors.GetCategory(err))
	}
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}
	if _, err := store.Exists(context.Background(), "../outside"); err == nil {
		t.Error("expected an error for a key outside the store")
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in       string
		bucket   string
		key      string
		remote   bool
		compress bool
		wantErr  bool
	}{
		{in: "out/dump.sql"},
		{in: "dump.sql.sz", compress: true},
		{in: "s3://backups/db/dump.sql", bucket: "backups", key: "db/dump.sql", remote: true},
		{in: "s3://backups/db/dump.sql.sz", bucket: "backups", key: "db/dump.sql.sz", remote: true, compress: true},
		{in: "s3://backups", wantErr: true},
		{in: "s3:///key", wantErr: true},
		{in: "s3://b/dir/", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		loc, err := ParseLocation(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLocation(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLocation(%q): %v", tt.in, err)
			continue
		}
		if loc.Bucket != tt.bucket || loc.Key != tt.key || loc.Remote() != tt.remote || loc.Compressed() != tt.compress {
			t.Errorf("ParseLocation(%q) = %+v", tt.in, loc)
		}
	}
}

func TestArtifacts_RoundTripThroughBucket(t *testing.T) {
	root := t.TempDir()
	a := NewArtifacts(LocalOpener(root))
	ctx := context.Background()

	for _, location := range []string{"s3://exports/app.sql", "s3://exports/app.sql.sz", filepath.Join(t.TempDir(), "nested", "app.csv.sz")} {
		w, err := a.Create(ctx, location)
		if err != nil {
			t.Fatalf("Create(%s): %v", location, err)
		}
		if _, err := io.WriteString(w, "id,name\n1,alice\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close(%s): %v", location, err)
		}

		r, err := a.Open(ctx, location)
		if err != nil {
			t.Fatalf("Open(%s): %v", location, err)
		}
		got, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != "id,name\n1,alice\n" {
			t.Errorf("%s: got %q", location, got)
		}
	}

	// compressed artifacts are not stored as plain text
	raw, err := os.ReadFile(filepath.Join(root, "exports", "app.sql.sz"))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if string(raw) == "id,name\n1,alice\n" {
		t.Error("expected snappy framed content")
	}
}

func TestArtifacts_NoStoreConfigured(t *testing.T) {
	a := NewArtifacts(nil)
	_, err := a.Create(context.Background(), "s3://bucket/key.sql")
	if lberrors.GetCategory(err) != lberrors.ErrCategoryPrecondition {
		t.Errorf("expected precondition error, got %v", err)
	}
}

func TestPrefetcher_Fetch(t *testing.T) {
	root := t.TempDir()
	a := NewArtifacts(LocalOpener(root))
	ctx := context.Background()

	for _, key := range []string{"a/one.csv", "b/one.csv"} {
		w, err := a.Create(ctx, "s3://in/"+key)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		io.WriteString(w, key)
		w.Close()
	}

	local := filepath.Join(t.TempDir(), "plain.csv")
	p := NewPrefetcher(a, 2, t.TempDir())
	res, err := p.Fetch(ctx, []string{"s3://in/a/one.csv", "s3://in/b/one.csv", "s3://in/missing.csv", local})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Downloads != 2 {
		t.Errorf("Downloads = %d, want 2", res.Downloads)
	}
	if res.LocalPaths[local] != local {
		t.Errorf("local path should pass through, got %q", res.LocalPaths[local])
	}
	if res.LocalPaths["s3://in/a/one.csv"] == res.LocalPaths["s3://in/b/one.csv"] {
		t.Error("same-named keys must not collide")
	}
	got, _ := os.ReadFile(res.LocalPaths["s3://in/b/one.csv"])
	if string(got) != "b/one.csv" {
		t.Errorf("staged content = %q", got)
	}
	if !errors.Is(res.Errors["s3://in/missing.csv"], ErrArtifactNotFound) {
		t.Errorf("expected not-found for missing key, got %v", res.Errors["s3://in/missing.csv"])
	}
}
