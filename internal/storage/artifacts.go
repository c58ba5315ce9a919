package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

// StoreOpener returns the store that holds bucket.
type StoreOpener func(ctx context.Context, bucket string) (ArtifactStore, error)

// S3Opener opens S3 buckets with cfg.
func S3Opener(cfg S3Config) StoreOpener {
	return func(ctx context.Context, bucket string) (ArtifactStore, error) {
		return NewS3Store(ctx, bucket, cfg)
	}
}

// LocalOpener maps every bucket to a directory under root.
func LocalOpener(root string) StoreOpener {
	return func(_ context.Context, bucket string) (ArtifactStore, error) {
		return NewLocalStore(filepath.Join(root, bucket))
	}
}

// Artifacts opens readers and writers for artifact locations. Remote
// artifacts are staged through a temporary file; names ending in .sz are
// snappy framed on the way in and out.
type Artifacts struct {
	open StoreOpener

	mu     sync.Mutex
	stores map[string]ArtifactStore
}

// NewArtifacts creates an artifact resolver. A nil opener leaves only local
// paths usable.
func NewArtifacts(open StoreOpener) *Artifacts {
	return &Artifacts{open: open, stores: make(map[string]ArtifactStore)}
}

// Store returns the (cached) store for bucket.
func (a *Artifacts) Store(ctx context.Context, bucket string) (ArtifactStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if st, ok := a.stores[bucket]; ok {
		return st, nil
	}
	if a.open == nil {
		return nil, lberrors.NewPreconditionError(lberrors.CodeMissingArgument,
			"object storage is not configured; cannot reach bucket "+bucket)
	}
	st, err := a.open(ctx, bucket)
	if err != nil {
		return nil, err
	}
	a.stores[bucket] = st
	return st, nil
}

// Create opens a writer for location. The artifact is complete only after
// Close returns nil.
func (a *Artifacts) Create(ctx context.Context, location string) (io.WriteCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	w := &artifactWriter{ctx: ctx, loc: loc}
	if loc.Remote() {
		if w.store, err = a.Store(ctx, loc.Bucket); err != nil {
			return nil, err
		}
		if w.file, err = os.CreateTemp("", "litebrowse-upload-*"); err != nil {
			return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create staging file", err)
		}
	} else {
		if dir := filepath.Dir(loc.Raw); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create "+dir, err)
			}
		}
		if w.file, err = os.Create(loc.Raw); err != nil {
			return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create "+loc.Raw, err)
		}
	}

	w.out = w.file
	if loc.Compressed() {
		w.snappy = snappy.NewBufferedWriter(w.file)
		w.out = w.snappy
	}
	return w, nil
}

// Open opens a reader for location.
func (a *Artifacts) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	path := loc.Raw
	var staged string
	if loc.Remote() {
		st, err := a.Store(ctx, loc.Bucket)
		if err != nil {
			return nil, err
		}
		tmp, err := os.CreateTemp("", "litebrowse-download-*")
		if err != nil {
			return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create staging file", err)
		}
		tmp.Close()
		if err := st.Get(ctx, loc.Key, tmp.Name()); err != nil {
			os.Remove(tmp.Name())
			return nil, err
		}
		path, staged = tmp.Name(), tmp.Name()
	}

	f, err := os.Open(path)
	if err != nil {
		if staged != "" {
			os.Remove(staged)
		}
		if os.IsNotExist(err) {
			return nil, notFound(path)
		}
		return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to open "+path, err)
	}

	r := &artifactReader{file: f, in: f, staged: staged}
	if loc.Compressed() {
		r.in = snappy.NewReader(f)
	}
	return r, nil
}

type artifactWriter struct {
	ctx    context.Context
	loc    Location
	store  ArtifactStore
	file   *os.File
	snappy *snappy.Writer
	out    io.Writer
	closed bool
}

func (w *artifactWriter) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

func (w *artifactWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.snappy != nil {
		err = w.snappy.Close()
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if w.store != nil {
			os.Remove(w.file.Name())
		}
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write "+w.loc.Raw, err)
	}

	if w.store == nil {
		return nil
	}
	defer os.Remove(w.file.Name())
	return w.store.Put(w.ctx, w.file.Name(), w.loc.Key)
}

type artifactReader struct {
	file   *os.File
	in     io.Reader
	staged string
}

func (r *artifactReader) Read(p []byte) (int, error) {
	return r.in.Read(p)
}

func (r *artifactReader) Close() error {
	err := r.file.Close()
	if r.staged != "" {
		os.Remove(r.staged)
	}
	return err
}
