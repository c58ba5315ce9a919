package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

// LocalStore implements ArtifactStore on a directory. With storage type
// local, s3:// locations resolve to <path>/<bucket>/<key> so dumps can be
// staged offline; tests use it in place of S3.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a store rooted at basePath.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create storage directory", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Put copies localPath to key.
func (l *LocalStore) Put(ctx context.Context, localPath, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := copyFile(localPath, dest); err != nil {
		return lberrors.NewStorageError(lberrors.CodeUploadFailed, "failed to store "+key, err)
	}
	return nil
}

// Get copies key to localPath.
func (l *LocalStore) Get(ctx context.Context, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return notFound(key)
	}
	if err := copyFile(src, localPath); err != nil {
		return lberrors.NewStorageError(lberrors.CodeDownloadFailed, "failed to fetch "+key, err)
	}
	return nil
}

// Exists checks if key exists.
func (l *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := l.fullPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to stat "+key, err)
	}
	return true, nil
}

// Delete removes key.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to delete "+key, err)
	}
	return nil
}

// List returns keys under prefix, slash separated.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.Walk(l.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to list artifacts", err)
	}
	return keys, nil
}

// fullPath maps key into the base directory, refusing keys that escape it.
func (l *LocalStore) fullPath(key string) (string, error) {
	p := filepath.Join(l.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.basePath, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", lberrors.NewUserInputError(lberrors.CodeInvalidFormat, "invalid artifact key "+key)
	}
	return p, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
