// Package storage moves export and import artifacts (SQL dumps, CSV and JSON
// files) between the local filesystem and object storage.
package storage

import (
	"context"
	"errors"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

// ErrArtifactNotFound is returned, wrapped, when a key does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore abstracts one bucket of object storage.
// Implementations include S3 and a local directory.
type ArtifactStore interface {
	// Put uploads the file at localPath under key.
	Put(ctx context.Context, localPath, key string) error

	// Get downloads key into localPath.
	Get(ctx context.Context, key, localPath string) error

	// Exists checks if key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// MultipartConfig holds configuration for multipart uploads.
type MultipartConfig struct {
	// PartSize is the size of each part in bytes (default: 8MB).
	PartSize int64
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartConfig {
	return MultipartConfig{PartSize: 8 * 1024 * 1024}
}

// Location is where an artifact lives: a local path or an s3:// URL.
type Location struct {
	Raw    string
	Bucket string
	Key    string
}

// ParseLocation splits s3://bucket/key into its parts. Anything else is a
// local path.
func ParseLocation(s string) (Location, error) {
	loc := Location{Raw: s}
	if !strings.HasPrefix(s, "s3://") {
		if s == "" {
			return loc, lberrors.NewUserInputError(lberrors.CodeMissingArgument, "artifact path is empty")
		}
		return loc, nil
	}
	rest := strings.TrimPrefix(s, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return loc, lberrors.NewUserInputError(lberrors.CodeInvalidFormat,
			"invalid S3 location "+s+": expected s3://bucket/key")
	}
	loc.Bucket = bucket
	loc.Key = key
	return loc, nil
}

// Remote reports whether the location is in object storage.
func (l Location) Remote() bool {
	return l.Bucket != ""
}

// Compressed reports whether the artifact is snappy framed.
func (l Location) Compressed() bool {
	return strings.HasSuffix(l.Raw, ".sz")
}

func (l Location) String() string {
	return l.Raw
}

func notFound(key string) error {
	return lberrors.NewStorageError(lberrors.CodeObjectNotFound, "artifact "+key+" not found", ErrArtifactNotFound)
}
