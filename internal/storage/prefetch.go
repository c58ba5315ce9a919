package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

// Prefetcher downloads several remote artifacts in parallel so a
// multi-file import does not wait on each transfer in turn. Local paths
// pass through untouched.
type Prefetcher struct {
	artifacts   *Artifacts
	concurrency int
	dir         string
}

// FetchResult maps each requested location to a local path or an error.
type FetchResult struct {
	LocalPaths map[string]string
	Errors     map[string]error
	Downloads  int
}

// NewPrefetcher creates a prefetcher staging files in dir.
// concurrency: maximum number of parallel downloads
func NewPrefetcher(artifacts *Artifacts, concurrency int, dir string) *Prefetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Prefetcher{artifacts: artifacts, concurrency: concurrency, dir: dir}
}

// Fetch stages every remote location. The staged file keeps the key's base
// name so compressed artifacts are still recognized by suffix.
func (p *Prefetcher) Fetch(ctx context.Context, locations []string) (*FetchResult, error) {
	result := &FetchResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}
	if len(locations) == 0 {
		return result, nil
	}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create staging directory", err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = semaphore.NewWeighted(int64(p.concurrency))
	)

	for i, raw := range locations {
		loc, err := ParseLocation(raw)
		if err != nil {
			result.Errors[raw] = err
			continue
		}
		if !loc.Remote() {
			result.LocalPaths[raw] = raw
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[raw] = fmt.Errorf("prefetch cancelled: %w", err)
			mu.Unlock()
			continue
		}

		// index prefix keeps same-named keys from different buckets apart
		local := filepath.Join(p.dir, fmt.Sprintf("%03d-%s", i, path.Base(loc.Key)))

		wg.Add(1)
		go func(raw string, loc Location, local string) {
			defer sem.Release(1)
			defer wg.Done()

			err := p.download(ctx, loc, local)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[raw] = err
				return
			}
			result.LocalPaths[raw] = local
			result.Downloads++
		}(raw, loc, local)
	}

	wg.Wait()
	return result, nil
}

func (p *Prefetcher) download(ctx context.Context, loc Location, local string) error {
	st, err := p.artifacts.Store(ctx, loc.Bucket)
	if err != nil {
		return err
	}
	return st.Get(ctx, loc.Key, local)
}
