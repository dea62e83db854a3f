// Package session runs extractions over many inputs with a shared result
// cache and a bounded worker pool.
package session

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/maypok86/otter"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/filter"
	"github.com/mvp-joe/cbind/internal/frontend"
)

const defaultCacheSize = 256

// Options configure a session.
type Options struct {
	Frontend frontend.Options
	Builtins *extract.BuiltinResolver
	Filter   *filter.Filter

	// Workers bounds parallel extractions. Zero means runtime.NumCPU().
	Workers int

	// CacheSize is the number of results kept. Zero means 256.
	CacheSize int

	Verbose bool
}

// Session extracts files against one set of front-end options and builtins.
// It is safe for concurrent use.
type Session struct {
	parser    *frontend.Parser
	extractor *extract.Extractor
	filter    *filter.Filter
	workers   int
	verbose   bool
	cache     otter.Cache[string, *extract.Result]
}

// FileResult is the outcome of extracting one file.
type FileResult struct {
	Path   string
	Result *extract.Result
	Cached bool
	Err    error
}

// New creates a session.
func New(opts Options) (*Session, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := otter.MustBuilder[string, *extract.Result](size).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Session{
		parser:    frontend.New(opts.Frontend),
		extractor: extract.New(opts.Builtins),
		filter:    opts.Filter,
		workers:   workers,
		verbose:   opts.Verbose,
		cache:     cache,
	}, nil
}

// Close releases the cache.
func (s *Session) Close() {
	s.cache.Close()
}

// Invalidate drops every cached result.
func (s *Session) Invalidate() {
	s.cache.Clear()
}

// CacheStats returns the cache hit and miss counts.
func (s *Session) CacheStats() (hits, misses int64) {
	st := s.cache.Stats()
	return st.Hits(), st.Misses()
}

// key identifies a result by the preprocessed input and the builtins it was
// extracted against.
func (s *Session) key(src *frontend.Source) string {
	return src.Digest() + ":" + s.extractor.Builtins().Fingerprint()
}

// ExtractSource extracts a preprocessed source, reusing a cached result when
// the same input was extracted before. The filter is applied to the returned
// result only; the cache keeps the full one.
func (s *Session) ExtractSource(ctx context.Context, src *frontend.Source) (*extract.Result, bool, error) {
	key := s.key(src)
	if r, ok := s.cache.Get(key); ok {
		return s.filter.Apply(r), true, nil
	}

	tu, err := s.parser.Parse(ctx, src)
	if err != nil {
		return nil, false, err
	}
	r, err := s.extractor.Extract(tu)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", src.Name, err)
	}
	s.cache.Set(key, r)
	return s.filter.Apply(r), false, nil
}

// ExtractFile loads and extracts one file.
func (s *Session) ExtractFile(ctx context.Context, path string) FileResult {
	fr := FileResult{Path: path}
	src, err := s.parser.Load(path)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Result, fr.Cached, fr.Err = s.ExtractSource(ctx, src)
	if fr.Err == nil && s.verbose {
		log.Printf("Extracted %s: %d top-level, %d nested, %d skipped (cached=%v)",
			path, len(fr.Result.TopLevel), len(fr.Result.Nested), len(fr.Result.Diagnostics), fr.Cached)
	}
	return fr
}

// ExtractBuffer extracts an in-memory buffer named name.
func (s *Session) ExtractBuffer(ctx context.Context, name string, data []byte) (*extract.Result, error) {
	r, _, err := s.ExtractSource(ctx, s.parser.LoadSource(name, data))
	return r, err
}

// ExtractAll extracts files in parallel. Results are returned in input
// order. A failing file does not stop the others; its error is recorded in its
// FileResult. onDone, if set, is called once per file as it finishes, never
// concurrently. The returned error is non-nil only when ctx is cancelled.
func (s *Session) ExtractAll(ctx context.Context, paths []string, onDone func(FileResult)) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr := s.ExtractFile(gctx, path)
			results[i] = fr
			if fr.Err != nil && s.verbose {
				log.Printf("Warning: %s: %v", path, fr.Err)
			}
			if onDone != nil {
				mu.Lock()
				onDone(fr)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	if s.verbose {
		hits, misses := s.CacheStats()
		log.Printf("Extraction finished: %d files, cache hits=%d misses=%d", len(paths), hits, misses)
	}
	return results, nil
}
