// Package index discovers artifact documents, parses them and upserts the
// resulting records into a store.Backend.
//
// A batch run never aborts on a single document: read, parse and write
// failures are recorded in the Result and logged, and the run moves on.
// Only failing to open or lock the destination is fatal.
package index

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/parser"
	"github.com/continuity-tools/artifact-index/internal/store"
)

// DefaultMaxFileSize caps the size of a single source document.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Kinds is the order a full run indexes in.
var Kinds = []artifact.Kind{artifact.KindHandoff, artifact.KindPlan, artifact.KindContinuity}

// Selection chooses which kinds a batch run covers.
type Selection struct {
	Handoffs   bool
	Plans      bool
	Continuity bool
}

// All selects every kind.
func All() Selection { return Selection{Handoffs: true, Plans: true, Continuity: true} }

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return !s.Handoffs && !s.Plans && !s.Continuity }

func (s Selection) kinds() []artifact.Kind {
	var out []artifact.Kind
	if s.Handoffs {
		out = append(out, artifact.KindHandoff)
	}
	if s.Plans {
		out = append(out, artifact.KindPlan)
	}
	if s.Continuity {
		out = append(out, artifact.KindContinuity)
	}
	return out
}

// Failure is one document that was skipped.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes one kind of a batch run.
type Result struct {
	Kind artifact.Kind
	// Dir is the resolved source directory.
	Dir string
	// Missing is set when Dir does not exist; nothing was indexed.
	Missing  bool
	Found    int
	Indexed  int
	Failures []Failure
	Duration time.Duration
}

// Skipped is the number of documents that failed.
func (r *Result) Skipped() int { return len(r.Failures) }

// Progress reports one step of a batch run. An event with Done == 0
// announces a kind and its document count.
type Progress struct {
	Kind  artifact.Kind
	Done  int
	Total int
	Path  string
	Err   error
}

// Indexer runs batch and single-file indexing against one backend.
type Indexer struct {
	backend     store.Backend
	cfg         *config.Config
	workers     int
	maxFileSize int64
	lockPath    string
	progress    func(Progress)

	srcOnce sync.Once
	srcs    map[artifact.Kind]*source
	srcErrs map[artifact.Kind]error
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithBatchLock serializes batch runs through the lock file at
// <dbPath>.lock. Only meaningful for the embedded backend.
func WithBatchLock(dbPath string) Option {
	return func(ix *Indexer) { ix.lockPath = dbPath }
}

// WithProgress calls fn once per kind and once per processed document.
// Calls never overlap, even with several workers.
func WithProgress(fn func(Progress)) Option {
	return func(ix *Indexer) { ix.progress = fn }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(ix *Indexer) { ix.maxFileSize = n }
}

// New creates an Indexer. index.workers is honored only on the server
// backend; the embedded backend has a single writer.
func New(b store.Backend, cfg *config.Config, opts ...Option) *Indexer {
	ix := &Indexer{
		backend:     b,
		cfg:         cfg,
		workers:     1,
		maxFileSize: DefaultMaxFileSize,
	}
	if b.Dialect() == store.DialectServer && cfg.Index.Workers > 1 {
		ix.workers = cfg.Index.Workers
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// source returns the compiled source for kind. Sources are built once.
func (ix *Indexer) source(kind artifact.Kind) (*source, error) {
	ix.srcOnce.Do(func() {
		ix.srcs = make(map[artifact.Kind]*source, len(Kinds))
		ix.srcErrs = make(map[artifact.Kind]error)
		for _, k := range Kinds {
			src, err := newSource(ix.cfg, k)
			if err != nil {
				ix.srcErrs[k] = err
				continue
			}
			ix.srcs[k] = src
		}
	})
	if err, ok := ix.srcErrs[kind]; ok {
		return nil, err
	}
	src, ok := ix.srcs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return src, nil
}

// Workers returns the effective parallelism.
func (ix *Indexer) Workers() int { return ix.workers }

// Run indexes the selected kinds in order, then rebuilds search structures.
// The returned results are in Kinds order.
func (ix *Indexer) Run(ctx context.Context, sel Selection) ([]*Result, error) {
	if sel.Empty() {
		return nil, nil
	}

	if ix.lockPath != "" {
		lock := NewBatchLock(ix.lockPath)
		if err := lock.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				slog.Warn("batch_unlock_failed", slog.String("error", err.Error()))
			}
		}()
	}

	var results []*Result
	for _, kind := range sel.kinds() {
		res, err := ix.IndexKind(ctx, kind)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}

	start := time.Now()
	if err := ix.backend.Maintain(ctx); err != nil {
		return results, errors.New(errors.ErrCodeSchemaFailed, "failed to rebuild search indexes", err)
	}
	slog.Debug("index_maintenance_complete", slog.Duration("duration", time.Since(start)))
	return results, nil
}

// IndexHandoffs indexes markdown and YAML handoffs.
func (ix *Indexer) IndexHandoffs(ctx context.Context) (*Result, error) {
	return ix.IndexKind(ctx, artifact.KindHandoff)
}

// IndexPlans indexes plans.
func (ix *Indexer) IndexPlans(ctx context.Context) (*Result, error) {
	return ix.IndexKind(ctx, artifact.KindPlan)
}

// IndexContinuity indexes continuity ledgers.
func (ix *Indexer) IndexContinuity(ctx context.Context) (*Result, error) {
	return ix.IndexKind(ctx, artifact.KindContinuity)
}

// IndexKind indexes every document of one kind. Per-document failures land
// in Result.Failures; the error return is reserved for cancellation and
// configuration problems.
func (ix *Indexer) IndexKind(ctx context.Context, kind artifact.Kind) (*Result, error) {
	src, err := ix.source(kind)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "invalid source configuration", err).
			WithDetail("kind", string(kind))
	}

	res := &Result{Kind: kind, Dir: src.dir}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	paths, err := src.files()
	if stderrors.Is(err, fs.ErrNotExist) {
		res.Missing = true
		slog.Info("index_source_missing", slog.String("kind", string(kind)), slog.String("dir", src.dir))
		return res, nil
	}
	if err != nil {
		return res, errors.New(errors.ErrCodeFileRead, "failed to list source directory", err).
			WithDetail("path", src.dir)
	}
	res.Found = len(paths)
	ix.notify(Progress{Kind: kind, Total: res.Found})

	var mu sync.Mutex
	record := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			res.Indexed++
		} else {
			res.Failures = append(res.Failures, Failure{Path: path, Err: err})
			attrs := append([]any{slog.String("kind", string(kind)), slog.String("path", path)}, errors.LogAttrs(err)...)
			slog.Warn("index_document_failed", attrs...)
		}
		ix.notify(Progress{
			Kind:  kind,
			Done:  res.Indexed + len(res.Failures),
			Total: res.Found,
			Path:  path,
			Err:   err,
		})
	}

	if ix.workers <= 1 {
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			_, err := ix.indexDocument(ctx, kind, p)
			record(p, err)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ix.workers)
		for _, p := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, err := ix.indexDocument(gctx, kind, p)
				record(p, err)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return res, err
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	slog.Info("index_kind_complete",
		slog.String("kind", string(kind)),
		slog.Int("found", res.Found),
		slog.Int("indexed", res.Indexed),
		slog.Int("skipped", res.Skipped()),
		slog.Int("workers", ix.workers))
	return res, nil
}

func (ix *Indexer) notify(p Progress) {
	if ix.progress != nil {
		ix.progress(p)
	}
}

// IndexFile is the single-document fast path used by hooks and the watcher.
// The kind is detected from the path. No batch lock is taken.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (artifact.Record, error) {
	abs, err := artifact.AbsPath(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "invalid path", err).WithDetail("path", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "file not found", err).WithDetail("path", abs)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrCodeFileNotFound, "path is a directory", nil).WithDetail("path", abs)
	}

	kind := ix.Classify(abs)
	if kind == artifact.KindUnknown {
		_, err := parser.Parse(abs, nil)
		return nil, err
	}

	rec, err := ix.indexDocument(ctx, kind, abs)
	if err != nil {
		slog.Warn("index_document_failed", append([]any{slog.String("path", abs)}, errors.LogAttrs(err)...)...)
		return nil, err
	}
	slog.Info("index_file_complete", slog.String("kind", string(kind)), slog.String("path", abs))
	return rec, nil
}

// Classify returns the kind of the document at path. Configured source
// locations take precedence; otherwise the kind is inferred from the path
// layout. KindUnknown means the path is not an artifact.
func (ix *Indexer) Classify(path string) artifact.Kind {
	abs, err := artifact.AbsPath(path)
	if err != nil {
		return artifact.KindUnknown
	}
	for _, kind := range Kinds {
		src, err := ix.source(kind)
		if err != nil {
			continue
		}
		if src.owns(abs) {
			return kind
		}
	}
	kind, _ := parser.Detect(abs)
	return kind
}

// indexDocument reads, parses and upserts one document.
func (ix *Indexer) indexDocument(ctx context.Context, kind artifact.Kind, path string) (artifact.Record, error) {
	abs, err := artifact.AbsPath(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileRead, "invalid path", err).WithDetail("path", path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileRead, "failed to stat file", err).WithDetail("path", abs)
	}
	if info.Size() > ix.maxFileSize {
		return nil, errors.New(errors.ErrCodeFileRead,
			fmt.Sprintf("file exceeds %d bytes", ix.maxFileSize), nil).WithDetail("path", abs)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileRead, "failed to read file", err).WithDetail("path", abs)
	}

	rec, err := parser.ParseAs(kind, dialectFor(abs), abs, content)
	if err != nil {
		return nil, err
	}

	if err := store.Save(ctx, ix.backend, rec); err != nil {
		return nil, errors.WriteError(string(kind), abs, err)
	}
	return rec, nil
}
