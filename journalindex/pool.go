package journalindex

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/netdata/journal-engine/jftimeout"
	"github.com/netdata/journal-engine/journalfile"
	"github.com/netdata/journal-engine/metrics"
)

// BatchOptions configures BuildBatch.
type BatchOptions struct {
	Concurrency int
	Budget      time.Duration // zero means unlimited
	BuildOpts   []Option
}

func defaultBatchOptions() BatchOptions {
	return BatchOptions{Concurrency: 4}
}

// BatchOption configures a BuildBatch call.
type BatchOption func(*BatchOptions)

func WithConcurrency(n int) BatchOption {
	return func(o *BatchOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithBatchBudget bounds the whole batch's wall-clock time. Files not yet
// started when the budget expires are reported as Unfinished rather than
// built, per the batch-level timeout in SPEC_FULL.md §5.
func WithBatchBudget(d time.Duration) BatchOption {
	return func(o *BatchOptions) { o.Budget = d }
}

func WithBuildOptions(opts ...Option) BatchOption {
	return func(o *BatchOptions) { o.BuildOpts = opts }
}

// BatchResult reports which files were indexed and which were skipped
// because the batch budget expired first.
type BatchResult struct {
	Unfinished []string
}

// BuildBatch indexes every path in paths under a bounded worker pool,
// populating cache as each file completes, and returns on the first hard
// error (open failure, decode failure) after cancelling remaining work -
// mirroring the teacher's bounded concurrent-load shape (an errgroup paired
// with a counting semaphore) rather than an unbounded goroutine-per-file
// fan-out. If a batch budget is configured and expires, BuildBatch stops
// submitting new work and returns the files it never started as Unfinished
// instead of erroring.
func BuildBatch(ctx context.Context, paths []string, cache *Cache, opts ...BatchOption) (BatchResult, error) {
	cfg := defaultBatchOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	var to *jftimeout.Timeout
	if cfg.Budget > 0 {
		to = jftimeout.New(cfg.Budget)
	}

	sem := semaphore.NewWeighted(int64(cfg.Concurrency))
	group, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var result BatchResult

	for i, path := range paths {
		if to != nil && to.Expired() {
			mu.Lock()
			result.Unfinished = append(result.Unfinished, paths[i:]...)
			mu.Unlock()
			break
		}
		path := path
		if err := sem.Acquire(gctx, 1); err != nil {
			mu.Lock()
			result.Unfinished = append(result.Unfinished, path)
			mu.Unlock()
			continue
		}
		group.Go(func() error {
			defer sem.Release(1)
			return buildOne(path, cache, cfg.BuildOpts)
		})
	}

	err := group.Wait()
	return result, err
}

func buildOne(path string, cache *Cache, buildOpts []Option) error {
	file, err := journalfile.Open(path)
	if err != nil {
		return jferrors.Wrap(jferrors.KindIO, "journalindex.BuildBatch", err)
	}
	defer file.Close()

	start := time.Now()
	idx, err := Build(file, buildOpts...)
	if err != nil {
		return err
	}
	outcome := "complete"
	if !idx.Complete {
		outcome = "partial"
	}
	metrics.IndexBuildsTotal.WithLabelValues(outcome).Inc()
	metrics.IndexBuildLatencyHistogram.
		WithLabelValues(strconv.FormatUint(uint64(idx.SchemaVersion), 10)).
		Observe(time.Since(start).Seconds())

	if cache != nil {
		return cache.Put(idx)
	}
	return nil
}
