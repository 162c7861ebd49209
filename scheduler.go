// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// BatchScheduler is the concurrency-bounded streaming dispatcher and
// producer of the result stream. A fresh DirectoryCache and
// CSSInjectionCache are created per Documents() invocation, so concurrent
// overlapping batches never share or clear each other's state.
type BatchScheduler struct {
	pool    *ResourcePool
	cfg     Configuration
	metrics Metrics
}

func NewBatchScheduler(pool *ResourcePool, cfg Configuration, metrics Metrics) *BatchScheduler {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &BatchScheduler{pool: pool, cfg: cfg, metrics: metrics}
}

// BatchEvent is one item on the output stream: exactly one of Result or
// Failed is set. Failed is only ever populated when Configuration.
// ContinueOnError is set.
type BatchEvent struct {
	Result *Result
	Failed *FailedDocument
}

// Documents dispatches docs with bounded concurrency N =
// configuration.concurrency.resolved() and streams results in completion
// order. The returned error channel receives exactly one value: the
// first per-document error under fail-fast (default), or nil on success
// or under ContinueOnError. Both channels close once the batch finishes;
// callers should drain events until closed, then read errOut.
func (s *BatchScheduler) Documents(ctx context.Context, docs []Document) (<-chan BatchEvent, <-chan error) {
	out := make(chan BatchEvent, s.concurrency(docs))
	errOut := make(chan error, 1)

	n := len(docs)
	if n == 0 {
		// Empty input finishes immediately with no Results, no error.
		close(out)
		errOut <- nil
		close(errOut)
		return out, errOut
	}

	N := s.concurrency(docs)

	dirCache := NewDirectoryCache()
	cssCache := NewCSSInjectionCache()
	renderer := NewDocumentRenderer(s.pool, cssCache, dirCache, s.cfg, s.metrics)

	batchCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.BatchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
	} else {
		batchCtx, cancel = context.WithCancel(ctx)
	}

	// sem bounds in-flight renders to N; one weighted unit per document.
	sem := semaphore.NewWeighted(int64(N))

	type outcome struct {
		idx int
		res Result
		err error
		dur time.Duration
	}
	completions := make(chan outcome)

	go func() {
		defer close(completions)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			if err := sem.Acquire(batchCtx, 1); err != nil {
				// batchCtx ended before this document could be dispatched;
				// it is simply never rendered.
				break
			}
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer sem.Release(1)
				st := time.Now()
				res, err := renderer.Render(batchCtx, docs[idx], idx)
				completions <- outcome{idx: idx, res: res, err: err, dur: time.Since(st)}
			}(i)
		}
		wg.Wait()
	}()

	go func() {
		defer cancel()
		defer close(out)
		defer close(errOut)

		logBatchStart(n)

		var firstErr error
		var failed []FailedDocument

		for c := range completions {
			if c.err != nil {
				RecordFailure(s.metrics, c.err)
				logDocumentFailure(c.idx, c.err)

				if s.cfg.ContinueOnError {
					failed = append(failed, FailedDocument{Document: docs[c.idx], Index: c.idx, Err: c.err, Duration: c.dur})
					continue
				}
				if firstErr == nil {
					firstErr = batchLevelError(batchCtx, c.err)
					cancel() // fail-fast: cancel sibling tasks
				}
				continue
			}

			RecordSuccess(s.metrics, c.dur, c.res.ChosenMode)
			if firstErr != nil {
				// Already failing fast; no further Results are yielded
				// even if this one is in flight.
				continue
			}
			res := c.res
			select {
			case out <- BatchEvent{Result: &res}:
			case <-ctx.Done():
			}
		}

		dirCache.clear()
		logBatchFinish(n, firstErr)

		if firstErr != nil {
			errOut <- firstErr
			return
		}

		for _, f := range failed {
			fd := f
			select {
			case out <- BatchEvent{Failed: &fd}:
			case <-ctx.Done():
			}
		}
		errOut <- nil
	}()

	return out, errOut
}

func (s *BatchScheduler) concurrency(docs []Document) int {
	n := s.cfg.Concurrency.resolved()
	if n > len(docs) {
		n = len(docs)
	}
	if n < 1 {
		n = 1
	}
	return n
}

// batchLevelError upgrades a sibling's error to BatchTimeout when the
// batch-wide deadline (not the document's own timeout) is what fired:
// the batch timeout bounds the scheduler's lifetime end to end.
func batchLevelError(batchCtx context.Context, err error) error {
	if batchCtx.Err() == context.DeadlineExceeded && !AsError(err, DocumentTimeout) {
		return newError(BatchTimeout, "batch timeout", err)
	}
	return err
}

// RunBatch is a synchronous convenience wrapper collecting every Result
// and FailedDocument from Documents into memory; useful for callers (and
// tests) that do not need to consume the stream incrementally.
func RunBatch(ctx context.Context, s *BatchScheduler, docs []Document) ([]Result, []FailedDocument, error) {
	events, errOut := s.Documents(ctx, docs)

	var results []Result
	var failed []FailedDocument
	for ev := range events {
		if ev.Result != nil {
			results = append(results, *ev.Result)
		}
		if ev.Failed != nil {
			failed = append(failed, *ev.Failed)
		}
	}
	err := <-errOut
	return results, failed, err
}
