// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import "context"

// Engine is the black-box rendering capability required by the core
// rendering pipeline. An Engine implementation is strictly thread-affine: the pool
// never calls two of these methods concurrently against the same value
// (see the WorkerResource mailbox in worker.go, which enforces that for any
// Engine).
//
// Implementations are expected to: be stateless across renders
// (non-persistent storage), suppress incremental rendering for
// determinism, disable network-originated script capabilities not
// required, and run on whatever thread-affine context the underlying
// rendering technology demands.
type Engine interface {
	// Load hands html to the engine, resolving relative references
	// against baseURL, and blocks until the engine signals load-finish.
	Load(ctx context.Context, html []byte, baseURL string) error

	// RenderSinglePage renders the currently loaded document as one tall
	// page sized to paper, returning a complete PDF byte sequence.
	RenderSinglePage(ctx context.Context, paper PaperSize) ([]byte, error)

	// RenderPaginated renders the currently loaded document across
	// standard-size pages with margins applied at the print layer.
	RenderPaginated(ctx context.Context, paper PaperSize, margins EdgeInsets) ([]byte, error)

	// Probe reports whether the underlying engine instance is still
	// alive).
	Probe(ctx context.Context) bool

	// Reset cancels any in-flight load and prepares the engine for
	// reuse. clearCaches is true when the worker's use-count crossed a
	// clear_caches_every boundary.
	Reset(ctx context.Context, clearCaches bool) error

	// QueryContentHeight returns the loaded document's pixel height, used
	// by the Automatic(ContentLength) heuristic.
	QueryContentHeight(ctx context.Context) (float64, error)

	// QueryHasPrintMediaStyle reports whether the loaded document
	// contains an @media print style block.
	QueryHasPrintMediaStyle(ctx context.Context) (bool, error)

	// QueryHasPageBreakStyle reports whether the loaded document contains
	// a CSS page-break style.
	QueryHasPageBreakStyle(ctx context.Context) (bool, error)

	// Close releases any resources the engine holds (browser process,
	// file handles). Called once, when the worker is destroyed.
	Close() error
}

// EngineFactory constructs a fresh Engine instance, e.g. launching a new
// headless browser tab. Called by the pool during warm-up and on
// invalidation-induced replacement.
type EngineFactory func(ctx context.Context) (Engine, error)
