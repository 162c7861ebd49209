// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"context"
	"fmt"
	"time"
)

// DocumentRenderer drives a single render from byte-load to emitted
// artifact through the Start→DirectoryOk→Acquired→Loaded→ModeChosen→
// Rendered→Committed→Done state machine.
type DocumentRenderer struct {
	pool     *ResourcePool
	cssCache *CSSInjectionCache
	dirCache *DirectoryCache
	cfg      Configuration
	metrics  Metrics
}

func NewDocumentRenderer(pool *ResourcePool, cssCache *CSSInjectionCache, dirCache *DirectoryCache, cfg Configuration, metrics Metrics) *DocumentRenderer {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &DocumentRenderer{pool: pool, cssCache: cssCache, dirCache: dirCache, cfg: cfg, metrics: metrics}
}

// marginCSS produces the canonical margin-CSS byte sequence.
func marginCSS(m EdgeInsets) []byte {
	return []byte(fmt.Sprintf(
		"<style>@media print, screen {\n  html{margin:0;padding:0}\n  body{margin:0;padding:%gpt %gpt %gpt %gpt;box-sizing:border-box}\n}</style>",
		m.Top, m.Right, m.Bottom, m.Left,
	))
}

// appearanceCSS produces the color-scheme override block for Light/Dark;
// Auto emits nothing.
func appearanceCSS(a Appearance) []byte {
	switch a {
	case Light:
		return []byte("<style>:root{color-scheme:light}body{background:#fff;color:#000}@media print{body{background:#fff;color:#000}}@media (prefers-color-scheme: dark){body{background:#fff;color:#000}}</style>")
	case Dark:
		return []byte("<style>:root{color-scheme:dark}body{background:#1e1e1e;color:#eee}@media print{body{background:#1e1e1e;color:#eee}}@media (prefers-color-scheme: dark){body{background:#1e1e1e;color:#eee}}</style>")
	default:
		return nil
	}
}

// Render runs the full state machine for one document and returns its
// Result. The worker is released on every terminal transition via
// ResourcePool.withWorker.
func (r *DocumentRenderer) Render(ctx context.Context, doc Document, index int) (Result, error) {
	start := time.Now()

	// Start -> DirectoryOk
	if dir, ok := parentDir(doc.Destination); ok {
		if err := r.dirCache.ensure(dir, r.cfg.CreateDirectories); err != nil {
			return Result{}, err
		}
	}

	docCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.DocumentTimeout > 0 {
		docCtx, cancel = context.WithTimeoutCause(ctx, r.cfg.DocumentTimeout, errDocumentDeadline)
		defer cancel()
	}

	// DirectoryOk -> Acquired: build pre-rendered HTML off the engine
	// thread, then acquire a worker.
	cssStart := time.Now()
	css := marginCSS(r.cfg.Margins)
	if r.cfg.Appearance != AutoAppearance {
		css = append(css, appearanceCSS(r.cfg.Appearance)...)
	}
	prerendered := r.cssCache.inject(doc.HTML, css)
	r.metrics.RecordCSSInjectionTime(time.Since(cssStart))

	var (
		chosenMode   InternalMode
		pdfBytes     []byte
		acquireStart = time.Now()
	)

	err := r.pool.withWorker(docCtx, r.cfg.WorkerAcquisitionTimeout, func(w *WorkerResource) error {
		r.metrics.RecordPoolAcquisitionTime(time.Since(acquireStart))

		// Acquired -> Loaded
		renderStart := time.Now()
		if err := w.load(docCtx, prerendered, r.cfg.BaseURL); err != nil {
			return classifyTimeout(docCtx, err, index)
		}

		// Loaded -> ModeChosen
		mode, err := r.chooseMode(docCtx, w)
		if err != nil {
			return classifyTimeout(docCtx, err, index)
		}
		chosenMode = mode

		// ModeChosen -> Rendered
		var renderErr error
		if mode == PaginatedMode {
			pdfBytes, renderErr = w.renderPaginated(docCtx, r.cfg.PaperSize, r.cfg.Margins)
		} else {
			pdfBytes, renderErr = w.renderSinglePage(docCtx, r.cfg.PaperSize)
		}
		r.metrics.RecordWebengineTime(time.Since(renderStart))
		if renderErr != nil {
			return classifyTimeout(docCtx, renderErr, index)
		}
		return nil
	})
	if err != nil {
		if dir, ok := doc.Destination.path(); ok {
			cleanupPartial(dir)
		}
		return Result{}, err
	}

	// Rendered -> Committed
	if err := atomicCommit(doc.Destination, pdfBytes); err != nil {
		return Result{}, err
	}

	// Committed -> Done
	pageCount, dims := parsePDFMeta(pdfBytes, r.cfg.PaperSize)

	return Result{
		Destination:    doc.Destination,
		Index:          index,
		Duration:       time.Since(start),
		ChosenMode:     chosenMode,
		PageCount:      pageCount,
		PageDimensions: dims,
	}, nil
}

// chooseMode implements the decision table.
func (r *DocumentRenderer) chooseMode(ctx context.Context, w *WorkerResource) (InternalMode, error) {
	pm := r.cfg.PaginationMode
	switch pm.kind {
	case paginationContinuous:
		return SinglePage, nil
	case paginationPaginated:
		return PaginatedMode, nil
	case paginationAutomatic:
		switch pm.heuristic {
		case ContentLength:
			h, err := w.queryContentHeight(ctx)
			if err != nil {
				return 0, err
			}
			pageH := r.cfg.PaperSize.Height - (r.cfg.Margins.Top + r.cfg.Margins.Bottom)
			if pageH <= 0 {
				return PaginatedMode, nil
			}
			if h/pageH > pm.threshold {
				return PaginatedMode, nil
			}
			return SinglePage, nil
		case HtmlStructure:
			printMedia, err := w.queryHasPrintMedia(ctx)
			if err != nil {
				return 0, err
			}
			if printMedia {
				return PaginatedMode, nil
			}
			pageBreak, err := w.queryHasPageBreakStyle(ctx)
			if err != nil {
				return 0, err
			}
			if pageBreak {
				return PaginatedMode, nil
			}
			return SinglePage, nil
		case PreferSpeed:
			return SinglePage, nil
		case PreferPrintReady:
			return PaginatedMode, nil
		}
	}
	return SinglePage, nil
}

// errDocumentDeadline is the cancellation cause of a document's own
// timeout, telling it apart from a deadline inherited from the batch.
var errDocumentDeadline = fmt.Errorf("document timeout elapsed")

// classifyTimeout upgrades an error into the DocumentTimeout kind when the
// document's own deadline fired: exceeding documentTimeout
// reports failure even if bytes arrive later. An expired batch deadline
// leaves err as is, for the scheduler to report as BatchTimeout.
func classifyTimeout(ctx context.Context, err error, index int) error {
	if context.Cause(ctx) == errDocumentDeadline {
		logTimeout(DocumentTimeout, index)
		return newError(DocumentTimeout, "document timeout", err)
	}
	if ctx.Err() == context.Canceled {
		return newError(Cancelled, "render cancelled", err)
	}
	return err
}
