// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeEngine is a deterministic, in-process stand-in for a real rendering
// engine, used by every test in this package so no test depends on a real
// browser. It produces minimal-but-valid PDF bytes whose /MediaBox
// reflects the requested paper size and pagination mode.
type fakeEngine struct {
	mu      sync.Mutex
	html    []byte
	closed  bool
	probeOK atomic.Bool

	loadDelay   time.Duration
	renderDelay time.Duration
	failLoad    bool
	dead        atomic.Bool
}

func newFakeEngine() *fakeEngine {
	e := &fakeEngine{}
	e.probeOK.Store(true)
	return e
}

func fakeEngineFactory(opts func(*fakeEngine)) EngineFactory {
	return func(ctx context.Context) (Engine, error) {
		e := newFakeEngine()
		if opts != nil {
			opts(e)
		}
		return e, nil
	}
}

func (e *fakeEngine) Load(ctx context.Context, html []byte, baseURL string) error {
	if e.loadDelay > 0 {
		select {
		case <-time.After(e.loadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if e.failLoad {
		return fmt.Errorf("fake load failure")
	}
	e.mu.Lock()
	e.html = append([]byte(nil), html...)
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) renderWait(ctx context.Context) error {
	if e.renderDelay > 0 {
		select {
		case <-time.After(e.renderDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *fakeEngine) RenderSinglePage(ctx context.Context, paper PaperSize) ([]byte, error) {
	if err := e.renderWait(ctx); err != nil {
		return nil, err
	}
	return fakePDF([]Dimensions{{Width: paper.Width, Height: paper.Height}}), nil
}

func (e *fakeEngine) RenderPaginated(ctx context.Context, paper PaperSize, margins EdgeInsets) ([]byte, error) {
	if err := e.renderWait(ctx); err != nil {
		return nil, err
	}
	pages := e.paragraphCount()/20 + 1
	if pages < 1 {
		pages = 1
	}
	dims := make([]Dimensions, pages)
	for i := range dims {
		dims[i] = Dimensions{Width: paper.Width, Height: paper.Height}
	}
	return fakePDF(dims), nil
}

func (e *fakeEngine) paragraphCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Count(string(e.html), "<p>")
}

func (e *fakeEngine) Probe(ctx context.Context) bool {
	return e.probeOK.Load() && !e.dead.Load()
}

func (e *fakeEngine) Reset(ctx context.Context, clearCaches bool) error {
	e.mu.Lock()
	e.html = nil
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) QueryContentHeight(ctx context.Context) (float64, error) {
	return float64(e.paragraphCount() * 40), nil
}

func (e *fakeEngine) QueryHasPrintMediaStyle(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bytes.Contains(e.html, []byte("@media print")) && bytes.Contains(e.html, []byte("page-break-marker")), nil
}

func (e *fakeEngine) QueryHasPageBreakStyle(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bytes.Contains(e.html, []byte("page-break-before")), nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

// fakePDF builds a minimal, valid-looking PDF byte sequence with one
// "/Type/Page"+"/MediaBox" object per requested dimension, so
// parsePDFMeta can recover page_count and page_dimensions in tests.
func fakePDF(dims []Dimensions) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	for _, d := range dims {
		fmt.Fprintf(&b, "1 0 obj\n<< /Type/Page /MediaBox [0 0 %g %g] >>\nendobj\n", d.Width, d.Height)
	}
	b.WriteString("%%EOF")
	return b.Bytes()
}
