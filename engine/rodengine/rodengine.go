// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rodengine is a concrete, optional htmlpdf.Engine implementation
// built on a headless Chrome tab driven via go-rod. It is not imported by
// the core pipeline or its tests; it exists to make the pipeline
// demonstrably wireable against a real rendering engine, grounded on the
// rod-based generator pattern of launching one browser, opening one page
// per worker, and driving it through SetDocumentContent → WaitLoad/
// WaitIdle → Page.PDF.
package rodengine

import (
	"context"
	"fmt"
	"io"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/Geek0x0/htmlpdf"
)

// Engine drives one headless Chrome tab. A single Engine value is never
// called concurrently — htmlpdf.WorkerResource's mailbox enforces that —
// but Engine also pins no OS thread itself; rod's own page protocol
// connection is the actual source of affinity.
type Engine struct {
	browser *rod.Browser
	page    *rod.Page
}

// NewFactory returns an htmlpdf.EngineFactory that launches a fresh
// headless Chrome instance and opens one blank page per call, matching
// the "one worker, one page" allocation the pool expects.
func NewFactory() htmlpdf.EngineFactory {
	return func(ctx context.Context) (htmlpdf.Engine, error) {
		url, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("rodengine: launch browser: %w", err)
		}
		browser := rod.New().ControlURL(url).Context(ctx)
		if err := browser.Connect(); err != nil {
			return nil, fmt.Errorf("rodengine: connect browser: %w", err)
		}
		page, err := browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			_ = browser.Close()
			return nil, fmt.Errorf("rodengine: open page: %w", err)
		}
		return &Engine{browser: browser, page: page}, nil
	}
}

func (e *Engine) Load(ctx context.Context, html []byte, baseURL string) error {
	page := e.page.Context(ctx)
	if baseURL != "" {
		if err := page.Navigate(baseURL); err != nil {
			return fmt.Errorf("navigate base url: %w", err)
		}
	}
	if err := page.SetDocumentContent(string(html)); err != nil {
		return fmt.Errorf("set document content: %w", err)
	}
	page.MustWaitLoad().MustWaitIdle()
	return nil
}

func (e *Engine) RenderSinglePage(ctx context.Context, paper htmlpdf.PaperSize) ([]byte, error) {
	widthIn := paper.Width / 72
	heightIn := paper.Height / 72
	stream, err := e.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      &widthIn,
		PaperHeight:     &heightIn,
	})
	if err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}

func (e *Engine) RenderPaginated(ctx context.Context, paper htmlpdf.PaperSize, margins htmlpdf.EdgeInsets) ([]byte, error) {
	widthIn := paper.Width / 72
	heightIn := paper.Height / 72
	top := margins.Top / 72
	right := margins.Right / 72
	bottom := margins.Bottom / 72
	left := margins.Left / 72

	stream, err := e.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      &widthIn,
		PaperHeight:     &heightIn,
		MarginTop:       &top,
		MarginBottom:    &bottom,
		MarginLeft:      &left,
		MarginRight:     &right,
	})
	if err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}

func (e *Engine) Probe(ctx context.Context) bool {
	_, err := e.page.Context(ctx).Info()
	return err == nil
}

func (e *Engine) Reset(ctx context.Context, clearCaches bool) error {
	page := e.page.Context(ctx)
	if err := page.SetDocumentContent("<html></html>"); err != nil {
		return err
	}
	if clearCaches {
		_ = proto.NetworkClearBrowserCache{}.Call(page)
	}
	return nil
}

func (e *Engine) QueryContentHeight(ctx context.Context) (float64, error) {
	res, err := e.page.Context(ctx).Eval(`() => document.documentElement.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (e *Engine) QueryHasPrintMediaStyle(ctx context.Context) (bool, error) {
	res, err := e.page.Context(ctx).Eval(`() => Array.from(document.styleSheets).some(s => {
		try { return Array.from(s.cssRules).some(r => r.media && r.media.mediaText.includes('print')) } catch (e) { return false }
	})`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *Engine) QueryHasPageBreakStyle(ctx context.Context) (bool, error) {
	res, err := e.page.Context(ctx).Eval(`() => Array.from(document.querySelectorAll('*')).some(el => {
		const s = getComputedStyle(el)
		return s.pageBreakBefore !== 'auto' || s.pageBreakAfter !== 'auto' || s.breakBefore !== 'auto'
	})`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *Engine) Close() error {
	_ = e.page.Close()
	return e.browser.Close()
}
