// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command htmlpdfcli renders every *.html file in a directory to PDF
// through the concurrent rendering pipeline, using rodengine as the
// concrete engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Geek0x0/htmlpdf"
	"github.com/Geek0x0/htmlpdf/engine/rodengine"
)

func main() {
	var (
		inputDir    = flag.String("in", "", "directory of .html files to render")
		outputDir   = flag.String("out", "", "directory to write rendered .pdf files")
		concurrency = flag.Int("concurrency", 0, "fixed worker count (0 = automatic)")
		paginated   = flag.Bool("paginated", false, "force paginated mode instead of continuous")
		timeout     = flag.Duration("doc-timeout", 30*time.Second, "per-document render timeout")
	)
	flag.Parse()

	if *inputDir == "" || *outputDir == "" {
		fmt.Fprintln(os.Stderr, "usage: htmlpdfcli -in <dir> -out <dir>")
		os.Exit(2)
	}

	if err := run(*inputDir, *outputDir, *concurrency, *paginated, *timeout); err != nil {
		logrus.WithError(err).Fatal("render failed")
	}
}

func run(inputDir, outputDir string, concurrency int, paginated bool, docTimeout time.Duration) error {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("read input dir: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var docs []htmlpdf.Document
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".html") {
			continue
		}
		html, err := os.ReadFile(filepath.Join(inputDir, e.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		dest := filepath.Join(outputDir, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))+".pdf")
		docs = append(docs, htmlpdf.NewDocument(html, htmlpdf.NewFileSink(dest)))
	}

	if len(docs) == 0 {
		logrus.Info("no .html files found, nothing to do")
		return nil
	}

	cfg := htmlpdf.DefaultConfiguration()
	cfg.DocumentTimeout = docTimeout
	if paginated {
		cfg.PaginationMode = htmlpdf.Paginated()
	}
	if concurrency > 0 {
		cfg.Concurrency = htmlpdf.FixedConcurrency(concurrency)
	}
	cfg, err = cfg.Normalize()
	if err != nil {
		return fmt.Errorf("normalize configuration: %w", err)
	}

	ctx := context.Background()
	metrics := htmlpdf.NoopMetrics{}

	n := cfg.Concurrency.Resolved()
	pool, err := htmlpdf.NewResourcePool(ctx, n, rodengine.NewFactory(), cfg, metrics)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Close()

	scheduler := htmlpdf.NewBatchScheduler(pool, cfg, metrics)

	logrus.WithFields(logrus.Fields{"count": len(docs), "concurrency": n}).Info("rendering batch")

	results, failed, err := htmlpdf.RunBatch(ctx, scheduler, docs)
	for _, r := range results {
		logrus.WithFields(logrus.Fields{"index": r.Index, "pages": r.PageCount, "duration": r.Duration}).Info("document rendered")
	}
	for _, f := range failed {
		logrus.WithFields(logrus.Fields{"index": f.Index, "error": f.Err}).Warn("document failed")
	}
	if err != nil {
		return err
	}
	return nil
}
