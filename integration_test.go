// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// newTestScheduler wires a BatchScheduler against a fresh pool of fake
// engines and a recording metrics backend. capacity is the pool size.
func newTestScheduler(t *testing.T, capacity int, cfg Configuration, factory EngineFactory) (*BatchScheduler, *RecordingMetrics) {
	t.Helper()
	cfg, err := cfg.Normalize()
	if err != nil {
		t.Fatalf("normalize configuration: %v", err)
	}
	metrics := NewRecordingMetrics()
	pool, err := NewResourcePool(context.Background(), capacity, factory, cfg, metrics)
	if err != nil {
		t.Fatalf("new resource pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewBatchScheduler(pool, cfg, metrics), metrics
}

func isValidPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF"))
}

// Scenario 1: singleton continuous.
func TestScenario_SingletonContinuous(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfiguration()
	s, _ := newTestScheduler(t, 1, cfg, fakeEngineFactory(nil))

	dest := filepath.Join(dir, "out.pdf")
	docs := []Document{NewDocument([]byte("<h1>Hi</h1>"), NewFileSink(dest))}

	results, failed, err := RunBatch(context.Background(), s, docs)
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.ChosenMode != SinglePage {
		t.Errorf("expected SinglePage, got %v", r.ChosenMode)
	}
	if r.PageCount != 1 {
		t.Errorf("expected page_count 1, got %d", r.PageCount)
	}
	if diff := r.PageDimensions[0].Width - 595.28; diff > 0.01 || diff < -0.01 {
		t.Errorf("expected width ~595.28, got %v", r.PageDimensions[0].Width)
	}
	if r.PageDimensions[0].Height <= 800 {
		t.Errorf("expected height > 800, got %v", r.PageDimensions[0].Height)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("expected destination file to exist: %v", err)
	}
}

// Scenario 2: batch of 10 sequential.
func TestScenario_BatchOfTenSequential(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfiguration()
	cfg.Concurrency = FixedConcurrency(4)
	cfg.NamingStrategy = SequentialNaming{}
	s, _ := newTestScheduler(t, 4, cfg, fakeEngineFactory(nil))

	var docs []Document
	for i := 0; i < 10; i++ {
		name := cfg.NamingStrategy.Name(i) + ".pdf"
		docs = append(docs, NewDocument([]byte("<p>paragraph</p>"), NewFileSink(filepath.Join(dir, name))))
	}

	results, _, err := RunBatch(context.Background(), s, docs)
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	seen := make(map[int]bool)
	for _, r := range results {
		seen[r.Index] = true
	}
	for i := 0; i < 10; i++ {
		if !seen[i] {
			t.Errorf("missing index %d", i)
		}
		if _, err := os.Stat(filepath.Join(dir, strconv.Itoa(i+1)+".pdf")); err != nil {
			t.Errorf("expected %d.pdf to exist: %v", i+1, err)
		}
	}
}

// Scenario 3: paginated multi-page.
func TestScenario_PaginatedMultiPage(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfiguration()
	cfg.PaginationMode = Paginated()
	s, _ := newTestScheduler(t, 1, cfg, fakeEngineFactory(nil))

	html := strings.Repeat("<p>paragraph</p>", 100)
	dest := filepath.Join(dir, "out.pdf")
	results, _, err := RunBatch(context.Background(), s, []Document{NewDocument([]byte(html), NewFileSink(dest))})
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	r := results[0]
	if r.PageCount < 2 {
		t.Fatalf("expected page_count >= 2, got %d", r.PageCount)
	}
	for i, d := range r.PageDimensions {
		if absDiff(d.Width, 595.28) > 1 || absDiff(d.Height, 841.89) > 1 {
			t.Errorf("page %d dimensions out of tolerance: %+v", i, d)
		}
	}
}

// Scenario 4: automatic threshold.
func TestScenario_AutomaticThreshold(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfiguration()
	cfg.PaginationMode = AutomaticContentLength(1.5)
	s, _ := newTestScheduler(t, 1, cfg, fakeEngineFactory(nil))

	html := strings.Repeat("<p>paragraph</p>", 100)
	dest := filepath.Join(dir, "out.pdf")
	results, _, err := RunBatch(context.Background(), s, []Document{NewDocument([]byte(html), NewFileSink(dest))})
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	if results[0].ChosenMode != PaginatedMode {
		t.Errorf("expected Paginated selected, got %v", results[0].ChosenMode)
	}
}

// Scenario 5: fail-fast.
func TestScenario_FailFast(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfiguration()
	cfg.Concurrency = FixedConcurrency(1)
	cfg.DocumentTimeout = time.Nanosecond

	s, _ := newTestScheduler(t, 1, cfg, fakeEngineFactory(func(e *fakeEngine) {
		e.renderDelay = 5 * time.Millisecond
	}))

	var docs []Document
	for i := 0; i < 5; i++ {
		docs = append(docs, NewDocument([]byte("<p>x</p>"), NewFileSink(filepath.Join(dir, strconv.Itoa(i)+".pdf"))))
	}

	results, _, err := RunBatch(context.Background(), s, docs)
	if err == nil {
		t.Fatal("expected batch to fail fast")
	}
	if !AsError(err, DocumentTimeout) {
		t.Errorf("expected DocumentTimeout, got %v", err)
	}
	if len(results) > 2 {
		t.Errorf("expected at most 2 results before failing, got %d", len(results))
	}
	for i := 3; i < 5; i++ {
		if _, statErr := os.Stat(filepath.Join(dir, strconv.Itoa(i)+".pdf")); statErr == nil {
			t.Errorf("destination %d should not exist", i)
		}
	}
}

// Scenario 6: worker recycle.
func TestScenario_WorkerRecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfiguration()
	cfg.Concurrency = FixedConcurrency(1)
	cfg.MaxUsesBeforeRecreate = 3

	s, metrics := newTestScheduler(t, 1, cfg, fakeEngineFactory(nil))

	var docs []Document
	for i := 0; i < 7; i++ {
		docs = append(docs, NewDocument([]byte("<p>x</p>"), NewFileSink(filepath.Join(dir, strconv.Itoa(i)+".pdf"))))
	}

	results, _, err := RunBatch(context.Background(), s, docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	if got := metrics.PoolReplacementsCount(); got != 2 {
		t.Errorf("expected 2 recycles, got %d", got)
	}
	for i := 0; i < 7; i++ {
		data, err := os.ReadFile(filepath.Join(dir, strconv.Itoa(i)+".pdf"))
		if err != nil || !isValidPDF(data) {
			t.Errorf("destination %d missing or invalid: %v", i, err)
		}
	}
}

func TestProperty_EmptyBatch(t *testing.T) {
	cfg := DefaultConfiguration()
	s, _ := newTestScheduler(t, 1, cfg, fakeEngineFactory(nil))

	results, failed, err := RunBatch(context.Background(), s, nil)
	if err != nil || len(results) != 0 || len(failed) != 0 {
		t.Fatalf("expected clean empty finish, got results=%v failed=%v err=%v", results, failed, err)
	}
}

// Sequential naming produces {1,...,M} in caller-provided order.
func TestProperty_SequentialNaming(t *testing.T) {
	var n SequentialNaming
	for i := 0; i < 5; i++ {
		want := strconv.Itoa(i + 1)
		if got := n.Name(i); got != want {
			t.Errorf("index %d: want %q got %q", i, want, got)
		}
	}
}

func TestProperty_MarginsClampNonNegative(t *testing.T) {
	m := EdgeInsets{Top: -5, Right: -1, Bottom: 3, Left: -100}.clamp()
	if m.Top != 0 || m.Right != 0 || m.Left != 0 || m.Bottom != 3 {
		t.Errorf("expected negative components clamped to 0, got %+v", m)
	}
}

func TestProperty_CSSInjectionIdempotent(t *testing.T) {
	cache := NewCSSInjectionCache()
	html := []byte("<html><head></head><body>hi</body></html>")
	css := []byte("<style>body{color:red}</style>")

	first := cache.inject(html, css)
	second := cache.inject(html, css)
	if !bytes.Equal(first, second) {
		t.Error("expected byte-identical output on repeated inject")
	}
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
