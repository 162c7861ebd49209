// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"container/list"
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// ResourcePool is a fixed-capacity pool of WorkerResources with warm-up, a
// FIFO wait queue, and invalidation→replacement.
type ResourcePool struct {
	capacity int
	factory  EngineFactory
	cfg      Configuration
	metrics  Metrics

	mu               sync.Mutex
	available        []*WorkerResource
	waiters          *list.List // of *poolWaiter, front = oldest
	underReplacement int
	nextID           int
	closed           bool
}

type poolWaiter struct {
	ch chan *WorkerResource
}

// NewResourcePool creates the pool and warms it to full capacity
// concurrently. Warm-up failure produces PoolInitFailed.
func NewResourcePool(ctx context.Context, capacity int, factory EngineFactory, cfg Configuration, metrics Metrics) (*ResourcePool, error) {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	p := &ResourcePool{
		capacity: capacity,
		factory:  factory,
		cfg:      cfg,
		metrics:  metrics,
		waiters:  list.New(),
	}

	type creation struct {
		w   *WorkerResource
		err error
	}
	results := make(chan creation, capacity)
	for i := 0; i < capacity; i++ {
		go func(id int) {
			w, err := newWorkerResource(ctx, id, factory, cfg)
			results <- creation{w: w, err: err}
		}(p.nextWorkerID())
	}

	var firstErr error
	for i := 0; i < capacity; i++ {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		p.available = append(p.available, r.w)
	}
	if firstErr != nil {
		for _, w := range p.available {
			w.destroy()
		}
		return nil, newError(PoolInitFailed, "warm up pool", firstErr)
	}
	logPoolWarmup(capacity)
	p.reportUtilization()
	return p, nil
}

// reportUtilization publishes the current in-use worker count (capacity
// minus idle) to the metrics surface.
func (p *ResourcePool) reportUtilization() {
	p.mu.Lock()
	inUse := p.capacity - len(p.available)
	p.mu.Unlock()
	p.metrics.UpdatePoolUtilization(inUse)
}

func (p *ResourcePool) nextWorkerID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	return id
}

// withWorker acquires a worker, runs f, and releases the worker whether f
// returns normally or panics.
func (p *ResourcePool) withWorker(ctx context.Context, timeout time.Duration, f func(*WorkerResource) error) (err error) {
	w, err := p.acquire(ctx, timeout)
	if err != nil {
		return err
	}

	defer func() {
		releaseCtx := context.Background()
		p.release(releaseCtx, w)
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	return f(w)
}

// acquire implements the FIFO acquisition rules.
func (p *ResourcePool) acquire(ctx context.Context, timeout time.Duration) (*WorkerResource, error) {
	p.mu.Lock()
	if n := len(p.available); n > 0 {
		w := p.available[n-1]
		p.available = p.available[:n-1]
		p.mu.Unlock()
		p.reportUtilization()
		return w, nil
	}
	if p.closed {
		p.mu.Unlock()
		return nil, newError(CapabilityUnavailable, "acquire worker", fmt.Errorf("pool closed"))
	}

	waiter := &poolWaiter{ch: make(chan *WorkerResource, 1)}
	elem := p.waiters.PushBack(waiter)
	p.mu.Unlock()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case w := <-waiter.ch:
		return w, nil
	case <-timeoutCh:
		p.removeWaiter(elem)
		select {
		case w := <-waiter.ch:
			// Delivered in the race window between timeout firing and
			// removal; honor it rather than drop a live worker.
			return w, nil
		default:
		}
		return nil, newError(AcquisitionTimeout, "acquire worker", nil)
	case <-ctx.Done():
		p.removeWaiter(elem)
		select {
		case w := <-waiter.ch:
			return w, nil
		default:
		}
		return nil, newError(Cancelled, "acquire worker", ctx.Err())
	}
}

func (p *ResourcePool) removeWaiter(elem *list.Element) {
	p.mu.Lock()
	p.waiters.Remove(elem)
	p.mu.Unlock()
}

// release implements the release rules.
func (p *ResourcePool) release(ctx context.Context, w *WorkerResource) {
	_ = w.reset(ctx)

	if !w.validate(ctx) {
		logValidationFailure(w.id)
		p.metrics.IncrPoolReplacements()
		w.destroy()
		p.mu.Lock()
		p.underReplacement++
		p.mu.Unlock()
		go p.replace()
		p.reportUtilization()
		return
	}

	p.deliver(w)
	p.reportUtilization()
}

// replace asynchronously creates a fresh worker after a recycle and hands
// it to the waiter queue head, or into the idle set.
func (p *ResourcePool) replace() {
	id := p.nextWorkerID()
	w, err := newWorkerResource(context.Background(), id, p.factory, p.cfg)
	p.mu.Lock()
	p.underReplacement--
	p.mu.Unlock()
	if err != nil {
		// The pool silently runs one below capacity; the next acquirer
		// either finds an idle worker or times out. A background retry
		// is out of scope for this pipeline's contract.
		return
	}
	logPoolReplacement(id)
	p.deliver(w)
	p.reportUtilization()
}

// deliver hands w directly to the head of the waiter queue, or places it
// in the idle set if no one is waiting.
func (p *ResourcePool) deliver(w *WorkerResource) {
	p.mu.Lock()
	if front := p.waiters.Front(); front != nil {
		p.waiters.Remove(front)
		waiter := front.Value.(*poolWaiter)
		p.mu.Unlock()
		waiter.ch <- w
		return
	}
	p.available = append(p.available, w)
	p.mu.Unlock()
}

// Close destroys every idle worker and marks the pool closed; in-flight
// withWorker calls still release normally.
func (p *ResourcePool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.available
	p.available = nil
	p.mu.Unlock()

	for _, w := range idle {
		w.destroy()
	}
}

// poolRegistryKey identifies a process-global singleton pool by capacity,
// factory identity, and configuration fingerprint. Keying on the factory's
// code pointer keeps factories built from different functions apart;
// closures created from the same function literal share a code pointer,
// so they share one pool when capacity and config also match.
type poolRegistryKey struct {
	capacity    int
	factory     uintptr
	fingerprint string
}

var (
	poolRegistryMu sync.Mutex
	poolRegistry   = map[poolRegistryKey]*ResourcePool{}
)

// configFingerprint is a cheap, stable-within-a-run identifier for the
// subset of Configuration that affects worker construction.
func configFingerprint(cfg Configuration) string {
	return fmt.Sprintf("%v|%v|%d|%d", cfg.PaperSize, cfg.Margins, cfg.MaxUsesBeforeRecreate, cfg.ClearCachesEvery)
}

// GetOrCreatePool returns the process-wide singleton pool for the given
// capacity and configuration, constructing and warming it on first use.
func GetOrCreatePool(ctx context.Context, capacity int, factory EngineFactory, cfg Configuration, metrics Metrics) (*ResourcePool, error) {
	key := poolRegistryKey{
		capacity:    capacity,
		factory:     reflect.ValueOf(factory).Pointer(),
		fingerprint: configFingerprint(cfg),
	}

	poolRegistryMu.Lock()
	if p, ok := poolRegistry[key]; ok {
		poolRegistryMu.Unlock()
		return p, nil
	}
	poolRegistryMu.Unlock()

	p, err := NewResourcePool(ctx, capacity, factory, cfg, metrics)
	if err != nil {
		return nil, err
	}

	poolRegistryMu.Lock()
	if existing, ok := poolRegistry[key]; ok {
		poolRegistryMu.Unlock()
		p.Close()
		return existing, nil
	}
	poolRegistry[key] = p
	poolRegistryMu.Unlock()
	return p, nil
}

// resetPoolRegistryForTest clears the process-global pool registry; tests
// that exercise GetOrCreatePool use it to avoid cross-test singleton
// leakage.
func resetPoolRegistryForTest() {
	poolRegistryMu.Lock()
	defer poolRegistryMu.Unlock()
	for _, p := range poolRegistry {
		p.Close()
	}
	poolRegistry = map[poolRegistryKey]*ResourcePool{}
}
