// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package htmlpdf implements a concurrent HTML-to-PDF rendering pipeline:
// a fixed-capacity pool of thread-affine renderer workers, a
// bounded-concurrency streaming batch scheduler, a per-document render
// state machine, and the caching/metrics surfaces around them.
//
// The underlying rendering engine is an external collaborator; see the
// Engine interface. Package htmlpdf/engine/rodengine provides a concrete
// implementation over a headless browser.
package htmlpdf
