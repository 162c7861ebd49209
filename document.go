// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

func newUUID() string {
	return uuid.NewString()
}

// Sink is the output destination for a rendered document: either
// a path on the host filesystem or an in-memory byte sink. The core does
// not interpret a Sink beyond the methods below.
type Sink interface {
	// path returns the filesystem path this sink commits to, and whether
	// this sink is file-backed at all (in-memory sinks return false).
	path() (string, bool)
	// commit delivers the final PDF bytes to the sink. File-backed sinks
	// have already been committed atomically by the time commit is
	// called (see atomiccommit.go); commit only runs the in-memory path.
	commit(data []byte) error
}

// FileSink commits rendered bytes to a path on the host filesystem via
// write-temp-then-rename.
type FileSink struct {
	Path string
}

func NewFileSink(path string) FileSink { return FileSink{Path: path} }

func (f FileSink) path() (string, bool) { return f.Path, true }

func (f FileSink) commit([]byte) error { return nil } // already committed atomically

// BufferSink collects rendered bytes into an in-memory buffer; no atomic
// commit step applies.
type BufferSink struct {
	buf *bytes.Buffer
}

func NewBufferSink() *BufferSink { return &BufferSink{buf: &bytes.Buffer{}} }

func (b *BufferSink) path() (string, bool) { return "", false }

func (b *BufferSink) commit(data []byte) error {
	b.buf.Reset()
	_, err := b.buf.Write(data)
	return err
}

// Bytes returns the committed PDF bytes, valid after the render completes.
func (b *BufferSink) Bytes() []byte { return b.buf.Bytes() }

// Document is an immutable (html, destination) pair.
type Document struct {
	HTML        []byte
	Destination Sink
}

func NewDocument(html []byte, dest Sink) Document {
	return Document{HTML: html, Destination: dest}
}

// Dimensions is a page's media-box width/height in points.
type Dimensions struct {
	Width  float64
	Height float64
}

// Result is yielded once per successfully rendered document.
type Result struct {
	Destination        Sink
	Index              int
	Duration           time.Duration
	ChosenMode         InternalMode
	PageCount          int
	PageDimensions     []Dimensions
}

// FailedDocument is yielded instead of a Result when ContinueOnError is set
// and a document's render fails (, reserved-for-future in the base
// fail-fast design, activated here as an opt-in mode).
type FailedDocument struct {
	Document Document
	Index    int
	Err      error
	Duration time.Duration
}
