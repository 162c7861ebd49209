// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"bytes"
	"testing"
)

func TestSpliceCSS(t *testing.T) {
	css := []byte("<style>x</style>")

	tests := []struct {
		name string
		html string
		want string
	}{
		{"head close", "<html><head></head><body></body></html>", "<html><head><style>x</style></head><body></body></html>"},
		{"head open, no head-close tag", "<html><HEAD><title>t</title></html>", "<html><HEAD><style>x</style><title>t</title></html>"},
		{"body only", "<html><body>hi</body></html>", "<html><style>x</style><body>hi</body></html>"},
		{"neither", "plain text", "<style>x</style>plain text"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := spliceCSS([]byte(tc.html), css)
			if !bytes.Equal(got, []byte(tc.want)) {
				t.Errorf("spliceCSS(%q) = %q, want %q", tc.html, got, tc.want)
			}
		})
	}
}

func TestCSSInjectionCache_Eviction(t *testing.T) {
	c := NewCSSInjectionCache()
	for i := 0; i < cssInjectionCacheCapacity+10; i++ {
		html := []byte(bytes.Repeat([]byte{byte(i % 256)}, 4))
		c.inject(html, []byte("<style></style>"))
	}
	if c.order.Len() != cssInjectionCacheCapacity {
		t.Errorf("expected queue bounded at %d, got %d", cssInjectionCacheCapacity, c.order.Len())
	}
}

func TestCSSInjectionCache_Concurrent(t *testing.T) {
	c := NewCSSInjectionCache()
	html := []byte("<html><body></body></html>")
	css := []byte("<style>a</style>")

	done := make(chan []byte, 20)
	for i := 0; i < 20; i++ {
		go func() { done <- c.inject(html, css) }()
	}
	first := <-done
	for i := 1; i < 20; i++ {
		if got := <-done; !bytes.Equal(got, first) {
			t.Error("concurrent injects of identical input diverged")
		}
	}
}
