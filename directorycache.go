// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"os"
	"path/filepath"
	"sync"
)

// DirectoryCache deduplicates parent-directory existence checks across a
// batch. A fresh instance is scoped to one BatchScheduler
// invocation so overlapping batches never
// clear each other's entries.
type DirectoryCache struct {
	mu      sync.Mutex
	known   map[string]struct{}
}

func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{known: make(map[string]struct{})}
}

// ensure validates that path is a directory, creating it if createIfNeeded
// is set. Fast path is a lock-protected set membership check.
func (dc *DirectoryCache) ensure(path string, createIfNeeded bool) error {
	if path == "" {
		return nil
	}

	dc.mu.Lock()
	if _, ok := dc.known[path]; ok {
		dc.mu.Unlock()
		return nil
	}
	dc.mu.Unlock()

	if createIfNeeded {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return newPathError(DirectoryCreationFailed, "ensure directory", path, err)
		}
	} else {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return newPathError(InvalidFilePath, "ensure directory", path, err)
		}
	}

	dc.mu.Lock()
	dc.known[path] = struct{}{}
	dc.mu.Unlock()
	return nil
}

// clear removes all entries; invoked at batch termination regardless of
// outcome.
func (dc *DirectoryCache) clear() {
	dc.mu.Lock()
	dc.known = make(map[string]struct{})
	dc.mu.Unlock()
}

// parentDir returns the directory a Sink's path lives in, or "" for a
// non-file-backed sink.
func parentDir(s Sink) (string, bool) {
	p, ok := s.path()
	if !ok || p == "" {
		return "", false
	}
	return filepath.Dir(p), true
}
