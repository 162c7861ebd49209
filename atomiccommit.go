// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"os"
	"path/filepath"
)

// atomicCommit writes data to a sibling temporary file and then
// renames/replaces it into place at destination, forbidding partial
// files on crash. For a non-file-backed Sink, data is
// simply handed to Sink.commit; no atomic commit step applies.
func atomicCommit(sink Sink, data []byte) error {
	path, isFile := sink.path()
	if !isFile {
		return sink.commit(data)
	}

	tmp := path + "." + newUUID() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newPathError(PdfGenerationFailed, "write temporary file", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return newPathError(PdfGenerationFailed, "commit file", path, err)
	}
	return nil
}

// cleanupPartial removes a lingering temporary file left behind by a
// cancelled render between "produce bytes" and "atomic commit". It is
// best-effort: failure to remove is not itself an error.
func cleanupPartial(path string) {
	matches, err := filepath.Glob(path + ".*.tmp")
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}
