// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"bytes"
	"container/list"
	"hash/fnv"
	"sync"
)

// cssInjectionCacheCapacity is the fixed insertion-order queue capacity.
const cssInjectionCacheCapacity = 100

// CSSInjectionCache memoizes CSS-into-HTML splice results keyed by a
// 64-bit hash of (html, css). Eviction removes the
// least-recently-inserted entry on overflow — an insertion-order queue,
// not a recency-of-use LRU. The doubly-linked-list eviction
// idiom is simplified to the single bounded queue described here.
type CSSInjectionCache struct {
	mu      sync.Mutex
	order   *list.List // front = oldest
	entries map[uint64]*list.Element
}

type cssCacheEntry struct {
	key    uint64
	result []byte
}

func NewCSSInjectionCache() *CSSInjectionCache {
	return &CSSInjectionCache{
		order:   list.New(),
		entries: make(map[uint64]*list.Element),
	}
}

func cssCacheKey(html, css []byte) uint64 {
	h := fnv.New64a()
	h.Write(html)
	h.Write([]byte{0}) // disambiguate a boundary shift between html and css
	h.Write(css)
	return h.Sum64()
}

// inject returns the spliced byte sequence for (html, css), computing and
// storing it on a cache miss.
func (c *CSSInjectionCache) inject(html, css []byte) []byte {
	key := cssCacheKey(html, css)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		result := el.Value.(*cssCacheEntry).result
		c.mu.Unlock()
		return result
	}
	c.mu.Unlock()

	spliced := spliceCSS(html, css)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		// Lost a race with another writer for the same key; keep theirs.
		result := el.Value.(*cssCacheEntry).result
		c.mu.Unlock()
		return result
	}
	if c.order.Len() >= cssInjectionCacheCapacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cssCacheEntry).key)
		}
	}
	el := c.order.PushBack(&cssCacheEntry{key: key, result: spliced})
	c.entries[key] = el
	c.mu.Unlock()

	return spliced
}

var (
	tagHeadClose = []byte("</head>")
	tagHeadOpen  = []byte("<head>")
	tagBody      = []byte("<body")
)

// spliceCSS implements the case-insensitive splice algorithm.
func spliceCSS(html, css []byte) []byte {
	lower := bytes.ToLower(html)

	if idx := bytes.Index(lower, tagHeadClose); idx >= 0 {
		return spliceAt(html, css, idx)
	}
	if idx := bytes.Index(lower, tagHeadOpen); idx >= 0 {
		closeIdx := bytes.IndexByte(html[idx:], '>')
		if closeIdx >= 0 {
			return spliceAt(html, css, idx+closeIdx+1)
		}
	}
	if idx := bytes.Index(lower, tagBody); idx >= 0 {
		return spliceAt(html, css, idx)
	}
	return append(append([]byte{}, css...), html...)
}

func spliceAt(html, css []byte, pos int) []byte {
	out := make([]byte, 0, len(html)+len(css))
	out = append(out, html[:pos]...)
	out = append(out, css...)
	out = append(out, html[pos:]...)
	return out
}
