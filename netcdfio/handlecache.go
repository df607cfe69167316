/*
Copyright © 2024 the ncagg authors.
This file is part of ncagg.

ncagg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ncagg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ncagg.  If not, see <http://www.gnu.org/licenses/>.
*/

package netcdfio

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ctessum/ncagg/config"
	"github.com/golang/groupcache/lru"
)

// HandleCache wraps a GranuleReader with a bounded LRU of open handles (spec
// section 5: "Implementations MAY cache handles with an LRU of bounded
// size"), grounded on emissions/slca/mapserver.go's lru.New/Get/Add cache
// pattern. Descriptor inspection and the evaluator open the same granule
// repeatedly (once during inspection, then once per node per variable
// during evaluation); caching handles avoids re-opening the same file for
// each of those calls.
//
// Close on a handle returned by Open does not close the underlying file;
// the cache closes it when the handle is evicted or when HandleCache.Close
// is called. The cache's lock is held only for the duration of Open, so a
// handle evicted while a caller still uses it is closed underneath that
// caller.
type HandleCache struct {
	reader config.GranuleReader

	mu    sync.Mutex
	cache *lru.Cache
}

// NewHandleCache returns a HandleCache over reader, keeping at most size
// open handles before evicting the least recently used.
func NewHandleCache(reader config.GranuleReader, size int) *HandleCache {
	c := &HandleCache{reader: reader, cache: lru.New(size)}
	c.cache.OnEvicted = func(key lru.Key, value interface{}) {
		value.(config.GranuleHandle).Close()
	}
	return c
}

// Open returns the cached handle for path, opening and caching it on a miss.
func (c *HandleCache) Open(path string) (config.GranuleHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.cache.Get(path); ok {
		return cachedHandle{h.(config.GranuleHandle)}, nil
	}
	h, err := c.reader.Open(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, h)
	return cachedHandle{h}, nil
}

// cachedHandle is the view of a cached handle given to callers: its Close
// leaves the underlying file open for the cache to close on eviction.
type cachedHandle struct {
	config.GranuleHandle
}

func (cachedHandle) Close() error { return nil }

// Close evicts and closes every cached handle.
func (c *HandleCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
	return nil
}

// retryRead wraps a one-shot granule read with a bounded exponential
// backoff retry (spec section 7: one-shot variable copy failures are
// recovered, not fatal), grounded on sr/sr.go's backoff.RetryNotify use
// around a remote job-start call. Transient failures (a granule briefly
// locked by another writer, a flaky network mount) succeed on retry instead
// of being logged and given up on immediately; a permanent failure (a
// missing file, a malformed variable) still surfaces after the retry budget
// is exhausted, for the evaluator to log and recover from as before.
func retryRead(read func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	err := backoff.Retry(func() error {
		v, err := read()
		if err != nil {
			return err
		}
		result = v
		return nil
	}, bo)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RetryReader decorates a GranuleReader so that every ReadSlice call on the
// handles it opens is retried with backoff, per retryRead above. This
// applies to every read made through the wrapped reader: reads for
// unlimited-backed variables and one-shot variable copies alike are retried
// before their error reaches the evaluator.
type RetryReader struct {
	config.GranuleReader
}

// NewRetryReader wraps reader so ReadSlice calls retry on failure.
func NewRetryReader(reader config.GranuleReader) *RetryReader {
	return &RetryReader{GranuleReader: reader}
}

func (r *RetryReader) Open(path string) (config.GranuleHandle, error) {
	h, err := r.GranuleReader.Open(path)
	if err != nil {
		return nil, err
	}
	return &retryHandle{GranuleHandle: h}, nil
}

type retryHandle struct {
	config.GranuleHandle
}

func (h *retryHandle) ReadSlice(variable string, begin, end []int) (interface{}, error) {
	return retryRead(func() (interface{}, error) {
		return h.GranuleHandle.ReadSlice(variable, begin, end)
	})
}
