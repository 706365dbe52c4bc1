// Package cache is the content-addressed store of decoded PCM buffers:
// per-URI load coalescing, LRU eviction bounded by entry count, and
// pinning for buffers currently referenced by a player.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/dsp"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// Priority labels a load as awaited by a caller (playback) or
// opportunistic (prefetch). Get accepts it but loads both kinds the
// same way.
type Priority int

const (
	PriorityPrefetch Priority = iota
	PriorityPlayback
)

// LoadError wraps a decoder failure for one URI.
type LoadError struct {
	URI   string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URI, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// TimeoutError reports a load that exceeded its deadline.
type TimeoutError struct {
	URI     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("load %s: timed out after %v", e.URI, e.Timeout)
}

// Loader decodes one URI into a buffer and track metadata.
type Loader func(uri string) (*audio.Buffer, audio.Track, error)

// Options configures the cache.
type Options struct {
	// MaxEntries bounds the LRU; <= 0 means the default of 16.
	MaxEntries int
	// LoadTimeout bounds each decode; <= 0 means no timeout.
	LoadTimeout time.Duration
	// Normalize runs loudness normalization on every loaded buffer.
	Normalize        bool
	NormalizeOptions dsp.NormalizeOptions
}

type entry struct {
	uri   string
	buf   *audio.Buffer
	track audio.Track
}

type inflight struct {
	done  chan struct{}
	buf   *audio.Buffer
	track audio.Track
	err   error
}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	loader   Loader
	opts     Options
	entries  map[string]*list.Element // value: *entry
	order    *list.List               // front = most recent
	pins     map[string]int
	inflight map[string]*inflight
}

// New creates a cache around the given loader.
func New(loader Loader, opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 16
	}
	return &Cache{
		loader:   loader,
		opts:     opts,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		pins:     make(map[string]int),
		inflight: make(map[string]*inflight),
	}
}

// Get returns the decoded buffer for uri, loading it on a miss.
// Concurrent calls for the same URI share one decode. The context
// cancels this caller's wait, not the shared load.
func (c *Cache) Get(ctx context.Context, uri string, prio Priority) (*audio.Buffer, audio.Track, error) {
	c.mu.Lock()
	if el, ok := c.entries[uri]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*entry)
		c.mu.Unlock()
		return e.buf, e.track, nil
	}
	fl, loading := c.inflight[uri]
	if !loading {
		fl = &inflight{done: make(chan struct{})}
		c.inflight[uri] = fl
		go c.load(uri, fl)
	}
	c.mu.Unlock()

	select {
	case <-fl.done:
		return fl.buf, fl.track, fl.err
	case <-ctx.Done():
		return nil, audio.Track{URI: uri}, ctx.Err()
	}
}

// Preload warms the cache in the background. No-op if the URI is
// already cached or loading.
func (c *Cache) Preload(uri string) {
	c.mu.Lock()
	if _, ok := c.entries[uri]; ok {
		c.mu.Unlock()
		return
	}
	if _, ok := c.inflight[uri]; ok {
		c.mu.Unlock()
		return
	}
	fl := &inflight{done: make(chan struct{})}
	c.inflight[uri] = fl
	c.mu.Unlock()
	go c.load(uri, fl)
}

// load runs the decode, optional normalization, and installs the entry.
func (c *Cache) load(uri string, fl *inflight) {
	defer close(fl.done)

	type result struct {
		buf   *audio.Buffer
		track audio.Track
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		buf, track, err := c.loader(uri)
		if err == nil && c.opts.Normalize {
			buf, err = dsp.Normalize(buf, c.opts.NormalizeOptions)
		}
		resCh <- result{buf, track, err}
	}()

	var res result
	if c.opts.LoadTimeout > 0 {
		select {
		case res = <-resCh:
		case <-time.After(c.opts.LoadTimeout):
			fl.err = &TimeoutError{URI: uri, Timeout: c.opts.LoadTimeout}
			fl.track = audio.Track{URI: uri}
			c.clearInflight(uri)
			return
		}
	} else {
		res = <-resCh
	}

	if res.err != nil {
		fl.err = &LoadError{URI: uri, Cause: res.err}
		fl.track = audio.Track{URI: uri}
		c.clearInflight(uri)
		return
	}

	fl.buf = res.buf
	fl.track = res.track

	c.mu.Lock()
	delete(c.inflight, uri)
	el := c.order.PushFront(&entry{uri: uri, buf: res.buf, track: res.track})
	c.entries[uri] = el
	c.evictLocked()
	c.mu.Unlock()
}

func (c *Cache) clearInflight(uri string) {
	c.mu.Lock()
	delete(c.inflight, uri)
	c.mu.Unlock()
}

// Pin protects uri from eviction while a slot or the overlay references
// its buffer. Pins nest.
func (c *Cache) Pin(uri string) {
	c.mu.Lock()
	c.pins[uri]++
	c.mu.Unlock()
}

// Unpin releases one pin.
func (c *Cache) Unpin(uri string) {
	c.mu.Lock()
	if c.pins[uri] > 1 {
		c.pins[uri]--
	} else {
		delete(c.pins, uri)
	}
	c.evictLocked()
	c.mu.Unlock()
}

// evictLocked drops least-recently-used unpinned entries beyond the
// bound.
func (c *Cache) evictLocked() {
	for c.order.Len() > c.opts.MaxEntries {
		evicted := false
		for el := c.order.Back(); el != nil; el = el.Prev() {
			e := el.Value.(*entry)
			if c.pins[e.uri] > 0 {
				continue
			}
			c.order.Remove(el)
			delete(c.entries, e.uri)
			logger.Debug("cache evict", zap.String("uri", e.uri))
			evicted = true
			break
		}
		if !evicted {
			// Everything over the bound is pinned; give up until the
			// next unpin.
			return
		}
	}
}

// Remove drops one entry regardless of recency (unload).
func (c *Cache) Remove(uri string) {
	c.mu.Lock()
	if el, ok := c.entries[uri]; ok {
		c.order.Remove(el)
		delete(c.entries, uri)
	}
	c.mu.Unlock()
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Contains reports residency without touching recency.
func (c *Cache) Contains(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[uri]
	return ok
}
