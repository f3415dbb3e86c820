// Package cache keeps rendered proxy responses in memory, keyed by a ~1 km
// coordinate cell, and derives the ETags the proxy answers conditional
// requests with.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Freshness windows. Open-Meteo refreshes current conditions every 15
// minutes and daily aggregates far less often.
const (
	TTLWeather  = 5 * time.Minute
	TTLForecast = 30 * time.Minute
)

const sweepEvery = time.Minute

// Entry is one stored response body.
type Entry struct {
	Body    []byte
	ETag    string
	Expires time.Time
}

func (e Entry) live(now time.Time) bool { return now.Before(e.Expires) }

// Stats is the snapshot reported by the health endpoint.
type Stats struct {
	Enabled bool   `json:"enabled"`
	Entries int    `json:"entries"`
	Live    int    `json:"live"`
	Stale   int    `json:"stale"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache is safe for concurrent use. A disabled Cache stores nothing but
// still hands out ETags.
type Cache struct {
	enabled bool
	now     func() time.Time

	mu    sync.RWMutex
	items map[string]Entry

	hits   atomic.Uint64
	misses atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
}

// New returns a cache; enabled caches sweep stale entries in the background
// until Close.
func New(enabled bool) *Cache {
	c := &Cache{
		enabled: enabled,
		now:     time.Now,
		items:   make(map[string]Entry),
		done:    make(chan struct{}),
	}
	if enabled {
		go c.sweepLoop(sweepEvery)
	}
	return c
}

func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Lookup returns the live entry under key.
func (c *Cache) Lookup(key string) (Entry, bool) {
	if !c.enabled {
		return Entry{}, false
	}
	c.mu.RLock()
	e, found := c.items[key]
	c.mu.RUnlock()

	if !found || !e.live(c.now()) {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

// Store saves body under key for ttl and returns the stored entry.
func (c *Cache) Store(key string, body []byte, ttl time.Duration) Entry {
	e := Entry{Body: body, ETag: ETag(body), Expires: c.now().Add(ttl)}
	if c.enabled {
		c.mu.Lock()
		c.items[key] = e
		c.mu.Unlock()
	}
	return e
}

func (c *Cache) Stats() Stats {
	s := Stats{Enabled: c.enabled, Hits: c.hits.Load(), Misses: c.misses.Load()}

	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	s.Entries = len(c.items)
	for _, e := range c.items {
		if e.live(now) {
			s.Live++
		}
	}
	s.Stale = s.Entries - s.Live
	return s
}

func (c *Cache) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.sweep()
		}
	}
}

// sweep drops expired entries and reports how many went.
func (c *Cache) sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.items {
		if !e.live(now) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// WeatherKey is the cell key for the current-conditions proxy.
func WeatherKey(lat, lon float64) string { return cellKey("weather", lat, lon) }

// ForecastKey is the cell key for the daily forecast proxy.
func ForecastKey(lat, lon float64) string { return cellKey("forecast", lat, lon) }

// cellKey snaps coordinates to two decimals so requests from the same ~1 km
// cell share an entry.
func cellKey(kind string, lat, lon float64) string {
	return fmt.Sprintf("%s:%.2f:%.2f", kind, snap(lat), snap(lon))
}

func snap(f float64) float64 {
	r := math.Round(f*100) / 100
	if r == 0 {
		return 0 // -0 and 0 share a cell
	}
	return r
}

// ETag returns a weak validator over body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}

// NotModified reports whether an If-None-Match header value matches etag.
// The header may list several validators; comparison is weak (RFC 9110
// 13.1.2), so W/"x" and "x" match each other.
func NotModified(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	want := opaque(etag)
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if opaque(strings.TrimSpace(candidate)) == want {
			return true
		}
	}
	return false
}

func opaque(tag string) string {
	return strings.TrimPrefix(tag, "W/")
}
