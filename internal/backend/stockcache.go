package backend

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SuggestedStockSource resolves the PI suggested stock for a dealer and part.
// found is false when the source has no record for the pair.
type SuggestedStockSource interface {
	SuggestedStock(ctx context.Context, dealerCode, partNumber string) (qty float64, found bool, err error)
}

// StockCache caches suggested-stock lookups per dealer and part to avoid
// repeated backend calls when the same part is predicted for several months.
// Errors are never cached.
type StockCache struct {
	source SuggestedStockSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]cacheEntry
	nextSweep time.Time
}

type cacheEntry struct {
	qty     float64
	found   bool
	expires time.Time
}

func NewStockCache(source SuggestedStockSource, ttl time.Duration) *StockCache {
	return &StockCache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// SuggestedStock returns the cached value or fetches a fresh one.
func (c *StockCache) SuggestedStock(ctx context.Context, dealerCode, partNumber string) (float64, bool, error) {
	if c.ttl <= 0 {
		return c.source.SuggestedStock(ctx, dealerCode, partNumber)
	}

	key := cacheKey(dealerCode, partNumber)
	now := c.now()
	c.mu.Lock()
	ent, ok := c.entries[key]
	if ok && now.Before(ent.expires) {
		c.mu.Unlock()
		return ent.qty, ent.found, nil
	}
	c.mu.Unlock()

	// Fetch without holding the lock.
	qty, found, err := c.source.SuggestedStock(ctx, dealerCode, partNumber)
	if err != nil {
		return 0, false, err
	}

	c.mu.Lock()
	c.sweepLocked(now)
	c.entries[key] = cacheEntry{qty: qty, found: found, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return qty, found, nil
}

// sweepLocked drops expired entries at most once per ttl.
func (c *StockCache) sweepLocked(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	for k, ent := range c.entries {
		if !now.Before(ent.expires) {
			delete(c.entries, k)
		}
	}
	c.nextSweep = now.Add(c.ttl)
}

// Len reports how many entries are held, expired or not.
func (c *StockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every cached entry.
func (c *StockCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Part numbers are matched case-insensitively by the backend.
func cacheKey(dealerCode, partNumber string) string {
	return strings.TrimSpace(dealerCode) + "|" + strings.ToUpper(strings.TrimSpace(partNumber))
}
