package engine

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/samcharles93/mchat/internal/inference"
	"github.com/samcharles93/mchat/internal/logger"
	"github.com/samcharles93/mchat/internal/tokenizer"
)

// Cache memoizes loads by identifier. Concurrent callers for the same
// identifier share one load; failed loads are forgotten.
type Cache struct {
	loader Loader
	log    logger.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	ready  chan struct{}
	handle *Handle
	err    error
}

func NewCache(loader Loader, log logger.Logger) *Cache {
	if log == nil {
		log = logger.Default()
	}
	return &Cache{
		loader:  loader,
		log:     log,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the handle for id, loading it on first use.
func (c *Cache) Get(ctx context.Context, id string) (*Handle, error) {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		entry = &cacheEntry{ready: make(chan struct{})}
		c.entries[id] = entry
		c.mu.Unlock()
		c.load(ctx, id, entry)
	} else {
		c.mu.Unlock()
	}

	select {
	case <-entry.ready:
		return entry.handle, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context, id string, entry *cacheEntry) {
	defer close(entry.ready)
	c.log.Info("loading model", "model", id)
	entry.handle, entry.err = c.loader.Load(ctx, id)
	if entry.err != nil {
		c.log.Error("model load failed", "model", id, "error", entry.err)
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return
	}
	h := entry.handle
	if h.Tokenizer != nil {
		c.log.Debug("model ready", "model", id, "specials", len(tokenizer.SpecialIDs(h.Tokenizer)), "stops", h.Stops.IDs())
	} else {
		c.log.Debug("model ready", "model", id)
	}
}

// Generator resolves id to its generator.
func (c *Cache) Generator(ctx context.Context, id string) (inference.Generator, error) {
	h, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.Generator, nil
}

// Loaded lists identifiers with a completed load.
func (c *Cache) Loaded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, e := range c.entries {
		select {
		case <-e.ready:
			if e.err == nil {
				ids = append(ids, id)
			}
		default:
		}
	}
	slices.Sort(ids)
	return ids
}

// Close releases every loaded model.
func (c *Cache) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		<-e.ready
		if e.err == nil {
			errs = append(errs, e.handle.Close())
		}
	}
	return errors.Join(errs...)
}
