package catalog

import (
	"context"
	"sync"
)

// MemoryCatalog is an in-memory Catalog intended for tests and examples. It
// counts fetches and can be told to fail.
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries []Entry
	err     error
	calls   int
}

// NewMemoryCatalog returns a catalog serving entries in order.
func NewMemoryCatalog(entries ...Entry) *MemoryCatalog {
	return &MemoryCatalog{entries: cloneEntries(entries)}
}

// GetVariables implements Catalog.
func (c *MemoryCatalog) GetVariables(_ context.Context) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return cloneEntries(c.entries), nil
}

// Set replaces the served entries.
func (c *MemoryCatalog) Set(entries ...Entry) {
	c.mu.Lock()
	c.entries = cloneEntries(entries)
	c.mu.Unlock()
}

// Put replaces the entry with the same id or appends it.
func (c *MemoryCatalog) Put(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].ID == entry.ID {
			c.entries[i] = cloneEntry(entry)
			return
		}
	}
	c.entries = append(c.entries, cloneEntry(entry))
}

// SetError makes subsequent fetches fail with err. A nil err restores
// normal behaviour.
func (c *MemoryCatalog) SetError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Calls reports how many fetches were served or failed.
func (c *MemoryCatalog) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

func cloneEntries(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, entry := range entries {
		out[i] = cloneEntry(entry)
	}
	return out
}

func cloneEntry(entry Entry) Entry {
	if entry.Source != nil {
		source := *entry.Source
		entry.Source = &source
	}
	return entry
}
