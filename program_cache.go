package varref

import "sync"

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache shares compiled rule programs through cache.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *settings) {
		cfg.programCache = cache
	}
}

// memoryProgramCache never evicts entries.
type memoryProgramCache struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewProgramCache returns an in-memory ProgramCache safe for concurrent use.
func NewProgramCache() ProgramCache {
	return &memoryProgramCache{items: make(map[string]any)}
}

func (c *memoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.items[key]
	return value, ok
}

func (c *memoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}
