package varref

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-varref/pkg/catalog"
	"golang.org/x/sync/singleflight"
)

// Catalog is the variable catalog service a Registry loads from.
type Catalog = catalog.Catalog

const loadKey = "catalog"

// Registry caches the variable catalog. It is populated lazily on first
// lookup, invalidated only by ClearCache and safe for concurrent use.
// Readers always see a complete Snapshot.
type Registry struct {
	catalog Catalog
	cfg     settings
	log     componentLogger

	group      singleflight.Group
	mu         sync.Mutex
	current    atomic.Pointer[Snapshot]
	lastGood   atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// NewRegistry returns a registry backed by c. A nil catalog yields an
// always-empty registry that logs ErrCatalogNotConfigured on load.
func NewRegistry(c Catalog, opts ...Option) *Registry {
	cfg := applyOptions(opts)
	return &Registry{
		catalog: c,
		cfg:     cfg,
		log:     newComponentLogger(cfg.logger, "registry"),
	}
}

// Load fetches the catalog and merges it into the cache, returning the
// merged records. Concurrent calls share one fetch. Load never fails: on
// error the failure is logged and the last known records (or none) are
// returned.
func (r *Registry) Load(ctx context.Context) []VariableRecord {
	return r.load(ctx).Records()
}

// Snapshot returns the cached records, loading them on first use.
func (r *Registry) Snapshot(ctx context.Context) *Snapshot {
	if snap := r.current.Load(); snap != nil {
		return snap
	}
	return r.load(ctx)
}

// ClearCache drops the cache so the next lookup reloads. A fetch already in
// flight is forgotten and its result is not cached. The last good records
// are kept only as a fallback for failed reloads.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	r.generation.Add(1)
	r.current.Store(nil)
	r.mu.Unlock()
	r.group.Forget(loadKey)
	r.log.debug("cache cleared", nil)
}

// Loaded reports whether the cache currently holds a successful load.
func (r *Registry) Loaded() bool {
	return r.current.Load() != nil
}

// FindByID looks up a record by id.
func (r *Registry) FindByID(ctx context.Context, id string) (VariableRecord, bool) {
	return r.Snapshot(ctx).FindByID(id)
}

// FindBySourceField looks up a record by source name and field.
func (r *Registry) FindBySourceField(ctx context.Context, source, field string) (VariableRecord, bool) {
	return r.Snapshot(ctx).FindBySourceField(source, field)
}

// FindByShortID looks up a record by id prefix; see Snapshot.FindByShortID.
func (r *Registry) FindByShortID(ctx context.Context, shortID string) (VariableRecord, bool) {
	return r.Snapshot(ctx).FindByShortID(shortID)
}

func (r *Registry) load(ctx context.Context) *Snapshot {
	if ctx == nil {
		ctx = context.Background()
	}
	gen := r.generation.Load()
	result, _, _ := r.group.Do(loadKey, func() (any, error) {
		return r.fetch(ctx, gen), nil
	})
	snap, _ := result.(*Snapshot)
	if snap == nil {
		return r.fallback()
	}
	return snap
}

func (r *Registry) fetch(ctx context.Context, gen uint64) *Snapshot {
	started := time.Now()
	if r.catalog == nil {
		r.log.timed(LevelWarn, "catalog fetch failed", started, &CatalogFetchError{Err: ErrCatalogNotConfigured}, nil)
		return r.fallback()
	}

	entries, err := r.catalog.GetVariables(ctx)
	var partial *catalog.PartialError
	if errors.As(err, &partial) {
		r.log.warn("catalog items rejected", partial, map[string]any{"rejected": partial.Skipped})
		err = nil
	}
	if err != nil {
		r.log.timed(LevelWarn, "catalog fetch failed", started, &CatalogFetchError{Err: err}, map[string]any{
			"fallback_records": r.fallback().Len(),
		})
		return r.fallback()
	}

	incoming := make([]VariableRecord, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		record, ok := recordFromEntry(entry)
		if !ok {
			skipped++
			continue
		}
		incoming = append(incoming, record)
	}
	if skipped > 0 {
		r.log.debug("catalog entries skipped", map[string]any{"skipped": skipped})
	}

	r.mu.Lock()
	var base []VariableRecord
	if existing := r.current.Load(); existing != nil {
		base = existing.records
	}
	snap := newSnapshot(mergeRecords(base, incoming), r.log)
	stale := r.generation.Load() != gen
	if !stale {
		r.current.Store(snap)
	}
	r.lastGood.Store(snap)
	r.mu.Unlock()

	r.log.timed(LevelInfo, "catalog loaded", started, nil, map[string]any{
		"entries": len(entries),
		"records": snap.Len(),
		"stale":   stale,
	})
	if r.cfg.broadcaster != nil {
		r.cfg.broadcaster.catalogRefreshed(ctx, snap.Len(), len(entries))
	}
	return snap
}

// fallback returns the cache, else the last good load, else an empty
// snapshot.
func (r *Registry) fallback() *Snapshot {
	if snap := r.current.Load(); snap != nil {
		return snap
	}
	if snap := r.lastGood.Load(); snap != nil {
		return snap
	}
	return newSnapshot(nil, r.log)
}
