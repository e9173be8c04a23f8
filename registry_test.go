package varref

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goliatone/go-varref/pkg/activity"
	"github.com/goliatone/go-varref/pkg/catalog"
	"github.com/google/go-cmp/cmp"
)

// gatedCatalog blocks every fetch until release is closed.
type gatedCatalog struct {
	entries []catalog.Entry
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedCatalog(entries ...catalog.Entry) *gatedCatalog {
	return &gatedCatalog{
		entries: entries,
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (c *gatedCatalog) GetVariables(ctx context.Context) ([]catalog.Entry, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	c.started <- struct{}{}
	select {
	case <-c.release:
		return c.entries, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *gatedCatalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRegistryLoadsLazilyOnce(t *testing.T) {
	cat := catalog.NewMemoryCatalog(sampleEntries()...)
	reg := NewRegistry(cat)

	if reg.Loaded() {
		t.Fatalf("expected empty registry before first lookup")
	}
	rec, ok := reg.FindByID(context.Background(), "abc123")
	if !ok || rec.SourceName != "npc" || rec.Value != "小明" {
		t.Fatalf("unexpected record %+v (found=%v)", rec, ok)
	}
	if _, ok := reg.FindBySourceField(context.Background(), "云透", "name"); !ok {
		t.Fatalf("expected source/field lookup to hit")
	}
	if rec, ok := reg.FindByShortID(context.Background(), "C0FF"); !ok || rec.ID != "c0ffee12" {
		t.Fatalf("expected case-insensitive short id lookup, got %+v", rec)
	}
	if cat.Calls() != 1 {
		t.Fatalf("expected a single fetch, got %d", cat.Calls())
	}
}

func TestRegistryConcurrentLoadsShareOneFetch(t *testing.T) {
	cat := newGatedCatalog(sampleEntries()...)
	reg := NewRegistry(cat)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = len(reg.Load(context.Background()))
		}(i)
	}
	<-cat.started
	close(cat.release)
	wg.Wait()

	// Callers that arrived after the shared fetch finished start their own.
	if cat.Calls() < 1 || cat.Calls() > callers {
		t.Fatalf("unexpected fetch count %d", cat.Calls())
	}
	for i, n := range results {
		if n != len(sampleEntries()) {
			t.Fatalf("caller %d saw %d records", i, n)
		}
	}
}

func TestRegistryFallsBackToLastGoodRecords(t *testing.T) {
	logger := &captureLogger{}
	cat := catalog.NewMemoryCatalog(sampleEntries()...)
	reg := NewRegistry(cat, WithLogger(logger))

	if got := len(reg.Load(context.Background())); got != 4 {
		t.Fatalf("expected 4 records, got %d", got)
	}

	boom := errors.New("catalog down")
	cat.SetError(boom)
	reg.ClearCache()

	records := reg.Load(context.Background())
	if len(records) != 4 {
		t.Fatalf("expected last good records on failure, got %d", len(records))
	}
	if reg.Loaded() {
		t.Fatalf("expected failed reload to leave the cache empty")
	}
	event, ok := logger.find(LevelWarn, "catalog fetch failed")
	if !ok {
		t.Fatalf("expected fetch failure warning")
	}
	var fetchErr *CatalogFetchError
	if !errors.As(event.Err, &fetchErr) || !errors.Is(event.Err, boom) {
		t.Fatalf("expected CatalogFetchError wrapping cause, got %v", event.Err)
	}

	cat.SetError(nil)
	reg.ClearCache()
	if len(reg.Load(context.Background())) != 4 || !reg.Loaded() {
		t.Fatalf("expected recovery after the catalog comes back")
	}
}

func TestRegistryWithoutCatalogIsEmpty(t *testing.T) {
	logger := &captureLogger{}
	reg := NewRegistry(nil, WithLogger(logger))

	if got := reg.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
	event, ok := logger.find(LevelWarn, "catalog fetch failed")
	if !ok || !errors.Is(event.Err, ErrCatalogNotConfigured) {
		t.Fatalf("expected ErrCatalogNotConfigured warning, got %+v", event)
	}
}

func TestRegistryMergesWithoutDuplicateIDs(t *testing.T) {
	cat := catalog.NewMemoryCatalog(
		entry("a1", "npc", "name", "npc", "old"),
		entry("b2", "npc", "age", "npc", 30),
	)
	reg := NewRegistry(cat)
	reg.Load(context.Background())

	cat.Set(
		entry("c3", "task", "status", "task", "open"),
		entry("a1", "npc", "name", "npc", "new"),
		entry("a1", "npc", "name", "npc", "ignored"),
	)
	got := reg.Load(context.Background())

	want := []string{"a1:new", "b2:30", "c3:open"}
	var ids []string
	for _, rec := range got {
		ids = append(ids, rec.ID+":"+rec.Value)
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}

	reg.ClearCache()
	if got := reg.Load(context.Background()); len(got) != 2 {
		t.Fatalf("expected cleared cache to drop records missing from the catalog, got %d", len(got))
	}
}

func TestRegistryClearCacheDiscardsInFlightFetch(t *testing.T) {
	cat := newGatedCatalog(sampleEntries()...)
	reg := NewRegistry(cat)

	done := make(chan []VariableRecord)
	go func() {
		done <- reg.Load(context.Background())
	}()
	<-cat.started
	reg.ClearCache()
	close(cat.release)

	if got := <-done; len(got) != 4 {
		t.Fatalf("expected in-flight caller to get its records, got %d", len(got))
	}
	if reg.Loaded() {
		t.Fatalf("expected stale fetch not to populate the cleared cache")
	}
	reg.Snapshot(context.Background())
	<-cat.started
	if !reg.Loaded() || cat.Calls() != 2 {
		t.Fatalf("expected a fresh fetch after clearing, got %d calls", cat.Calls())
	}
}

func TestRegistrySkipsUnreferenceableEntries(t *testing.T) {
	logger := &captureLogger{}
	cat := catalog.NewMemoryCatalog(
		entry("a1", "npc", "name", "npc", "x"),
		catalog.Entry{ID: "nofield", Source: &catalog.SourceRef{Name: "npc"}},
		catalog.Entry{ID: "nosource", Name: "orphan"},
	)
	reg := NewRegistry(cat, WithLogger(logger))

	if got := reg.Load(context.Background()); len(got) != 1 {
		t.Fatalf("expected one usable record, got %d", len(got))
	}
	event, ok := logger.find(LevelDebug, "catalog entries skipped")
	if !ok || event.Fields["skipped"] != 2 {
		t.Fatalf("expected skipped entries logged, got %+v", event)
	}
}

func TestRegistryKeepsDecodableItemsOfPartialPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	payload := `[
		{"id": "abc123", "name": "name", "source": {"name": "npc"}, "value": "小明"},
		"stray",
		{"id": "bad", "name": {"nested": true}, "source": {"name": "npc"}}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	logger := &captureLogger{}
	reg := NewRegistry(catalog.NewFileCatalog(path), WithLogger(logger))

	records := reg.Load(context.Background())
	if len(records) != 1 || records[0].ID != "abc123" || !reg.Loaded() {
		t.Fatalf("expected the decodable record cached, got %+v", records)
	}
	event, ok := logger.find(LevelWarn, "catalog items rejected")
	if !ok || event.Fields["rejected"] != 2 {
		t.Fatalf("expected rejected items logged, got %+v", event)
	}
	var partial *catalog.PartialError
	if !errors.As(event.Err, &partial) {
		t.Fatalf("expected PartialError, got %v", event.Err)
	}
	if logger.count("catalog fetch failed") != 0 {
		t.Fatalf("expected a partial payload not to count as a failed fetch")
	}
}

func TestRegistryEmitsCatalogRefreshed(t *testing.T) {
	capture := &activity.CaptureHook{}
	b := NewBroadcaster(WithActivityHooks(activity.Hooks{capture}, activity.Config{Enabled: true}))
	reg := NewRegistry(catalog.NewMemoryCatalog(sampleEntries()...), WithBroadcaster(b))

	reg.Load(context.Background())

	events := capture.Snapshot()
	if len(events) != 1 || events[0].Verb != activity.VerbCatalogRefreshed {
		t.Fatalf("expected one catalog event, got %+v", events)
	}
	if events[0].Metadata["records"] != 4 || events[0].Channel != activity.DefaultChannel {
		t.Fatalf("unexpected catalog event %+v", events[0])
	}
}
