package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeJSONNormalizesEntries(t *testing.T) {
	entries, err := NewFileCatalog(filepath.Join("testdata", "variables.json")).GetVariables(context.Background())
	var partial *PartialError
	if !errors.As(err, &partial) || partial.Skipped != 1 {
		t.Fatalf("expected the string item reported as skipped, got %v", err)
	}
	if !strings.Contains(err.Error(), "item 2") {
		t.Fatalf("expected skipped item index in %q", err)
	}

	want := []Entry{
		{ID: "abc123", Name: "name", Identifier: "npc.name", Type: "npc", Source: &SourceRef{ID: "src-npc", Name: "npc"}, Value: "小明"},
		{ID: "42", Name: "status", Identifier: "任务.status", Type: "task", Source: &SourceRef{ID: "7", Name: "任务"}, Value: "3"},
		{ID: "c0ffee", Name: "title", Type: "custom", Source: &SourceRef{Name: "测试"}, Value: true},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestDecodeUnwrapsEnvelopes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    int
	}{
		{name: "bare array", payload: `[{"id":"a","name":"x"}]`, want: 1},
		{name: "data envelope", payload: `{"data":[{"id":"a","name":"x"},{"id":"b","name":"y"}]}`, want: 2},
		{name: "nested envelope", payload: `{"data":{"data":[{"id":"a","name":"x"}]}}`, want: 1},
		{name: "null data", payload: `{"data":null}`, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := DecodeJSON("test", []byte(tc.payload))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(entries) != tc.want {
				t.Fatalf("expected %d entries, got %d", tc.want, len(entries))
			}
		})
	}
}

func TestDecodeReportsUndecodableItems(t *testing.T) {
	payload := `{"data":[{"id":"a","name":"x"},{"id":"b","name":["not","text"]},7,{"id":"c","name":"z"}]}`
	entries, err := DecodeJSON("inline", []byte(payload))

	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialError, got %v", err)
	}
	if partial.Origin != "inline" || partial.Skipped != 2 {
		t.Fatalf("unexpected partial error %+v", partial)
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]string{"a", "c"}, ids); diff != "" {
		t.Fatalf("decoded ids mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsUnknownShapes(t *testing.T) {
	for _, payload := range []string{`{"items":[]}`, `"text"`, `{"data":{"data":{"data":{"data":[]}}}}`} {
		if _, err := DecodeJSON("test", []byte(payload)); !errors.Is(err, ErrUnsupportedPayload) {
			t.Fatalf("expected ErrUnsupportedPayload for %s, got %v", payload, err)
		}
	}
	if _, err := DecodeJSON("test", []byte(`{`)); err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestFileCatalogReadsYAML(t *testing.T) {
	entries, err := NewFileCatalog(filepath.Join("testdata", "variables.yaml")).GetVariables(context.Background())
	if err != nil {
		t.Fatalf("get variables: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].ID != "99" || entries[1].SourceName() != "云透" || entries[1].Value != "12" {
		t.Fatalf("unexpected yaml entry %+v", entries[1])
	}
}

func TestFileCatalogMissingFile(t *testing.T) {
	_, err := NewFileCatalog(filepath.Join(t.TempDir(), "missing.json")).GetVariables(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestHTTPClientFetchesEnvelope(t *testing.T) {
	payload, err := os.ReadFile(filepath.Join("testdata", "variables_envelope.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithHeader("Authorization", "Bearer token"), WithTimeout(time.Second))
	entries, err := client.GetVariables(context.Background())
	if err != nil {
		t.Fatalf("get variables: %v", err)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("expected auth header forwarded, got %q", gotAuth)
	}
	if len(entries) != 1 || entries[0].SourceName() != "npc" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestHTTPClientReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "catalog offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).GetVariables(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Body != "catalog offline" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestMemoryCatalog(t *testing.T) {
	mem := NewMemoryCatalog(Entry{ID: "a", Name: "x", Source: &SourceRef{Name: "npc"}})
	entries, _ := mem.GetVariables(context.Background())
	entries[0].Source.Name = "changed"

	mem.Put(Entry{ID: "b", Name: "y"})
	mem.Put(Entry{ID: "a", Name: "z", Source: &SourceRef{Name: "npc"}})
	entries, err := mem.GetVariables(context.Background())
	if err != nil {
		t.Fatalf("get variables: %v", err)
	}
	want := []Entry{
		{ID: "a", Name: "z", Source: &SourceRef{Name: "npc"}},
		{ID: "b", Name: "y"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}

	boom := errors.New("boom")
	mem.SetError(boom)
	if _, err := mem.GetVariables(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if mem.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", mem.Calls())
	}
}

func TestFileCatalogWatchReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "variables.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	fc := NewFileCatalog(path)
	go func() {
		done <- fc.Watch(ctx, func() { changed <- struct{}{} })
	}()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for notified := false; !notified; {
		select {
		case <-changed:
			notified = true
		case <-tick.C:
			if err := os.WriteFile(path, []byte(`[{"id":"a","name":"x"}]`), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatalf("expected a change notification")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected watch to return after cancel")
	}
}
