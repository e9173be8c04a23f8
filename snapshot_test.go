package varref

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-varref/grammar"
	"github.com/goliatone/go-varref/pkg/catalog"
	"github.com/google/go-cmp/cmp"
)

func sampleSnapshot(t *testing.T, opts ...Option) *Snapshot {
	t.Helper()
	var records []VariableRecord
	for _, e := range sampleEntries() {
		rec, ok := recordFromEntry(e)
		if !ok {
			t.Fatalf("sample entry %q rejected", e.ID)
		}
		records = append(records, rec)
	}
	return NewSnapshot(records, opts...)
}

func TestSnapshotFindBySourceField(t *testing.T) {
	snap := NewSnapshot([]VariableRecord{
		{ID: "a1", SourceName: "Boss", Field: "Name"},
		{ID: "b2", SourceName: "boss", Field: "name"},
		{ID: "c3", SourceName: "合同 文件", Field: "ＰＡＴＨ"},
	})

	cases := []struct {
		name          string
		source, field string
		want          string
	}{
		{name: "exact", source: "boss", field: "name", want: "b2"},
		{name: "exact_first_case", source: "Boss", field: "Name", want: "a1"},
		{name: "fold_catalog_order", source: "BOSS", field: "NAME", want: "a1"},
		{name: "fuzzy_width_and_space", source: "合同文件", field: "path", want: "c3"},
		{name: "missing", source: "npc", field: "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := snap.FindBySourceField(tc.source, tc.field)
			if tc.want == "" {
				if ok {
					t.Fatalf("expected no match, got %q", rec.ID)
				}
				return
			}
			if !ok || rec.ID != tc.want {
				t.Fatalf("expected %q, got %q (found=%v)", tc.want, rec.ID, ok)
			}
		})
	}
}

func TestSnapshotFindByShortIDIgnoresCaseAndSeparators(t *testing.T) {
	snap := NewSnapshot([]VariableRecord{
		{ID: "9F3A-11C2-0000", SourceName: "task", Field: "status"},
	})
	for _, short := range []string{"9f3a", "9F3A11", "9f3a-11c"} {
		if rec, ok := snap.FindByShortID(short); !ok || rec.SourceName != "task" {
			t.Fatalf("expected %q to match, got %+v", short, rec)
		}
	}
	if _, ok := snap.FindByShortID("--"); ok {
		t.Fatalf("expected separator-only short id to miss")
	}
}

func TestSnapshotResolvesGeneratedShortIDsOfSeparatedIDs(t *testing.T) {
	records := []VariableRecord{
		{ID: "ab-c1234", SourceName: "npc", Field: "name"},
		{ID: "x_9-k2", SourceName: "task", Field: "status"},
	}
	snap := NewSnapshot(records)
	for _, want := range records {
		short := grammar.ShortID(want.ID, 4)
		rec, ok := snap.FindByShortID(short)
		if !ok || rec.ID != want.ID {
			t.Fatalf("expected generated short id %q to find %q, got %+v", short, want.ID, rec)
		}
	}

	translator := NewTranslator(snap)
	display := translator.ToDisplayForm(context.Background(), "@gv_ab-c1234_name")
	if display != "@npc.name#abc1" {
		t.Fatalf("unexpected display form %q", display)
	}
	if system := translator.ToSystemForm(context.Background(), "@renamed.name#abc1"); system != "@gv_ab-c1234_name" {
		t.Fatalf("expected short id to resolve across separators, got %q", system)
	}
}

func TestSnapshotFindByShortIDAmbiguityKeepsCatalogOrder(t *testing.T) {
	logger := &captureLogger{}
	snap := NewSnapshot([]VariableRecord{
		{ID: "abcd0001", SourceName: "npc", Field: "name"},
		{ID: "abcd0002", SourceName: "npc", Field: "age"},
	}, WithLogger(logger))

	rec, ok := snap.FindByShortID("abcd")
	if !ok || rec.ID != "abcd0001" {
		t.Fatalf("expected first catalog match, got %+v", rec)
	}
	event, found := logger.find(LevelWarn, "ambiguous short id")
	if !found {
		t.Fatalf("expected ambiguity warning")
	}
	var ambiguous *AmbiguousShortIDError
	if !errors.As(event.Err, &ambiguous) {
		t.Fatalf("expected AmbiguousShortIDError, got %v", event.Err)
	}
	if diff := cmp.Diff([]string{"abcd0001", "abcd0002"}, ambiguous.Candidates); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotFindSystem(t *testing.T) {
	snap := NewSnapshot([]VariableRecord{
		{ID: "r1", SourceID: "src-9", SourceName: "npc", Field: "name"},
		{ID: "r2", SourceID: "src-9", SourceName: "npc", Field: "age"},
	})

	if rec, ok := snap.FindSystem("r2", ""); !ok || rec.Field != "age" {
		t.Fatalf("expected record id match, got %+v", rec)
	}
	if _, ok := snap.FindSystem("r2", "name"); ok {
		t.Fatalf("expected field disagreement to miss")
	}
	if rec, ok := snap.FindSystem("src-9", "age"); !ok || rec.ID != "r2" {
		t.Fatalf("expected source id plus field match, got %+v", rec)
	}
	if _, ok := snap.FindSystem("", "age"); ok {
		t.Fatalf("expected empty id to miss")
	}
}

func TestSnapshotSearch(t *testing.T) {
	snap := sampleSnapshot(t)

	got := snap.Search("@npc.nam", 0)
	if len(got) == 0 || got[0].ID != "abc123" {
		t.Fatalf("expected npc.name first, got %+v", got)
	}
	if got := snap.Search("name", 1); len(got) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(got))
	}
	if got := snap.Search("zzz", 0); len(got) != 0 {
		t.Fatalf("expected no hits, got %+v", got)
	}
}

func TestNilSnapshotIsEmpty(t *testing.T) {
	var snap *Snapshot
	if snap.Len() != 0 || len(snap.Records()) != 0 {
		t.Fatalf("expected nil snapshot to be empty")
	}
	if _, ok := snap.FindByID("x"); ok {
		t.Fatalf("expected nil snapshot lookups to miss")
	}
	if _, ok := snap.FindByShortID("abcd"); ok {
		t.Fatalf("expected nil snapshot short id lookup to miss")
	}
	if snap.Search("x", 0) != nil {
		t.Fatalf("expected nil search result")
	}
}

func TestRecordFromEntryNormalizes(t *testing.T) {
	entries, err := catalog.DecodeJSON("inline", []byte(`{"data": [
		{"id": " r1 ", "name": "name", "type": " NPC ", "source": {"id": "s1", "name": "npc"}, "value": "小明"},
		{"id": "r2", "name": "ignored", "identifier": "@task.status", "value": 3},
		{"name": "count", "source": {"name": "stats"}, "value": 1.5},
		{"id": "r4", "identifier": "@workflow.flags#ab12", "type": "workflow", "value": {"on": true}}
	]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var got []VariableRecord
	for _, e := range entries {
		rec, ok := recordFromEntry(e)
		if !ok {
			t.Fatalf("entry %+v rejected", e)
		}
		got = append(got, rec)
	}

	want := []VariableRecord{
		{ID: "r1", SourceID: "s1", SourceName: "npc", Field: "name", Type: TypeNPC, Value: "小明"},
		{ID: "r2", SourceName: "task", Field: "status", Type: TypeUnknown, Value: "3"},
		{ID: syntheticID("stats", "count"), SourceName: "stats", Field: "count", Type: TypeUnknown, Value: "1.5"},
		{ID: "r4", SourceName: "workflow", Field: "flags", Type: TypeWorkflow, Value: `{"on":true}`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if syntheticID("stats", "count") != syntheticID("stats", "count") {
		t.Fatalf("synthetic ids must be stable")
	}
}

func TestStringifyValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{float64(2), "2"},
		{0.25, "0.25"},
		{true, "true"},
		{42, "42"},
		{[]any{"a", 1}, `["a",1]`},
	}
	for _, tc := range cases {
		if got := stringifyValue(tc.in); got != tc.want {
			t.Fatalf("stringifyValue(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
