package varref

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-varref/pkg/catalog"
)

func newTestEditor(t *testing.T, opts ...Option) (*Editor, *catalog.MemoryCatalog) {
	t.Helper()
	cat := catalog.NewMemoryCatalog(sampleEntries()...)
	e := NewEditor(NewRegistry(cat, opts...), opts...)
	t.Cleanup(e.Close)
	return e, cat
}

func TestEditorInsertVariable(t *testing.T) {
	e, _ := newTestEditor(t)
	ctx := context.Background()
	rec := VariableRecord{ID: "abc123", SourceName: "npc", Field: "name", Type: TypeNPC}

	e.InsertVariable(ctx, rec)
	if got := e.RawContent(); got != "@npc.name#abc1" {
		t.Fatalf("unexpected raw %q", got)
	}
	e.UpdateRichContent(ctx, ContentTriple{RawText: "Hi "})
	triple := e.InsertVariable(ctx, rec)
	if triple.RawText != "Hi @npc.name#abc1" {
		t.Fatalf("expected no doubled space, got %q", triple.RawText)
	}
	if tags := variableTags(t, triple.HTML); len(tags) != 1 || tags[0]["data-variable-id"] != "abc123" {
		t.Fatalf("expected inserted tag in %s", triple.HTML)
	}
}

func TestEditorParseExternalContentNormalizesIdentifiers(t *testing.T) {
	e, _ := newTestEditor(t)
	ctx := context.Background()

	triple := e.ParseExternalContent(ctx, `<p>Hello <b>@gv_abc123_name</b></p><p>@npc.name#abc1</p>`)
	if triple.RawText != "Hello @npc.name#abc1\n@npc.name#abc1" {
		t.Fatalf("unexpected raw %q", triple.RawText)
	}
	if got := e.StorageContent(ctx); got != "Hello @gv_abc123_name\n@gv_abc123_name" {
		t.Fatalf("unexpected storage form %q", got)
	}
	if got := e.RawContent(); got != triple.RawText {
		t.Fatalf("storage conversion must not change the document, got %q", got)
	}
}

func TestEditorResolvedContentRefreshesCatalog(t *testing.T) {
	e, cat := newTestEditor(t)
	ctx := context.Background()

	e.ParseExternalContent(ctx, "Hi @npc.name")
	if got := e.ResolvedContent(ctx); got != "Hi 小明" {
		t.Fatalf("unexpected resolution %q", got)
	}
	calls := cat.Calls()

	cat.Put(entry("abc123", "npc", "name", "npc", "小红"))
	if got := e.ResolvedContent(ctx); got != "Hi 小红" {
		t.Fatalf("expected fresh value, got %q", got)
	}
	if cat.Calls() != calls+1 {
		t.Fatalf("expected one refetch, got %d calls after %d", cat.Calls(), calls)
	}
}

func TestEditorUpdateRichContentPrefersHTML(t *testing.T) {
	e, _ := newTestEditor(t)
	ctx := context.Background()

	triple := e.UpdateRichContent(ctx, ContentTriple{
		HTML:    "<p>from html</p>",
		RawText: "from raw",
	})
	if triple.RawText != "from html" || e.RichContent() != triple {
		t.Fatalf("expected html to win, got %+v", triple)
	}
	triple = e.UpdateRichContent(ctx, ContentTriple{RawText: "line one\nline two"})
	if triple.HTML != "<p>line one</p><p>line two</p>" || triple.PlainText != "line one\nline two" {
		t.Fatalf("expected projections recomputed from raw, got %+v", triple)
	}
}

func TestEditorScheduleSyncCoalesces(t *testing.T) {
	e, _ := newTestEditor(t, WithDebounceWindow(time.Hour))
	ctx := context.Background()

	e.ScheduleSync(ctx, "first")
	e.ScheduleSync(ctx, "second")
	if e.RawContent() != "" {
		t.Fatalf("expected sync to wait for the window")
	}
	if !e.Flush() {
		t.Fatalf("expected a pending sync")
	}
	if got := e.RawContent(); got != "second" {
		t.Fatalf("expected the last input, got %q", got)
	}
	if e.Flush() {
		t.Fatalf("expected nothing pending after flush")
	}
}

func TestEditorScheduleSyncFiresAfterWindow(t *testing.T) {
	e, _ := newTestEditor(t, WithDebounceWindow(5*time.Millisecond))
	e.ScheduleSync(context.Background(), "later")

	deadline := time.Now().Add(2 * time.Second)
	for e.RawContent() != "later" {
		if time.Now().After(deadline) {
			t.Fatalf("scheduled sync never ran")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEditorCloseDropsPendingSync(t *testing.T) {
	e, _ := newTestEditor(t, WithDebounceWindow(time.Hour))
	e.ScheduleSync(context.Background(), "dropped")
	e.Close()
	if e.Flush() {
		t.Fatalf("expected close to drop the pending sync")
	}
	e.ScheduleSync(context.Background(), "ignored")
	if e.Flush() || e.RawContent() != "" {
		t.Fatalf("expected triggers after close to be ignored")
	}
}

func TestEditorFollowAdoptsDisplayUpdates(t *testing.T) {
	b := NewBroadcaster()
	e, cat := newTestEditor(t, WithBroadcaster(b))
	e.Follow(b)
	ctx := context.Background()

	e.UpdateRichContent(ctx, ContentTriple{RawText: "Hi @npc.name#abc1"})
	other := NewTranslator(NewRegistry(cat), WithBroadcaster(b))

	other.ToSystemForm(ctx, "Hi @npc.name#abc1")
	if got := e.RawContent(); got != "Hi @npc.name#abc1" {
		t.Fatalf("system form must not be adopted, got %q", got)
	}

	b.Publish(ctx, IdentifiersUpdate{
		OriginalText: "unrelated",
		UpdatedText:  "unrelated @npc.name#abc1",
		Direction:    DirectionToDisplay,
	})
	if got := e.RawContent(); got != "Hi @npc.name#abc1" {
		t.Fatalf("updates for other text must be ignored, got %q", got)
	}

	b.Publish(ctx, IdentifiersUpdate{
		OriginalText: "Hi @npc.name#abc1",
		UpdatedText:  "Hi @角色.name#abc1",
		Direction:    DirectionToDisplay,
	})
	triple := e.RichContent()
	if triple.RawText != "Hi @角色.name#abc1" || !strings.Contains(triple.HTML, "@角色.name#abc1") {
		t.Fatalf("expected followed update, got %+v", triple)
	}

	e.Close()
	b.Publish(ctx, IdentifiersUpdate{
		OriginalText: "Hi @角色.name#abc1",
		UpdatedText:  "changed",
		Direction:    DirectionToDisplay,
	})
	if e.RawContent() != "Hi @角色.name#abc1" {
		t.Fatalf("expected close to stop following")
	}
}

func TestEditorWithoutRegistry(t *testing.T) {
	e := NewEditor(nil)
	defer e.Close()
	ctx := context.Background()

	e.ParseExternalContent(ctx, "keep @npc.name")
	if got := e.ResolvedContent(ctx); got != "keep @npc.name" {
		t.Fatalf("expected identifiers left in place, got %q", got)
	}
	if got := e.StorageContent(ctx); got != "keep @npc.name" {
		t.Fatalf("expected storage unchanged, got %q", got)
	}
}
