package varref

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/goliatone/go-varref/pkg/catalog"
)

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	path := filepath.Join(filepath.Dir(file), "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", path, err)
	}
	return out
}

// captureLogger records log events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []LogEvent
}

func (l *captureLogger) Log(event LogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *captureLogger) find(level LogLevel, message string) (LogEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range l.events {
		if event.Level == level && event.Message == message {
			return event, true
		}
	}
	return LogEvent{}, false
}

func (l *captureLogger) count(message string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, event := range l.events {
		if event.Message == message {
			n++
		}
	}
	return n
}

func entry(id, source, field, varType string, value any) catalog.Entry {
	return catalog.Entry{
		ID:         id,
		Name:       field,
		Identifier: source + "." + field,
		Type:       varType,
		Source:     &catalog.SourceRef{Name: source},
		Value:      value,
	}
}

func sampleEntries() []catalog.Entry {
	return []catalog.Entry{
		entry("abc123", "npc", "name", "npc", "小明"),
		entry("cafe1234", "云透", "name", "npc", "云"),
		entry("c0ffee12", "测试", "value", "custom", "42"),
		entry("f11e0001", "合同文件", "path", "", "/tmp/a.pdf"),
	}
}
