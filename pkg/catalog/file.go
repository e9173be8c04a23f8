package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-varref/internal/debounce"
)

// DefaultWatchDebounce coalesces bursts of file events from editors that
// save in several steps.
const DefaultWatchDebounce = 100 * time.Millisecond

// FileCatalog reads the catalog from a JSON or YAML file. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON.
type FileCatalog struct {
	path     string
	debounce time.Duration
}

// NewFileCatalog returns a catalog backed by path.
func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path, debounce: DefaultWatchDebounce}
}

// Path returns the backing file path.
func (c *FileCatalog) Path() string {
	return c.path
}

// GetVariables implements Catalog.
func (c *FileCatalog) GetVariables(_ context.Context) ([]Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", c.path, err)
	}
	if c.isYAML() {
		return DecodeYAML(c.path, data)
	}
	return DecodeJSON(c.path, data)
}

func (c *FileCatalog) isYAML() bool {
	switch strings.ToLower(filepath.Ext(c.path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Watch calls onChange after the file is written, created, renamed or
// removed, until ctx is done. The parent directory is watched so atomic
// replace-on-save is seen. Watch blocks; it returns nil when ctx ends.
func (c *FileCatalog) Watch(ctx context.Context, onChange func()) error {
	if onChange == nil {
		return fmt.Errorf("catalog: watch %s: onChange is required", c.path)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watch %s: %w", c.path, err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(c.path)
	if err != nil {
		return fmt.Errorf("catalog: watch %s: %w", c.path, err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", c.path, err)
	}

	d := debounce.New(c.debounce)
	defer d.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			d.Trigger(onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("catalog: watch %s: %w", c.path, err)
		}
	}
}
