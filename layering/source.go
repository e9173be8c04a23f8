package layering

import (
	"fmt"
	"slices"
	"strings"
)

// Source identifies where a configuration layer came from. Higher sources
// override lower ones.
type Source int

const (
	// SourceUnknown marks a layer without provenance; such layers are ignored.
	SourceUnknown Source = iota
	// SourceDefaults holds built-in defaults.
	SourceDefaults
	// SourceFile holds values read from a config file.
	SourceFile
	// SourceEnv holds values read from the environment.
	SourceEnv
	// SourceFlags holds values set on the command line.
	SourceFlags
)

func (s Source) String() string {
	switch s {
	case SourceDefaults:
		return "defaults"
	case SourceFile:
		return "file"
	case SourceEnv:
		return "env"
	case SourceFlags:
		return "flags"
	default:
		return "unknown"
	}
}

// ParseSource converts a name into a Source. Unrecognised names yield
// SourceUnknown.
func ParseSource(value string) Source {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "defaults", "default":
		return SourceDefaults
	case "file":
		return SourceFile
	case "env", "environment":
		return SourceEnv
	case "flags", "flag", "cli":
		return SourceFlags
	default:
		return SourceUnknown
	}
}

// Layer is one configuration value with its provenance.
type Layer[T any] struct {
	Source Source
	Name   string // file path, env prefix or similar
	Value  T
}

// Label returns a stable description such as "file:/etc/varref.yaml".
func (l Layer[T]) Label() string {
	if l.Name == "" {
		return l.Source.String()
	}
	return fmt.Sprintf("%s:%s", l.Source, l.Name)
}

// Stack orders layers from strongest to weakest.
type Stack[T any] struct {
	ordered []Layer[T]
}

// NewStack drops layers of unknown source and duplicate labels, then sorts
// stronger sources first. Peers keep their relative order.
func NewStack[T any](layers ...Layer[T]) Stack[T] {
	filtered := make([]Layer[T], 0, len(layers))
	seen := map[string]struct{}{}
	for _, layer := range layers {
		if layer.Source == SourceUnknown {
			continue
		}
		label := layer.Label()
		if _, exists := seen[label]; exists {
			continue
		}
		seen[label] = struct{}{}
		filtered = append(filtered, layer)
	}

	slices.SortStableFunc(filtered, func(a, b Layer[T]) int {
		switch {
		case a.Source == b.Source:
			return 0
		case a.Source > b.Source:
			return -1
		default:
			return 1
		}
	})
	return Stack[T]{ordered: filtered}
}

// Ordered returns the layers from strongest (index 0) to weakest.
func (s Stack[T]) Ordered() []Layer[T] {
	out := make([]Layer[T], len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Labels lists the layer labels from strongest to weakest.
func (s Stack[T]) Labels() []string {
	out := make([]string, len(s.ordered))
	for i, layer := range s.ordered {
		out[i] = layer.Label()
	}
	return out
}

// Resolve overlays the stack into a single value.
func (s Stack[T]) Resolve() T {
	values := make([]T, len(s.ordered))
	for i, layer := range s.ordered {
		values[i] = layer.Value
	}
	return Overlay(values...)
}
