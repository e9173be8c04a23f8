// Package hydrate decodes loosely shaped catalog payload items into typed
// structs, with hooks to normalise each item before and after decoding.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoPayload reports an item that is missing or not an object.
var ErrNoPayload = errors.New("payload is missing or not an object")

// Context identifies the payload item being decoded.
type Context struct {
	Origin string
	Index  int
}

func (c Context) String() string {
	if c.Origin == "" {
		return fmt.Sprintf("item %d", c.Index)
	}
	return fmt.Sprintf("%s item %d", c.Origin, c.Index)
}

// ItemError reports which item failed and at which stage.
type ItemError struct {
	Item  Context
	Stage string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("hydrate: %s %s: %v", e.Stage, e.Item, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// PreHook rewrites the payload before decoding. Returning nil keeps the
// payload it was given.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces JSON decoding.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder turns payload items into T. Build one with NewDecoder and reuse
// it; it holds no per-call state.
type Decoder[T any] struct {
	pre          []PreHook
	post         []PostHook[T]
	useNumber    bool
	strictFields bool
	custom       CustomDecoder[T]
}

func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithUseNumber keeps numbers as json.Number when T holds them in any.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) { d.useNumber = true }
}

// WithDisallowUnknownFields fails items carrying keys T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) { d.strictFields = true }
}

// WithCustomDecoder decodes with fn instead of encoding/json.
func WithCustomDecoder[T any](fn CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) { d.custom = fn }
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode runs the pre hooks, decodes and runs the post hooks. Hooks work on
// a copy of payload. Failures are *ItemError.
func (d *Decoder[T]) Decode(item Context, payload map[string]any) (T, error) {
	var out T
	fail := func(stage string, err error) (T, error) {
		var zero T
		return zero, &ItemError{Item: item, Stage: stage, Err: err}
	}
	if payload == nil {
		return fail("read", ErrNoPayload)
	}

	current, err := copyPayload(payload)
	if err != nil {
		return fail("copy", err)
	}
	for i, hook := range d.pre {
		next, err := hook(item, current)
		if err != nil {
			return fail(fmt.Sprintf("pre-hook %d", i), err)
		}
		if next != nil {
			current = next
		}
	}

	if d.custom != nil {
		if out, err = d.custom(item, current); err != nil {
			return fail("custom decode", err)
		}
	} else if err := d.decodeJSON(current, &out); err != nil {
		return fail("decode", err)
	}

	for i, hook := range d.post {
		if err := hook(item, &out); err != nil {
			return fail(fmt.Sprintf("post-hook %d", i), err)
		}
	}
	return out, nil
}

// DecodeAll decodes every item. Failed items are left out of the values and
// reported in errs, one per item.
func (d *Decoder[T]) DecodeAll(origin string, items []map[string]any) (values []T, errs []error) {
	values = make([]T, 0, len(items))
	for i, payload := range items {
		value, err := d.Decode(Context{Origin: origin, Index: i}, payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values = append(values, value)
	}
	return values, errs
}

func (d *Decoder[T]) decodeJSON(payload map[string]any, out *T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if d.useNumber {
		dec.UseNumber()
	}
	if d.strictFields {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(out)
}

// copyPayload deep copies payload through JSON, keeping numbers exact.
func copyPayload(payload map[string]any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
