// Package layering composes configuration values from several sources.
//
// Layers are ordered from strongest to weakest. A stronger layer wins for
// every field it sets; fields left at their zero value fall through to the
// next layer, so a config file only needs to name what it changes.
package layering

import "reflect"

// Overlay composes layers ordered from strongest to weakest. Zero scalars,
// nil pointers and empty slices or maps in a stronger layer are filled from
// weaker ones; maps are merged key by key. Use a pointer field when the zero
// value must be able to override. The result shares no memory with
// the inputs.
func Overlay[T any](layers ...T) T {
	var out T
	dst := reflect.ValueOf(&out).Elem()
	for i := range layers {
		fillUnset(dst, reflect.ValueOf(&layers[i]).Elem())
	}
	return out
}

// fillUnset copies into dst the parts of src that dst leaves unset. dst must
// be settable and of the same type as src.
func fillUnset(dst, src reflect.Value) {
	switch dst.Kind() {
	case reflect.Struct:
		for i := 0; i < dst.NumField(); i++ {
			if field := dst.Field(i); field.CanSet() {
				fillUnset(field, src.Field(i))
			}
		}
	case reflect.Pointer:
		switch {
		case src.IsNil():
		case dst.IsNil():
			dst.Set(deepCopy(src))
		case dst.Elem().Kind() == reflect.Struct:
			// A set pointer to a scalar is explicit, zero included.
			fillUnset(dst.Elem(), src.Elem())
		}
	case reflect.Map:
		if src.Len() == 0 {
			return
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
		}
		iter := src.MapRange()
		for iter.Next() {
			key := iter.Key()
			current := dst.MapIndex(key)
			if !current.IsValid() {
				dst.SetMapIndex(key, deepCopy(iter.Value()))
				continue
			}
			entry := reflect.New(current.Type()).Elem()
			entry.Set(current)
			fillUnset(entry, iter.Value())
			dst.SetMapIndex(key, entry)
		}
	case reflect.Slice:
		if dst.Len() == 0 && src.Len() > 0 {
			dst.Set(deepCopy(src))
		}
	default:
		if dst.IsZero() && !src.IsZero() {
			dst.Set(deepCopy(src))
		}
	}
}

// deepCopy returns a copy of v that shares no pointers, maps or slices
// with it. Unexported struct fields are left zero.
func deepCopy(v reflect.Value) reflect.Value {
	out := reflect.New(v.Type()).Elem()
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			ptr := reflect.New(v.Type().Elem())
			ptr.Elem().Set(deepCopy(v.Elem()))
			out.Set(ptr)
		}
	case reflect.Interface:
		if !v.IsNil() {
			out.Set(deepCopy(v.Elem()))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(deepCopy(v.Field(i)))
			}
		}
	case reflect.Map:
		if !v.IsNil() {
			m := reflect.MakeMapWithSize(v.Type(), v.Len())
			iter := v.MapRange()
			for iter.Next() {
				m.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
			}
			out.Set(m)
		}
	case reflect.Slice:
		if !v.IsNil() {
			s := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
			for i := 0; i < v.Len(); i++ {
				s.Index(i).Set(deepCopy(v.Index(i)))
			}
			out.Set(s)
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
	default:
		out.Set(v)
	}
	return out
}
