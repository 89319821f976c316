package core

import (
	"fmt"
	"reflect"
	"sync"
)

// fieldRef identifies one field of one registered record type.
type fieldRef struct {
	typ reflect.Type
	key string
}

// columnCache memoizes fieldRef -> Column resolutions.
// Bindings never change after registration, so entries are never invalidated.
var columnCache sync.Map

// ColumnOf resolves a field key of a registered record type to its column.
// Results are cached process-wide.
func ColumnOf[T any](key string) (Column, error) {
	ref := fieldRef{typ: reflect.TypeFor[T](), key: key}
	if c, ok := columnCache.Load(ref); ok {
		return c.(Column), nil
	}

	b, ok := BindingFor[T]()
	if !ok {
		return Column{}, fmt.Errorf("%w: %s", ErrUnknownType, ref.typ)
	}
	c, ok := b.Lookup(key)
	if !ok {
		return Column{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, ref.typ, key)
	}

	actual, _ := columnCache.LoadOrStore(ref, c)
	return actual.(Column), nil
}

// LabelOf returns the header label bound to a field key, or "" if the key
// is not bound.
func LabelOf[T any](key string) string {
	c, err := ColumnOf[T](key)
	if err != nil {
		return ""
	}
	return c.Label
}
