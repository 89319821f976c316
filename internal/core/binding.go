package core

// binding.go declares how a record type maps onto spreadsheet columns.
//
// A binding is built once, usually in an init function, and registered:
//
//	core.Register(core.Bind[Customer]("customers", "Customers").
//	    Group("Sales").
//	    Column("ID", "Customer ID", 1, func(c *Customer) any { return &c.ID }).
//	    Column("Name", "Name", 2, func(c *Customer) any { return &c.Name }).
//	    Column("Notes", "Notes", 0, func(c *Customer) any { return &c.Notes }))
//
// Columns with order 0 are read on import but never exported. Columns with
// a blank label are ignored in both directions.

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Binding maps the fields of T to spreadsheet columns.
// The compiled lookup tables are built lazily on first use and never change.
type Binding[T any] struct {
	info    TypeInfo
	columns []boundColumn[T]

	once     sync.Once
	compiled *schema[T]
}

type boundColumn[T any] struct {
	Column
	access Accessor[T]
}

// schema is the immutable, compiled form of a Binding.
type schema[T any] struct {
	byLabel map[string][]boundColumn[T] // import direction
	byKey   map[string]boundColumn[T]
	imports []boundColumn[T] // declaration order
	exports []boundColumn[T] // ascending Order, ties in declaration order
}

// Bind starts a binding for record type T.
// key identifies the type in the registry; label is its display name.
func Bind[T any](key, label string) *Binding[T] {
	return &Binding[T]{
		info: TypeInfo{Key: key, Label: label},
	}
}

// Group sets the listing group of the record type.
func (b *Binding[T]) Group(group string) *Binding[T] {
	b.info.Group = group
	return b
}

// Column binds one field. The accessor must return a pointer to the field.
// Columns must be declared before the binding is first used.
func (b *Binding[T]) Column(key, label string, order int, access Accessor[T]) *Binding[T] {
	b.columns = append(b.columns, boundColumn[T]{
		Column: Column{Key: key, Label: strings.TrimSpace(label), Order: order},
		access: access,
	})
	return b
}

// Info returns display information including the compiled header lists.
func (b *Binding[T]) Info() TypeInfo {
	s := b.schema()
	info := b.info
	info.Headers = make([]string, len(s.imports))
	for i, c := range s.imports {
		info.Headers[i] = c.Label
	}
	info.ExportHeaders = make([]string, len(s.exports))
	for i, c := range s.exports {
		info.ExportHeaders[i] = c.Label
	}
	return info
}

// Columns returns the usable column descriptors in declaration order.
func (b *Binding[T]) Columns() []Column {
	s := b.schema()
	cols := make([]Column, len(s.imports))
	for i, c := range s.imports {
		cols[i] = c.Column
	}
	return cols
}

// Lookup returns the column bound under a field key.
func (b *Binding[T]) Lookup(key string) (Column, bool) {
	c, ok := b.schema().byKey[key]
	return c.Column, ok
}

// RecordType returns the reflect.Type of T.
func (b *Binding[T]) RecordType() reflect.Type {
	return reflect.TypeFor[T]()
}

// Validate checks the declared columns for mistakes that would make
// header matching ambiguous.
func (b *Binding[T]) Validate() error {
	if strings.TrimSpace(b.info.Key) == "" {
		return fmt.Errorf("binding for %s: empty key", b.RecordType())
	}

	var errs []string
	labels := make(map[string]string, len(b.columns))
	keys := make(map[string]bool, len(b.columns))
	for _, c := range b.columns {
		if c.access == nil {
			errs = append(errs, fmt.Sprintf("column %q has no accessor", c.Key))
		}
		if c.Order < 0 {
			errs = append(errs, fmt.Sprintf("column %q has negative export order %d", c.Key, c.Order))
		}
		if keys[c.Key] {
			errs = append(errs, fmt.Sprintf("duplicate column key %q", c.Key))
		}
		keys[c.Key] = true

		if c.Label == "" {
			continue
		}
		if other, dup := labels[c.Label]; dup {
			errs = append(errs, fmt.Sprintf("header label %q bound to both %q and %q", c.Label, other, c.Key))
		}
		labels[c.Label] = c.Key
	}

	if len(errs) > 0 {
		return fmt.Errorf("binding %s: %s", b.info.Key, strings.Join(errs, "; "))
	}
	return nil
}

func (b *Binding[T]) schema() *schema[T] {
	b.once.Do(func() {
		b.compiled = compile(b.columns)
	})
	return b.compiled
}

func compile[T any](columns []boundColumn[T]) *schema[T] {
	s := &schema[T]{
		byLabel: make(map[string][]boundColumn[T], len(columns)),
		byKey:   make(map[string]boundColumn[T], len(columns)),
	}

	for _, c := range columns {
		if c.Label == "" || c.access == nil {
			continue
		}
		s.byLabel[c.Label] = append(s.byLabel[c.Label], c)
		s.byKey[c.Key] = c
		s.imports = append(s.imports, c)
		if c.Exported() {
			s.exports = append(s.exports, c)
		}
	}

	sort.SliceStable(s.exports, func(i, j int) bool {
		return s.exports[i].Order < s.exports[j].Order
	})

	return s
}
