package core

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
)

// Definition is the type-erased view of a Binding, used by callers that pick
// a record type at runtime (HTTP routes, CLI flags).
type Definition interface {
	Info() TypeInfo
	Columns() []Column
	Lookup(key string) (Column, bool)
	RecordType() reflect.Type
	Validate() error

	// ReadAny imports a workbook into records boxed as any.
	ReadAny(ctx context.Context, filename string, r io.Reader) (*ImportResult[any], error)

	// BuildJSON decodes a JSON array of records and exports them.
	BuildJSON(data []byte) (*Workbook, error)

	// Template returns a workbook holding only the header row.
	Template() (*Workbook, error)
}

var (
	registry   = make(map[string]Definition)
	byType     = make(map[reflect.Type]Definition)
	registryMu sync.RWMutex
)

// Register adds a record type binding to the registry.
// Panics if the key or the Go type is already registered, or if the
// binding fails validation.
func Register(def Definition) {
	if err := def.Validate(); err != nil {
		panic(err.Error())
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	key := def.Info().Key
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("record type already registered: %s", key))
	}
	if other, exists := byType[def.RecordType()]; exists {
		panic(fmt.Sprintf("go type %s already registered as %s", def.RecordType(), other.Info().Key))
	}

	registry[key] = def
	byType[def.RecordType()] = def
}

// Get returns a record type definition by key.
// Returns false if not found.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// BindingFor returns the registered binding of T.
func BindingFor[T any]() (*Binding[T], bool) {
	registryMu.RLock()
	def, ok := byType[reflect.TypeFor[T]()]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}

	b, ok := def.(*Binding[T])
	return b, ok
}

// All returns all registered definitions.
// Sorted by group then by key for consistent ordering.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Info(), result[j].Info()
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Key < b.Key
	})

	return result
}

// ByGroup returns all definitions for a specific group.
// Sorted by key for consistent ordering.
func ByGroup(group string) []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []Definition
	for _, def := range registry {
		if def.Info().Group == group {
			result = append(result, def)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info().Key < result[j].Info().Key
	})

	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Info().Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// TypeCount returns the number of registered record types.
func TypeCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered record types and cached field lookups.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
	byType = make(map[reflect.Type]Definition)
	columnCache.Clear()
}
