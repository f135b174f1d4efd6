// Package remap holds the session-scoped table that maps original shared
// sub-objects to their clones while a graph is being duplicated or restored.
package remap

// Table maps original pointers to their replacements. It lives for a single
// duplication session; a new session must start from a fresh table.
type Table struct {
	entries map[any]any
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[any]any)}
}

// Lookup returns the replacement registered for original.
func (t *Table) Lookup(original any) (any, bool) {
	if t == nil || original == nil {
		return nil, false
	}
	v, ok := t.entries[original]
	return v, ok
}

// Register records replacement for original. A second registration for the same
// original is ignored and the first replacement is returned.
func (t *Table) Register(original, replacement any) any {
	if prev, ok := t.entries[original]; ok {
		return prev
	}
	t.entries[original] = replacement
	return replacement
}

// Resolve returns the registered replacement for original or builds one with
// clone on first encounter. The bool reports whether clone ran.
func Resolve[K comparable, V any](t *Table, original K, clone func(K) V) (V, bool) {
	if v, ok := t.Lookup(original); ok {
		return v.(V), false
	}
	made := clone(original)
	t.Register(original, made)
	return made, true
}

// Len reports the number of registered originals.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
