package handler

import (
	"fmt"
	"maps"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/treffen/confsync/internal/ir"
)

// entity is anything a table can hold.
type entity interface {
	IR() ir.Object
}

// Table holds the entities of one section keyed by natural id.
type Table[T entity] struct {
	section string
	key     func(T) string
	items   map[string]T
}

func newTable[T entity](section string, key func(T) string) *Table[T] {
	return &Table[T]{section: section, key: key, items: make(map[string]T)}
}

// Section returns the document section the table reads.
func (t *Table[T]) Section() string { return t.section }

// Len returns the number of entities.
func (t *Table[T]) Len() int { return len(t.items) }

// Get returns the entity with the given id.
func (t *Table[T]) Get(id string) (T, bool) {
	v, ok := t.items[id]
	return v, ok
}

// Put stores v under its key, replacing any earlier entity.
func (t *Table[T]) Put(v T) {
	t.items[t.key(v)] = v
}

// IDs returns the ids in ascending order.
func (t *Table[T]) IDs() []string {
	return slices.Sorted(maps.Keys(t.items))
}

// Values returns the entities ordered by id.
func (t *Table[T]) Values() []T {
	out := make([]T, 0, len(t.items))
	for _, id := range t.IDs() {
		out = append(out, t.items[id])
	}
	return out
}

// parse decodes a JSON array into the table. An element without an id is an
// error: it could never be addressed again.
func (t *Table[T]) parse(data []byte) error {
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%s: %w", t.section, err)
	}
	for i, row := range rows {
		if t.key(row) == "" {
			return fmt.Errorf("%s: element %d has no id", t.section, i)
		}
		t.Put(row)
	}
	return nil
}

// merge copies every entity of other over t.
func (t *Table[T]) merge(other *Table[T]) {
	for id, v := range other.items {
		t.items[id] = v
	}
}

// project returns {id: IR} for every entity.
func (t *Table[T]) project() ir.Object {
	obj := make(ir.Object, len(t.items))
	for id, v := range t.items {
		obj[id] = v.IR()
	}
	return obj
}
