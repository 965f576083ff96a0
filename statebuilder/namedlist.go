package statebuilder

import (
	"github.com/janelia-flyem/ngstate/ngstate"
)

// Named is anything with a name, e.g., a Layer.
type Named interface {
	Name() string
}

// NamedList is an ordered collection that can also be indexed by name.  Names
// should be unique; when they are not, lookup by name returns the first item with
// that name.
type NamedList[T Named] struct {
	items []T
	index map[string]int
}

// NewNamedList returns a list holding the given items.
func NewNamedList[T Named](items ...T) *NamedList[T] {
	n := &NamedList[T]{index: make(map[string]int)}
	n.Append(items...)
	return n
}

// Append adds items to the end of the list.
func (n *NamedList[T]) Append(items ...T) {
	for _, item := range items {
		name := item.Name()
		if _, found := n.index[name]; found {
			ngstate.Warningf("duplicate name %q in list; lookups by name return the first\n", name)
		} else {
			n.index[name] = len(n.items)
		}
		n.items = append(n.items, item)
	}
}

// Len returns the number of items.
func (n *NamedList[T]) Len() int {
	return len(n.items)
}

// At returns the i-th item.
func (n *NamedList[T]) At(i int) T {
	return n.items[i]
}

// Get returns the first item with the given name.
func (n *NamedList[T]) Get(name string) (T, error) {
	i, found := n.index[name]
	if !found {
		var zero T
		return zero, ngstate.NotFoundf("no item named %q", name)
	}
	return n.items[i], nil
}

// Contains returns true if an item has the given name.
func (n *NamedList[T]) Contains(name string) bool {
	_, found := n.index[name]
	return found
}

// Items returns the items in order.
func (n *NamedList[T]) Items() []T {
	return append([]T{}, n.items...)
}

// Names returns the item names in order.
func (n *NamedList[T]) Names() []string {
	names := make([]string, len(n.items))
	for i, item := range n.items {
		names[i] = item.Name()
	}
	return names
}
