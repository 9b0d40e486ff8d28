// Package store defines the item store interface and its implementations.
package store

import "github.com/stevemurr/simple-item-server/item"

// Store is the interface that all item stores must implement.
// It maps an identifier to an Item. Implementations copy items on the way
// in and out, so callers never share memory with stored records.
type Store interface {
	// Get returns the item stored under id and whether it exists.
	Get(id string) (item.Item, bool, error)

	// Set inserts or replaces the item stored under id.
	Set(id string, it item.Item) error

	// Has reports whether an item is stored under id.
	Has(id string) (bool, error)

	// Delete removes an item. Returns true if it existed.
	Delete(id string) (bool, error)

	// List returns every stored item in insertion order.
	List() ([]item.Item, error)

	// Clear removes every item.
	Clear() error

	// Len returns the number of stored items.
	Len() (int, error)
}
