// Package vector provides the collection entity, the in-memory collection
// store and the persistence contract used by kbase.
package vector

import "context"

// Persister writes collections to, and reads them back from, durable storage.
//
// Implementations must keep text units and vectors in separate artifacts and
// must round-trip both exactly: a Save followed by a Load in a fresh process
// returns an identical Collection.
type Persister interface {
	// Save replaces any persisted state for c.ID() with c.
	Save(ctx context.Context, c *Collection) error

	// Load reads the persisted collection with the given id.
	// A missing collection returns an error wrapping ErrNotFound; count or
	// decode problems return an error wrapping ErrCorruptIndex.
	Load(ctx context.Context, id string) (*Collection, error)

	// Delete removes any persisted state for id. Deleting an absent
	// collection is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all persisted collections.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the persister.
	Close() error
}
