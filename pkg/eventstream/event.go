package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCollectionIndexed is emitted after a collection is re-processed.
	EventTypeCollectionIndexed = "kbase.collection.indexed"

	// EventTypeCollectionDeleted is emitted after a collection is deleted.
	EventTypeCollectionDeleted = "kbase.collection.deleted"
)

// CollectionEvent is a transport-neutral event payload describing a change to
// one collection.
type CollectionEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Collection    string    `json:"collection"`
	Units         int       `json:"units"`
	Dimension     int       `json:"dimension"`

	// Persisted is false when the collection is live in memory but writing it
	// to storage failed.
	Persisted bool `json:"persisted"`

	// Source names the document the collection was built from, when known.
	Source string `json:"source,omitempty"`
}

// NewCollectionIndexedEvent builds an indexed event with a fresh id.
func NewCollectionIndexedEvent(collection string, units, dimension int, persisted bool) *CollectionEvent {
	return &CollectionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCollectionIndexed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Collection:    collection,
		Units:         units,
		Dimension:     dimension,
		Persisted:     persisted,
	}
}

// NewCollectionDeletedEvent builds a deleted event with a fresh id.
func NewCollectionDeletedEvent(collection string) *CollectionEvent {
	return &CollectionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCollectionDeleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Collection:    collection,
		Persisted:     true,
	}
}
