package vector

import "errors"

var (
	// ErrEmptyInput is returned when there is nothing to index or search.
	ErrEmptyInput = errors.New("empty input")

	// ErrDimensionMismatch is returned when an embedding dimension conflicts
	// with the dimension of an existing collection or query.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLengthMismatch is returned when the number of text units and the
	// number of vectors handed to a collection differ.
	ErrLengthMismatch = errors.New("text and vector counts differ")

	// ErrCorruptIndex is returned when a persisted collection is missing,
	// unreadable, or its text and vector counts disagree.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrPersistence is returned when a collection cannot be written to
	// durable storage.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound is returned when a persisted collection does not exist.
	ErrNotFound = errors.New("collection not found")
)
