package vector

import (
	"fmt"
	"strings"
)

// Collection is an immutable, ordered set of text units and their embeddings
// belonging to one document slot. The i-th text corresponds to the i-th
// vector and every vector has the same dimension.
type Collection struct {
	id        string
	texts     []string
	vectors   [][]float32
	dimension int
}

// NewCollection builds a collection from parallel texts and vectors.
// The inputs are copied so later mutation by the caller cannot leak in.
func NewCollection(id string, texts []string, vectors [][]float32) (*Collection, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: collection id is required", ErrEmptyInput)
	}

	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", ErrLengthMismatch, len(texts), len(vectors))
	}

	dim, err := Dimension(vectors)
	if err != nil {
		return nil, err
	}

	c := &Collection{
		id:        id,
		texts:     make([]string, len(texts)),
		vectors:   make([][]float32, len(vectors)),
		dimension: dim,
	}
	copy(c.texts, texts)
	for i, v := range vectors {
		c.vectors[i] = append([]float32(nil), v...)
	}

	return c, nil
}

// EmptyCollection returns a collection with no entries.
func EmptyCollection(id string) *Collection {
	return &Collection{id: id}
}

// Dimension returns the shared dimension of vectors, or 0 when there are none.
// Vectors of differing or zero length return ErrDimensionMismatch.
func Dimension(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: vector 0 is empty", ErrDimensionMismatch)
	}

	for i, v := range vectors[1:] {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrDimensionMismatch, i+1, len(v), dim)
		}
	}

	return dim, nil
}

// ID returns the collection id.
func (c *Collection) ID() string {
	return c.id
}

// Len returns the number of units. A nil collection has length 0.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.texts)
}

// IsEmpty reports whether the collection holds no units.
func (c *Collection) IsEmpty() bool {
	return c.Len() == 0
}

// Dimension returns the embedding dimension, or 0 for an empty collection.
func (c *Collection) Dimension() int {
	if c == nil {
		return 0
	}
	return c.dimension
}

// Text returns the i-th text unit.
func (c *Collection) Text(i int) string {
	return c.texts[i]
}

// Vector returns the i-th embedding. The returned slice must not be modified.
func (c *Collection) Vector(i int) []float32 {
	return c.vectors[i]
}

// Texts returns a copy of the text units in order.
func (c *Collection) Texts() []string {
	out := make([]string, c.Len())
	if c != nil {
		copy(out, c.texts)
	}
	return out
}

// Vectors returns a copy of the embeddings in order.
func (c *Collection) Vectors() [][]float32 {
	out := make([][]float32, c.Len())
	for i := range out {
		out[i] = append([]float32(nil), c.vectors[i]...)
	}
	return out
}
