// Package retriever ranks the units of a collection against a query
// embedding by cosine similarity.
package retriever

import (
	"fmt"
	"math"
	"sort"

	"github.com/papercomputeco/kbase/pkg/vector"
)

// DefaultTopK is the number of results returned when topK is not positive.
const DefaultTopK = 3

// Result is a single retrieved text unit.
type Result struct {
	// Collection is the id of the collection the unit came from.
	Collection string `json:"collection"`

	// Index is the unit's position within its collection.
	Index int `json:"index"`

	// Text is the unit content.
	Text string `json:"text"`

	// Score is the cosine similarity to the query, in [-1, 1].
	Score float32 `json:"score"`
}

// Search scores every unit of c against query, keeps the topK best and then
// drops those scoring below threshold. Results are ordered by descending
// score; equal scores keep insertion order.
//
// A nil or empty collection returns an empty result. A query whose
// dimension differs from the collection's returns vector.ErrDimensionMismatch.
func Search(c *vector.Collection, query []float32, topK int, threshold float32) ([]Result, error) {
	if c.IsEmpty() {
		return []Result{}, nil
	}

	if len(query) != c.Dimension() {
		return nil, fmt.Errorf("%w: query has dimension %d, collection %q has %d",
			vector.ErrDimensionMismatch, len(query), c.ID(), c.Dimension())
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	scored := make([]Result, c.Len())
	for i := range scored {
		scored[i] = Result{
			Collection: c.ID(),
			Index:      i,
			Text:       c.Text(i),
			Score:      Cosine(query, c.Vector(i)),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	out := make([]Result, 0, len(scored))
	for _, r := range scored {
		if r.Score < threshold {
			continue
		}
		out = append(out, r)
	}

	return out, nil
}

// Cosine returns the cosine similarity of a and b, computed in float64.
// A zero vector on either side yields 0. Vectors of different length are
// compared over their common prefix.
func Cosine(a, b []float32) float32 {
	n := min(len(a), len(b))

	var dot, na, nb float64
	for i := range n {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
