package persistence

import (
	"math"
	"slices"
	"strings"
)

// storedVector is a chunk loaded for in-process nearest-neighbour search.
type storedVector struct {
	id        string
	text      string
	embedding []float64
}

// scored is a storedVector with its distance from the query.
type scored struct {
	id       string
	text     string
	distance float64
}

// euclidean returns the L2 distance between two vectors of equal length.
func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// nearest returns the k vectors closest to query, ascending by distance.
// Ties are broken by id so results are stable. Vectors whose dimension
// differs from the query are skipped.
func nearest(query []float64, vectors []storedVector, k int) []scored {
	if k <= 0 || len(vectors) == 0 {
		return []scored{}
	}
	out := make([]scored, 0, len(vectors))
	for _, v := range vectors {
		if len(v.embedding) != len(query) {
			continue
		}
		out = append(out, scored{id: v.id, text: v.text, distance: euclidean(query, v.embedding)})
	}
	slices.SortFunc(out, func(a, b scored) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return strings.Compare(a.id, b.id)
	})
	if k < len(out) {
		out = out[:k]
	}
	return out
}
