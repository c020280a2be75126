package geo

import (
	"math"

	"github.com/crowdeval/crowdeval/pkg/core"
)

// PointInPolygon reports whether p lies inside polygon using a horizontal ray
// cast towards +X. An odd number of edge crossings means inside.
//
// Edges are tested half-open on Y, so horizontal edges never count and a ray
// passing through a vertex is counted once. Points on the minimum X or Y
// boundary of an axis-aligned rectangle are inside, points on the maximum
// boundary are outside. Polygons with fewer than 3 vertices contain nothing.
func PointInPolygon(p core.Point, polygon []core.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := polygon[i], polygon[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			crossX := (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if p.X < crossX {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Centroid returns the arithmetic mean of the polygon's vertices. This is the
// vertex average, not the area-weighted centroid. An empty polygon yields the
// zero point.
func Centroid(polygon []core.Point) core.Point {
	if len(polygon) == 0 {
		return core.Point{}
	}
	var sx, sy float64
	for _, v := range polygon {
		sx += v.X
		sy += v.Y
	}
	n := float64(len(polygon))
	return core.Point{X: sx / n, Y: sy / n}
}

// DenormalizePolygon maps normalized vertices into the pixel space of size.
func DenormalizePolygon(polygon []core.Point, size core.FrameSize) []core.Point {
	out := make([]core.Point, len(polygon))
	for i, v := range polygon {
		out[i] = size.Denormalize(v)
	}
	return out
}

// Distance is the Euclidean distance between two points.
func Distance(a, b core.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
