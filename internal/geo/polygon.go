package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crowdeval/crowdeval/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidPolygon is returned when a zone polygon fails validation.
var ErrInvalidPolygon = errors.New("invalid polygon")

// ParsePolygon parses a JSON array of normalized coordinates.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolygon(input string) ([]core.Point, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polygon JSON: %w", err)
	}

	polygon := make([]core.Point, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		polygon[i] = core.Point{X: coord[0], Y: coord[1]}
	}

	return polygon, nil
}

// ValidatePolygon checks that a normalized polygon has at least 3 vertices,
// stays within [0,1] and forms a valid simple ring.
func ValidatePolygon(polygon []core.Point) error {
	if len(polygon) < 3 {
		return fmt.Errorf("%w: need at least 3 vertices, got %d", ErrInvalidPolygon, len(polygon))
	}
	for i, v := range polygon {
		if v.X < 0 || v.X > 1 || v.Y < 0 || v.Y > 1 {
			return fmt.Errorf("%w: vertex %d (%g,%g) outside normalized range", ErrInvalidPolygon, i, v.X, v.Y)
		}
	}
	r, err := ring(polygon)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	if _, err := geom.NewPolygon([]geom.LineString{r}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	return nil
}

// PolygonWKT renders the polygon as WKT with an explicitly closed ring.
// Rendering skips geometric validation so stored layouts round-trip as
// authored; an empty polygon renders as POLYGON EMPTY.
func PolygonWKT(polygon []core.Point) string {
	if len(polygon) == 0 {
		return geom.Polygon{}.AsText()
	}
	r, err := ring(polygon, geom.DisableAllValidations)
	if err != nil {
		return geom.Polygon{}.AsText()
	}
	p, err := geom.NewPolygon([]geom.LineString{r}, geom.DisableAllValidations)
	if err != nil {
		return geom.Polygon{}.AsText()
	}
	return p.AsText()
}

// ring builds a closed LineString from the polygon's vertices.
func ring(polygon []core.Point, opts ...geom.ConstructorOption) (geom.LineString, error) {
	flat := make([]float64, 0, (len(polygon)+1)*2)
	for _, v := range polygon {
		flat = append(flat, v.X, v.Y)
	}
	first, last := polygon[0], polygon[len(polygon)-1]
	if first != last {
		flat = append(flat, first.X, first.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY), opts...)
}
