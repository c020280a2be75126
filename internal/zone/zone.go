// Package zone assigns detections to the zones of a layout.
package zone

import (
	"math"

	"github.com/crowdeval/crowdeval/internal/geo"
	"github.com/crowdeval/crowdeval/pkg/core"
)

// Assign sets each detection's ZoneID to the first zone (in declaration
// order) whose polygon contains it and returns the per-zone counts. Every zone
// is present in the result. Detections outside all zones are cleared and not
// counted anywhere.
//
// Zone polygons are denormalized against size on every call so that a change
// in frame resolution is picked up immediately. Points are tested clamped to
// [0,W)x[0,H), so a detection on the right or bottom frame edge belongs to the
// zone touching that edge. The stored detection point is left unchanged.
func Assign(detections []core.Detection, zones []core.Zone, size core.FrameSize) map[string]int {
	counts := make(map[string]int, len(zones))
	polygons := make([][]core.Point, len(zones))
	for i, z := range zones {
		counts[z.ID] = 0
		polygons[i] = geo.DenormalizePolygon(z.Polygon, size)
	}

	for i := range detections {
		detections[i].ZoneID = ""
		for zi, poly := range polygons {
			if geo.PointInPolygon(clamp(detections[i].Point, size), poly) {
				detections[i].ZoneID = zones[zi].ID
				counts[zones[zi].ID]++
				break
			}
		}
	}

	return counts
}

// clamp moves p into the half-open frame rectangle. Sizes that are not valid
// leave p as is.
func clamp(p core.Point, size core.FrameSize) core.Point {
	if !size.Valid() {
		return p
	}
	w, h := float64(size.Width), float64(size.Height)
	return core.Point{
		X: math.Min(math.Max(p.X, 0), math.Nextafter(w, 0)),
		Y: math.Min(math.Max(p.Y, 0), math.Nextafter(h, 0)),
	}
}
