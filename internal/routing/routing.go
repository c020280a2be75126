// Package routing selects the evacuation exit for a zone.
package routing

import (
	"fmt"
	"math"

	"github.com/crowdeval/crowdeval/internal/geo"
	"github.com/crowdeval/crowdeval/pkg/core"
)

// Result is the outcome of capacity-aware routing. Exit is nil when no exit
// is open.
type Result struct {
	Exit             *core.ExitPoint
	Distance         float64 // pixels
	CapacityExceeded bool
	Warning          string
}

// FindNearestOpenExit returns the OPEN exit closest to anchor, measured in the
// pixel space of size. Both anchor and exits are normalized. When several exits
// share the minimum distance the first one in input order wins.
func FindNearestOpenExit(anchor core.Point, exits []core.ExitPoint, size core.FrameSize) *core.ExitPoint {
	exit, _ := nearest(anchor, exits, size)
	return exit
}

func nearest(anchor core.Point, exits []core.ExitPoint, size core.FrameSize) (*core.ExitPoint, float64) {
	from := size.Denormalize(anchor)

	var best *core.ExitPoint
	bestDist := math.Inf(1)
	for i := range exits {
		if !exits[i].Open() {
			continue
		}
		d := geo.Distance(from, size.Denormalize(exits[i].Point))
		if d < bestDist {
			best = &exits[i]
			bestDist = d
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestDist
}

// Route picks the nearest open exit and flags it when its capacity is below
// the number of occupants. Over-capacity exits stay eligible.
func Route(anchor core.Point, occupants int, exits []core.ExitPoint, size core.FrameSize) Result {
	exit, dist := nearest(anchor, exits, size)
	if exit == nil {
		return Result{Warning: "no open exit available"}
	}

	res := Result{Exit: exit, Distance: dist}
	if exit.Capacity < float64(occupants) {
		res.CapacityExceeded = true
		res.Warning = fmt.Sprintf("%s capacity %.0f/min is below %d occupants", exit.Name, exit.Capacity, occupants)
	}
	return res
}
