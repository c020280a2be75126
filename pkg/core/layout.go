// pkg/core/layout.go
package core

// Zone is a named polygonal region of the camera frame.
type Zone struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Polygon []Point `json:"polygon"` // normalized
	Area    float64 `json:"area"`    // square meters, administrator estimate
}

// ExitPoint is a candidate evacuation target.
type ExitPoint struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Point    Point      `json:"point"`    // normalized
	Capacity float64    `json:"capacity"` // people per minute
	Status   ExitStatus `json:"status"`
}

// Open reports whether the exit may be used for routing.
func (e ExitPoint) Open() bool {
	return e.Status == ExitOpen
}

// Layout is the zone and exit configuration of a monitored area.
type Layout struct {
	Zones []Zone      `json:"zones"`
	Exits []ExitPoint `json:"exits"`
}

// Clone returns a deep copy so exit toggles do not leak between owners.
func (l Layout) Clone() Layout {
	out := Layout{
		Zones: make([]Zone, len(l.Zones)),
		Exits: make([]ExitPoint, len(l.Exits)),
	}
	for i, z := range l.Zones {
		z.Polygon = append([]Point(nil), z.Polygon...)
		out.Zones[i] = z
	}
	copy(out.Exits, l.Exits)
	return out
}
