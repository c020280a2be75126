// pkg/core/geometry.go
package core

// Point is a 2D coordinate. Zone vertices and exit positions are authored in
// normalized space ([0,1] on both axes); detections arrive in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FrameSize holds the pixel dimensions of the frame being processed.
type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Denormalize maps a normalized point into pixel space for this frame.
func (s FrameSize) Denormalize(p Point) Point {
	return Point{X: p.X * float64(s.Width), Y: p.Y * float64(s.Height)}
}

// Valid reports whether both dimensions are positive.
func (s FrameSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}
