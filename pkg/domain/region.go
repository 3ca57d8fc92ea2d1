package domain

import "fmt"

// Point is a pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a pixel extent.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Region is a rectangle in document-absolute coordinates (scroll independent).
// A step has at most one region.
type Region struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the y coordinate of the bottom edge.
func (r Region) Bottom() float64 { return r.Top + r.Height }

// Right returns the x coordinate of the right edge.
func (r Region) Right() float64 { return r.Left + r.Width }

// Translate returns the region shifted by (dx, dy).
func (r Region) Translate(dx, dy float64) Region {
	r.Left += dx
	r.Top += dy
	return r
}

// RegionFromPoints builds a region from corner points ordered as
// top-left, top-right, bottom-left (a fourth, bottom-right, point is ignored).
// Coordinates stay in the space of the points.
func RegionFromPoints(points []Point) (Region, error) {
	if len(points) < 3 {
		return Region{}, fmt.Errorf("region needs at least 3 corner points, got %d", len(points))
	}
	tl, tr, bl := points[0], points[1], points[2]
	r := Region{
		Top:    tl.Y,
		Left:   tl.X,
		Width:  tr.X - tl.X,
		Height: bl.Y - tr.Y,
	}
	if r.Width < 0 || r.Height < 0 {
		return Region{}, fmt.Errorf("corner points out of order: %+v", points[:3])
	}
	return r, nil
}
