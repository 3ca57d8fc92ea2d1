package overlay

import (
	"math"

	"github.com/aretw0/tourguide/pkg/domain"
)

// TopOffset is the distance from the top of the visible document used when the
// callout fits neither below nor above the region.
const TopOffset = 20

// Place computes the document-absolute position of a callout of the given size.
//
// With a region the callout goes below it if it fits in the viewport, else above it
// if it fits, else TopOffset pixels below the top of the visible document. Its left
// edge follows the region, pulled back so the right edge stays inside the viewport.
// Without a region the callout is centered in the viewport.
func Place(region *domain.Region, callout domain.Size, m domain.PageMetrics) domain.Point {
	vw := float64(m.Viewport.Width)
	vh := float64(m.Viewport.Height)

	if region == nil {
		return domain.Point{
			X: vw/2 - callout.Width/2 + m.ScrollX,
			Y: vh/2 - callout.Height/2 + m.ScrollY,
		}
	}

	// Viewport-relative box, as the page would report it.
	boxTop := region.Top - m.ScrollY
	boxBottom := boxTop + region.Height
	boxLeft := region.Left - m.ScrollX

	var y float64
	switch {
	case boxBottom+callout.Height <= vh:
		y = boxBottom + m.ScrollY
	case boxTop-callout.Height >= 0:
		y = boxTop - callout.Height + m.ScrollY
	default:
		y = m.ScrollY + TopOffset
	}

	x := math.Min(boxLeft, vw-callout.Width) + m.ScrollX
	return domain.Point{X: x, Y: y}
}
