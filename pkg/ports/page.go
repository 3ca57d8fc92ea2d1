package ports

import (
	"context"

	"github.com/aretw0/tourguide/pkg/domain"
)

// ElementQuery narrows the elements a page driver reports.
// Drivers may use Text to pre-filter; callers still verify the match themselves.
type ElementQuery struct {
	Text string
}

// Page is the DOM of one browser tab as seen by the content context.
type Page interface {
	// Elements returns text-bearing elements in document order with document-absolute bounds.
	// Overlay nodes created by the driver itself are never reported.
	Elements(ctx context.Context, query ElementQuery) ([]domain.Element, error)

	// Metrics returns the current viewport and scroll offsets.
	Metrics(ctx context.Context) (domain.PageMetrics, error)

	// RemoveOverlay removes every highlight and callout node. It is a no-op when none exist.
	RemoveOverlay(ctx context.Context) error

	// DrawHighlight draws a highlight box around region.
	DrawHighlight(ctx context.Context, region domain.Region) error

	// MountCallout attaches the callout (hidden or at the origin) and returns its rendered size.
	MountCallout(ctx context.Context, callout domain.Callout) (domain.Size, error)

	// MoveCallout positions the mounted callout at a document-absolute point.
	MoveCallout(ctx context.Context, at domain.Point) error

	// Subscribe registers fn for page events. The returned function detaches it.
	Subscribe(fn func(domain.PageEvent)) (unsubscribe func())
}

// Capturer produces a raster image of the visible viewport of a tab.
type Capturer interface {
	Capture(ctx context.Context) (domain.Capture, error)
}
