package ports

import (
	"context"

	"github.com/aretw0/tourguide/pkg/domain"
)

// StepSource turns a natural-language query into a tutorial.
// This allows the panel to be decoupled from the remote extraction service.
type StepSource interface {
	// ResolveQuery finds a tutorial describing how to perform action in software.
	ResolveQuery(ctx context.Context, action, software string) (domain.Tutorial, error)
}

// Catalog lists tutorials authored locally.
type Catalog interface {
	// Get returns the tutorial with the given ID.
	Get(ctx context.Context, id string) (domain.Tutorial, error)

	// List returns every tutorial of the catalog, without guaranteeing an order.
	List(ctx context.Context) ([]domain.Tutorial, error)
}

// RegionRequest is one image-based lookup of a step target.
type RegionRequest struct {
	Step     domain.Step
	Capture  domain.Capture
	Viewport domain.Viewport
}

// RegionResult is the answer of a region detection service.
// Points are viewport-relative corners (top-left, top-right, bottom-left at minimum);
// they are empty when the target was not found on the image.
type RegionResult struct {
	Step   domain.Step
	Points []domain.Point
}

// RegionDetector locates a step target on a raster capture of the viewport.
type RegionDetector interface {
	DetectRegion(ctx context.Context, req RegionRequest) (RegionResult, error)
}
