package overlay_test

import (
	"testing"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/overlay"
	"github.com/stretchr/testify/assert"
)

func TestPlace(t *testing.T) {
	vp := domain.Viewport{Width: 1200, Height: 1000}
	size := domain.Size{Width: 200, Height: 60}

	tests := []struct {
		name    string
		region  *domain.Region
		size    domain.Size
		metrics domain.PageMetrics
		want    domain.Point
	}{
		{
			name:    "below when it fits",
			region:  &domain.Region{Top: 100, Left: 50, Width: 80, Height: 30},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp},
			want:    domain.Point{X: 50, Y: 130},
		},
		{
			name:    "above near the viewport bottom",
			region:  &domain.Region{Top: 960, Left: 50, Width: 80, Height: 30},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp},
			want:    domain.Point{X: 50, Y: 900},
		},
		{
			name:    "top offset when neither fits",
			region:  &domain.Region{Top: 40, Left: 50, Width: 80, Height: 920},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp},
			want:    domain.Point{X: 50, Y: 20},
		},
		{
			name:    "exact fit below",
			region:  &domain.Region{Top: 900, Left: 0, Width: 10, Height: 40},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp},
			want:    domain.Point{X: 0, Y: 940},
		},
		{
			name:    "right edge clamped to viewport",
			region:  &domain.Region{Top: 100, Left: 1100, Width: 80, Height: 30},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp},
			want:    domain.Point{X: 1000, Y: 130},
		},
		{
			name:    "scrolled document",
			region:  &domain.Region{Top: 2100, Left: 350, Width: 80, Height: 30},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp, ScrollX: 300, ScrollY: 2000},
			want:    domain.Point{X: 350, Y: 2130},
		},
		{
			name:    "scrolled, above",
			region:  &domain.Region{Top: 2960, Left: 350, Width: 80, Height: 30},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp, ScrollX: 300, ScrollY: 2000},
			want:    domain.Point{X: 350, Y: 2900},
		},
		{
			name:    "scrolled, top offset",
			region:  &domain.Region{Top: 2010, Left: 350, Width: 80, Height: 980},
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp, ScrollY: 2000},
			want:    domain.Point{X: 350, Y: 2020},
		},
		{
			name:    "centered without region",
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp},
			want:    domain.Point{X: 500, Y: 470},
		},
		{
			name:    "centered in the visible part of a scrolled document",
			size:    size,
			metrics: domain.PageMetrics{Viewport: vp, ScrollX: 10, ScrollY: 500},
			want:    domain.Point{X: 510, Y: 970},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlay.Place(tt.region, tt.size, tt.metrics))
		})
	}
}
