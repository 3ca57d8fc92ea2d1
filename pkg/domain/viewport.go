package domain

// Viewport is the visible area of the page as reported by the content context
// once per page load. It is never persisted.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether the viewport carries usable dimensions.
func (v Viewport) Known() bool {
	return v.Width > 0 && v.Height > 0
}

// PageMetrics combines the viewport with the current scroll offsets.
type PageMetrics struct {
	Viewport Viewport `json:"viewport"`
	ScrollX  float64  `json:"scrollX"`
	ScrollY  float64  `json:"scrollY"`
}

// Element is a text-bearing DOM element with document-absolute bounds.
// Texts holds the values of its direct text node children, in order.
type Element struct {
	Tag    string   `json:"tag,omitempty"`
	Texts  []string `json:"texts"`
	Bounds Region   `json:"bounds"`
}

// HasText reports whether one of the element's direct text nodes equals text exactly.
func (e Element) HasText(text string) bool {
	for _, t := range e.Texts {
		if t == text {
			return true
		}
	}
	return false
}

// Callout is the message box shown for the current step.
// Token identifies its advance control.
type Callout struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	Label   string `json:"label,omitempty"`
}

// Capture is a raster snapshot of the visible viewport.
type Capture struct {
	Image   []byte  `json:"-"`
	Format  string  `json:"format"`
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
}

// PageEventKind classifies events raised by the page driver.
type PageEventKind string

const (
	PageNavigated PageEventKind = "navigated" // Main frame started a new document
	PageLoaded    PageEventKind = "loaded"    // Navigation completed
	PageViewport  PageEventKind = "viewport"  // The document reported its viewport
	PageActivated PageEventKind = "activated" // An advance control was pressed
)

// PageEvent is raised by the page driver towards the content agent.
type PageEvent struct {
	Kind     PageEventKind
	URL      string
	Viewport Viewport
	Token    string
}
