package domain

import "errors"

// ErrSessionNotFound is returned when no tutorial session is persisted for a tab.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCorrupt is returned when a persisted session misses expected fields.
// Resumption treats it as "no session to resume".
var ErrSessionCorrupt = errors.New("session corrupt")

// ErrLocateMiss is returned when a descriptor matches no element in the DOM.
var ErrLocateMiss = errors.New("element not found in DOM")

// ErrResolutionFailed is returned when the image-based region service cannot produce a region.
var ErrResolutionFailed = errors.New("region resolution failed")

// ErrViewportUnknown is returned when the viewport was not reported in time.
var ErrViewportUnknown = errors.New("viewport unknown")

// ErrTutorialNotFound is returned when a catalog has no tutorial with the requested ID.
var ErrTutorialNotFound = errors.New("tutorial not found")
