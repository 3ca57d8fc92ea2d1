package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTutorialStart EventType = "tutorial_start"
	EventTutorialEnd   EventType = "tutorial_end"
	EventStepDisplay   EventType = "step_display"
	EventFallback      EventType = "fallback"
)

// Outcome tells how a tutorial ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	TabID     string    `json:"tab_id"`
}

// TutorialEvent marks the start or the end of a tutorial.
type TutorialEvent struct {
	EventBase
	Steps   int     `json:"steps"`
	Resumed bool    `json:"resumed,omitempty"`
	Outcome Outcome `json:"outcome,omitempty"`
}

// StepEvent is emitted when a step is handed to the overlay.
type StepEvent struct {
	EventBase
	Index      int        `json:"index"`
	Resolution Resolution `json:"resolution"`
}

// FallbackEvent reports one image-based resolution attempt.
type FallbackEvent struct {
	EventBase
	Index    int           `json:"index"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
type LifecycleHooks struct {
	OnTutorialStart func(context.Context, *TutorialEvent)
	OnTutorialEnd   func(context.Context, *TutorialEvent)
	OnStepDisplay   func(context.Context, *StepEvent)
	OnFallback      func(context.Context, *FallbackEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTutorialStart: chain(h.OnTutorialStart, other.OnTutorialStart),
		OnTutorialEnd:   chain(h.OnTutorialEnd, other.OnTutorialEnd),
		OnStepDisplay:   chain(h.OnStepDisplay, other.OnStepDisplay),
		OnFallback:      chain(h.OnFallback, other.OnFallback),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
