package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tourguide/pkg/domain"
)

// LogHooks returns lifecycle hooks writing one log line per event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTutorialStart: func(ctx context.Context, e *domain.TutorialEvent) {
			logger.Info("tutorial_start", "tab_id", e.TabID, "steps", e.Steps, "resumed", e.Resumed)
		},
		OnTutorialEnd: func(ctx context.Context, e *domain.TutorialEvent) {
			logger.Info("tutorial_end", "tab_id", e.TabID, "steps", e.Steps, "outcome", e.Outcome)
		},
		OnStepDisplay: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("step_display", "tab_id", e.TabID, "index", e.Index, "resolution", e.Resolution)
		},
		OnFallback: func(ctx context.Context, e *domain.FallbackEvent) {
			if e.Err != nil {
				logger.Warn("fallback", "tab_id", e.TabID, "index", e.Index, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.Debug("fallback", "tab_id", e.TabID, "index", e.Index, "duration", e.Duration)
		},
	}
}
