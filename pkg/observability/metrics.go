package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the tutorial collectors.
type Metrics struct {
	TutorialsStarted *prometheus.CounterVec
	TutorialsEnded   *prometheus.CounterVec
	StepsDisplayed   *prometheus.CounterVec
	FallbackDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		TutorialsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tourguide_tutorials_started_total",
				Help: "Tutorials started or resumed after a navigation",
			},
			[]string{"resumed"},
		),
		TutorialsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tourguide_tutorials_ended_total",
				Help: "Tutorials that reached an end",
			},
			[]string{"outcome"},
		),
		StepsDisplayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tourguide_steps_displayed_total",
				Help: "Steps shown to the user, by how their target was found",
			},
			[]string{"resolution"},
		),
		FallbackDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tourguide_fallback_duration_seconds",
				Help:    "Duration of image based target resolution",
				Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.TutorialsStarted, m.TutorialsEnded, m.StepsDisplayed, m.FallbackDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTutorialStart: func(ctx context.Context, e *domain.TutorialEvent) {
			m.TutorialsStarted.WithLabelValues(strconv.FormatBool(e.Resumed)).Inc()
		},
		OnTutorialEnd: func(ctx context.Context, e *domain.TutorialEvent) {
			m.TutorialsEnded.WithLabelValues(string(e.Outcome)).Inc()
		},
		OnStepDisplay: func(ctx context.Context, e *domain.StepEvent) {
			m.StepsDisplayed.WithLabelValues(string(e.Resolution)).Inc()
		},
		OnFallback: func(ctx context.Context, e *domain.FallbackEvent) {
			result := "found"
			if e.Err != nil {
				result = "failed"
			}
			m.FallbackDuration.WithLabelValues(result).Observe(e.Duration.Seconds())
		},
	}
}
