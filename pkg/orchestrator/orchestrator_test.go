package orchestrator_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tourguide/internal/testutils"
	"github.com/aretw0/tourguide/pkg/adapters/memory"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/content"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/orchestrator"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/aretw0/tourguide/pkg/resolver"
	"github.com/aretw0/tourguide/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tab = "tab-1"

var saveRegion = domain.Region{Top: 100, Left: 50, Width: 80, Height: 30}

type harness struct {
	page     *testutils.Page
	bus      *bus.MemoryBus
	store    *memory.Store
	detector *testutils.Detector
	orch     *orchestrator.Orchestrator
	agent    *content.Agent
}

func corners(r domain.Region) []domain.Point {
	return []domain.Point{
		{X: r.Left, Y: r.Top},
		{X: r.Left + r.Width, Y: r.Top},
		{X: r.Left, Y: r.Top + r.Height},
	}
}

// foundAt answers every detection with the given viewport-relative region.
func foundAt(r domain.Region) func(context.Context, ports.RegionRequest) (ports.RegionResult, error) {
	return func(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
		return ports.RegionResult{Step: req.Step, Points: corners(r)}, nil
	}
}

func newHarness(t *testing.T, detect func(context.Context, ports.RegionRequest) (ports.RegionResult, error), opts ...orchestrator.Option) *harness {
	t.Helper()
	h := &harness{
		page:     testutils.NewPage(1200, 1000).AddElement("button", "Save", saveRegion),
		bus:      bus.NewMemory(),
		store:    memory.NewStore(),
		detector: testutils.NewDetector(detect),
	}
	t.Cleanup(func() { _ = h.bus.Close() })

	opts = append([]orchestrator.Option{
		orchestrator.WithResolver(resolver.New(h.page, h.detector)),
		orchestrator.WithConfig(orchestrator.Config{ViewportPollInterval: 10 * time.Millisecond, ViewportMaxRetries: 20}),
	}, opts...)
	h.orch = orchestrator.New(tab, h.bus, session.NewManager(h.store), opts...)
	require.NoError(t, h.orch.Attach())
	t.Cleanup(h.orch.Close)

	h.agent = content.NewAgent(tab, h.page, h.bus)
	require.NoError(t, h.agent.Attach())
	t.Cleanup(h.agent.Detach)
	return h
}

func (h *harness) request(t *testing.T, msg bus.Message) bus.Message {
	t.Helper()
	reply, err := h.bus.Request(context.Background(), bus.UIOf(tab), bus.BackgroundOf(tab), msg)
	require.NoError(t, err)
	return reply
}

func (h *harness) waitCallout(t *testing.T, message string) testutils.Overlay {
	t.Helper()
	var o testutils.Overlay
	require.Eventually(t, func() bool {
		o = h.page.Overlay()
		return o.Callout != nil && o.Callout.Message == message && o.At != nil
	}, 2*time.Second, 5*time.Millisecond, "callout %q never shown", message)
	return o
}

func (h *harness) waitState(t *testing.T, state domain.Status) bus.TutorialStatus {
	t.Helper()
	var st bus.TutorialStatus
	require.Eventually(t, func() bool {
		st = h.orch.Status()
		return st.State == state
	}, 2*time.Second, 5*time.Millisecond, "state %s never reached", state)
	return st
}

func threeSteps() []domain.Step {
	return []domain.Step{
		{Instruction: "Click Save", Target: "Save"},
		{Instruction: "Open Export", Target: "Export"},
		{Instruction: "All done", Target: ""},
	}
}

func TestEndToEnd_OneFallbackForTheMissingStep(t *testing.T) {
	imageRegion := domain.Region{Top: 400, Left: 300, Width: 100, Height: 40}
	h := newHarness(t, foundAt(imageRegion))
	require.NoError(t, h.agent.Announce(context.Background()))

	h.request(t, bus.InitiateTutorial{Steps: []domain.Step{
		{Instruction: "Click Save", Target: "Save"},
		{Instruction: "Open Export", Target: "Export"},
	}})

	o := h.waitCallout(t, "Click Save")
	assert.Equal(t, []domain.Region{saveRegion}, o.Highlights)
	assert.Empty(t, h.detector.Calls(), "a DOM hit must not call the fallback")

	require.True(t, h.page.Press())

	o = h.waitCallout(t, "Open Export")
	assert.Equal(t, []domain.Region{imageRegion}, o.Highlights)

	calls := h.detector.Calls()
	require.Len(t, calls, 1, "exactly one external resolution call")
	assert.Equal(t, 1, calls[0].Step.Index)
	assert.Equal(t, domain.Viewport{Width: 1200, Height: 1000}, calls[0].Viewport)

	require.True(t, h.page.Press())
	h.waitState(t, domain.StatusCompleted)

	_, err := h.store.Load(context.Background(), tab)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "completion clears the persisted session")
	assert.Nil(t, h.page.Overlay().Callout)
}

func TestResume_DisplaysStoredIndex(t *testing.T) {
	h := newHarness(t, foundAt(domain.Region{Top: 10, Left: 10, Width: 10, Height: 10}))

	stored := domain.NewSession([]domain.Step{
		{Instruction: "s0", Target: "Nowhere0"},
		{Instruction: "s1", Target: "Nowhere1"},
		{Instruction: "s2", Target: "Nowhere2"},
	})
	stored.CurrentIndex = 1
	require.NoError(t, h.store.Save(context.Background(), tab, stored))

	h.page.Load()

	h.waitCallout(t, "s1")
	st := h.orch.Status()
	assert.Equal(t, domain.StatusRunning, st.State)
	assert.Equal(t, 1, st.CurrentIndex)

	for _, call := range h.detector.Calls() {
		assert.Equal(t, "s1", call.Step.Instruction, "s0 must not be resolved again")
	}
	assert.NotEqual(t, "s0", h.page.Overlay().Callout.Message)
}

func TestAdvance_DuplicateSignalIgnored(t *testing.T) {
	h := newHarness(t, foundAt(domain.Region{Top: 10, Left: 10, Width: 10, Height: 10}))
	require.NoError(t, h.agent.Announce(context.Background()))
	h.request(t, bus.InitiateTutorial{Steps: threeSteps()})
	h.waitCallout(t, "Click Save")

	from := bus.ContentOf(tab)
	to := bus.BackgroundOf(tab)
	require.NoError(t, h.bus.Notify(context.Background(), from, to, bus.StepCompleted{Index: 0}))
	require.NoError(t, h.bus.Notify(context.Background(), from, to, bus.StepCompleted{Index: 0}))

	h.waitCallout(t, "Open Export")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.orch.Status().CurrentIndex)

	loaded, err := h.store.Load(context.Background(), tab)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentIndex, "progress is persisted on advance")
}

func TestAdvance_IgnoredWhileResolving(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
		<-release
		return ports.RegionResult{Step: req.Step}, nil
	})
	defer close(release)
	require.NoError(t, h.agent.Announce(context.Background()))

	h.request(t, bus.InitiateTutorial{Steps: []domain.Step{{Instruction: "x", Target: "Missing"}, {Instruction: "y"}}})
	require.Eventually(t, func() bool { return len(h.detector.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.bus.Notify(context.Background(), bus.ContentOf(tab), bus.BackgroundOf(tab), bus.StepCompleted{Index: 0}))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, h.orch.Status().CurrentIndex, "no advance before the step is shown")
}

func TestNavigation_DiscardsStaleFallback(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
		entered <- struct{}{}
		<-release
		return ports.RegionResult{Step: req.Step, Points: corners(saveRegion)}, nil
	})
	require.NoError(t, h.agent.Announce(context.Background()))

	h.request(t, bus.InitiateTutorial{Steps: []domain.Step{{Instruction: "Find it", Target: "Missing"}}})
	<-entered

	h.page.Navigate("https://example.com/elsewhere")
	h.waitState(t, domain.StatusSuspended)
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, h.page.Overlay().Callout, "a fallback result from before the navigation is never shown")

	_, err := h.store.Load(context.Background(), tab)
	assert.NoError(t, err, "suspension keeps the persisted session")
}

func TestNavigation_FallbackCallIsNotCancelled(t *testing.T) {
	calls := make(chan context.Context, 1)
	release := make(chan struct{})
	finished := make(chan error, 1)
	h := newHarness(t, func(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
		calls <- ctx
		select {
		case <-release:
			finished <- nil
		case <-ctx.Done():
			finished <- ctx.Err()
		}
		return ports.RegionResult{Step: req.Step, Points: corners(saveRegion)}, nil
	})
	require.NoError(t, h.agent.Announce(context.Background()))

	h.request(t, bus.InitiateTutorial{Steps: []domain.Step{{Instruction: "Find it", Target: "Missing"}}})
	detectCtx := <-calls

	h.page.Navigate("https://example.com/elsewhere")
	h.waitState(t, domain.StatusSuspended)
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, detectCtx.Err(), "the detector call survives the navigation")

	close(release)
	require.NoError(t, <-finished)
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, h.page.Overlay().Callout, "its result belongs to the old document and is dropped")
}

// lateDisplay holds every displayStep reply until the request context ends,
// as when the user presses the control before the reply comes back.
type lateDisplay struct {
	bus.Bus
}

func (l lateDisplay) Request(ctx context.Context, from, to bus.Address, msg bus.Message) (bus.Message, error) {
	reply, err := l.Bus.Request(ctx, from, to, msg)
	if _, ok := msg.(bus.DisplayStep); !ok || err != nil {
		return reply, err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStepDisplay_HookFiresWhenPressedBeforeReply(t *testing.T) {
	var displayed atomic.Int32
	page := testutils.NewPage(1200, 1000).AddElement("button", "Save", saveRegion)
	b := bus.NewMemory()
	t.Cleanup(func() { _ = b.Close() })

	o := orchestrator.New(tab, lateDisplay{b}, session.NewManager(memory.NewStore()),
		orchestrator.WithLifecycleHooks(domain.LifecycleHooks{
			OnStepDisplay: func(ctx context.Context, e *domain.StepEvent) { displayed.Add(1) },
		}),
	)
	require.NoError(t, o.Attach())
	t.Cleanup(o.Close)
	agent := content.NewAgent(tab, page, b)
	require.NoError(t, agent.Attach())
	t.Cleanup(agent.Detach)

	_, err := b.Request(context.Background(), bus.UIOf(tab), bus.BackgroundOf(tab), bus.InitiateTutorial{Steps: []domain.Step{
		{Instruction: "Click Save", Target: "Save"},
		{Instruction: "All done"},
	}})
	require.NoError(t, err)

	for _, msg := range []string{"Click Save", "All done"} {
		require.Eventually(t, func() bool {
			c := page.Overlay().Callout
			return c != nil && c.Message == msg
		}, 2*time.Second, 5*time.Millisecond)
		require.True(t, page.Press())
	}

	require.Eventually(t, func() bool { return o.Status().State == domain.StatusCompleted }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return displayed.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestNavigation_ResumeAfterLoad(t *testing.T) {
	h := newHarness(t, foundAt(domain.Region{Top: 10, Left: 10, Width: 10, Height: 10}))
	require.NoError(t, h.agent.Announce(context.Background()))
	h.request(t, bus.InitiateTutorial{Steps: threeSteps()})
	h.waitCallout(t, "Click Save")
	require.True(t, h.page.Press())
	h.waitCallout(t, "Open Export")

	h.page.Navigate("https://example.com/export")
	h.waitState(t, domain.StatusSuspended)
	h.page.Load()

	h.waitCallout(t, "Open Export")
	assert.Equal(t, 1, h.orch.Status().CurrentIndex)
}

func TestCancel(t *testing.T) {
	var ended atomic.Value
	h := newHarness(t, foundAt(saveRegion), orchestrator.WithLifecycleHooks(domain.LifecycleHooks{
		OnTutorialEnd: func(ctx context.Context, e *domain.TutorialEvent) { ended.Store(e.Outcome) },
	}))
	h.request(t, bus.InitiateTutorial{Steps: threeSteps()})
	h.waitCallout(t, "Click Save")

	reply := h.request(t, bus.CancelTutorial{})
	assert.Equal(t, domain.StatusIdle, reply.(bus.TutorialStatus).State)

	require.Eventually(t, func() bool { return h.page.Overlay().Callout == nil }, time.Second, 5*time.Millisecond)
	_, err := h.store.Load(context.Background(), tab)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, domain.OutcomeCancelled, ended.Load())
}

func TestResume_CorruptSessionIsIdle(t *testing.T) {
	h := newHarness(t, foundAt(saveRegion))
	h.store.Put(tab, []byte(`{"tutorialSteps":[{"step":"a","web_element":"A"}]}`))

	h.page.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, domain.StatusIdle, h.orch.Status().State)
	assert.Nil(t, h.page.Overlay().Callout)
	tabs, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tabs, "corrupt record is discarded")
}

func TestResume_CompletedRecordIsCleared(t *testing.T) {
	h := newHarness(t, foundAt(saveRegion))
	s := domain.NewSession(threeSteps())
	s.CurrentIndex = 3
	require.NoError(t, h.store.Save(context.Background(), tab, s))

	h.page.Load()
	h.waitState(t, domain.StatusCompleted)

	_, err := h.store.Load(context.Background(), tab)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestResume_NothingStored(t *testing.T) {
	h := newHarness(t, foundAt(saveRegion))
	h.page.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, domain.StatusIdle, h.orch.Status().State)
}

func TestStepWithoutTarget_IsCentered(t *testing.T) {
	h := newHarness(t, foundAt(saveRegion))
	h.request(t, bus.InitiateTutorial{Steps: []domain.Step{{Instruction: "Welcome aboard"}}})

	o := h.waitCallout(t, "Welcome aboard")
	assert.Empty(t, o.Highlights)
	assert.Equal(t, domain.Point{X: 500, Y: 470}, *o.At)
	assert.Empty(t, h.detector.Calls())
	assert.NotContains(t, h.page.Ops(), "elements", "no DOM probe for a narrative step")
}

func TestViewportUnknown_ShowsUnanchored(t *testing.T) {
	h := newHarness(t, foundAt(saveRegion), orchestrator.WithConfig(orchestrator.Config{
		ViewportPollInterval: 5 * time.Millisecond,
		ViewportMaxRetries:   3,
	}))

	h.request(t, bus.InitiateTutorial{Steps: []domain.Step{{Instruction: "Find Export", Target: "Export"}}})

	o := h.waitCallout(t, "Find Export")
	assert.Empty(t, o.Highlights)
	assert.Empty(t, h.detector.Calls(), "no capture without a viewport")
}

func TestFallbackFailure_ShowsUnanchored(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
		return ports.RegionResult{}, domain.ErrResolutionFailed
	})
	require.NoError(t, h.agent.Announce(context.Background()))

	h.request(t, bus.InitiateTutorial{Steps: []domain.Step{{Instruction: "Find Export", Target: "Export"}, {Instruction: "Next"}}})

	o := h.waitCallout(t, "Find Export")
	assert.Empty(t, o.Highlights)

	require.True(t, h.page.Press())
	h.waitCallout(t, "Next")
}

func TestLifecycleHooks(t *testing.T) {
	var (
		mu        sync.Mutex
		started   []bool
		displayed []domain.Resolution
		fallbacks int
		outcomes  []domain.Outcome
	)
	hooks := domain.LifecycleHooks{
		OnTutorialStart: func(ctx context.Context, e *domain.TutorialEvent) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, e.Resumed)
		},
		OnStepDisplay: func(ctx context.Context, e *domain.StepEvent) {
			mu.Lock()
			defer mu.Unlock()
			displayed = append(displayed, e.Resolution)
		},
		OnFallback: func(ctx context.Context, e *domain.FallbackEvent) {
			mu.Lock()
			defer mu.Unlock()
			fallbacks++
		},
		OnTutorialEnd: func(ctx context.Context, e *domain.TutorialEvent) {
			mu.Lock()
			defer mu.Unlock()
			outcomes = append(outcomes, e.Outcome)
		},
	}
	h := newHarness(t, foundAt(domain.Region{Top: 10, Left: 10, Width: 10, Height: 10}), orchestrator.WithLifecycleHooks(hooks))
	require.NoError(t, h.agent.Announce(context.Background()))

	h.request(t, bus.InitiateTutorial{Steps: threeSteps()})
	for _, msg := range []string{"Click Save", "Open Export", "All done"} {
		h.waitCallout(t, msg)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(displayed) > 0 && len(displayed) == h.orch.Status().CurrentIndex+1
		}, time.Second, 5*time.Millisecond)
		require.True(t, h.page.Press())
	}
	h.waitState(t, domain.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false}, started)
	assert.Equal(t, []domain.Resolution{domain.ResolutionDOM, domain.ResolutionImage, domain.ResolutionNone}, displayed)
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, []domain.Outcome{domain.OutcomeCompleted}, outcomes)
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t, foundAt(saveRegion))

	st := h.request(t, bus.GetStatus{}).(bus.TutorialStatus)
	assert.Equal(t, domain.StatusIdle, st.State)

	h.request(t, bus.InitiateTutorial{Steps: threeSteps()})
	h.waitCallout(t, "Click Save")

	st = h.request(t, bus.GetStatus{}).(bus.TutorialStatus)
	assert.Equal(t, domain.StatusRunning, st.State)
	assert.Equal(t, 3, st.Total)
	require.NotNil(t, st.Current)
	assert.Equal(t, "Click Save", st.Current.Instruction)
}

func TestInitiate_EmptyTutorialCompletes(t *testing.T) {
	h := newHarness(t, foundAt(saveRegion))
	h.request(t, bus.InitiateTutorial{})
	h.waitState(t, domain.StatusCompleted)

	_, err := h.store.Load(context.Background(), tab)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
