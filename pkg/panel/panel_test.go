package panel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tourguide/pkg/adapters/memory"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/panel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	tutorial domain.Tutorial
	err      error
	queries  [][2]string
}

func (f *fakeSource) ResolveQuery(ctx context.Context, action, software string) (domain.Tutorial, error) {
	f.queries = append(f.queries, [2]string{action, software})
	return f.tutorial, f.err
}

// background records what the panel sends and answers like an orchestrator.
func background(t *testing.T, b bus.Bus, tab string) <-chan bus.Message {
	t.Helper()
	got := make(chan bus.Message, 8)
	detach, err := b.Listen(bus.BackgroundOf(tab), func(ctx context.Context, env bus.Envelope) (bus.Message, error) {
		assert.Equal(t, bus.UIOf(tab), env.From)
		got <- env.Message
		switch m := env.Message.(type) {
		case bus.InitiateTutorial:
			return bus.TutorialStatus{State: domain.StatusRunning, Total: len(m.Steps)}, nil
		case bus.GetStatus:
			return bus.TutorialStatus{State: domain.StatusIdle}, nil
		case bus.CancelTutorial:
			return bus.TutorialStatus{State: domain.StatusIdle}, nil
		}
		return nil, nil
	})
	require.NoError(t, err)
	t.Cleanup(detach)
	return got
}

func TestPanel_Initiate(t *testing.T) {
	b := bus.NewMemory()
	got := background(t, b, "t1")
	p := panel.New(b)

	st, err := p.Initiate(context.Background(), "t1", []domain.Step{{Instruction: "a"}, {Instruction: "b"}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, st.State)
	assert.Equal(t, 2, st.Total)
	assert.IsType(t, bus.InitiateTutorial{}, <-got)
}

func TestPanel_InitiateQuery(t *testing.T) {
	b := bus.NewMemory()
	background(t, b, "t1")
	src := &fakeSource{tutorial: domain.Tutorial{Steps: []domain.Step{{Instruction: "a"}}}}
	p := panel.New(b, panel.WithStepSource(src))

	st, err := p.InitiateQuery(context.Background(), "t1", "export", "Figma")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, [][2]string{{"export", "Figma"}}, src.queries)

	src.err = domain.ErrTutorialNotFound
	_, err = p.InitiateQuery(context.Background(), "t1", "x", "y")
	assert.ErrorIs(t, err, domain.ErrTutorialNotFound)
}

func TestPanel_InitiateQueryWithoutSource(t *testing.T) {
	_, err := panel.New(bus.NewMemory()).InitiateQuery(context.Background(), "t1", "x", "y")
	assert.ErrorIs(t, err, panel.ErrNoStepSource)
}

func TestPanel_InitiateCatalog(t *testing.T) {
	b := bus.NewMemory()
	background(t, b, "t1")
	cat, err := memory.NewCatalog(domain.Tutorial{ID: "intro", Steps: []domain.Step{{Instruction: "a"}, {Instruction: "b"}, {Instruction: "c"}}})
	require.NoError(t, err)
	p := panel.New(b, panel.WithCatalog(cat))

	st, err := p.InitiateCatalog(context.Background(), "t1", "intro")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)

	_, err = p.InitiateCatalog(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, domain.ErrTutorialNotFound)

	_, err = panel.New(b).InitiateCatalog(context.Background(), "t1", "intro")
	assert.ErrorIs(t, err, panel.ErrNoCatalog)
}

func TestPanel_StatusCancelAdvance(t *testing.T) {
	b := bus.NewMemory()
	got := background(t, b, "t1")
	p := panel.New(b)

	st, err := p.Status(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, st.State)
	assert.IsType(t, bus.GetStatus{}, <-got)

	_, err = p.Cancel(context.Background(), "t1")
	require.NoError(t, err)
	assert.IsType(t, bus.CancelTutorial{}, <-got)

	require.NoError(t, p.Advance(context.Background(), "t1", 4))
	assert.Equal(t, bus.StepCompleted{Index: 4}, <-got)
}

func TestPanel_UnknownTab(t *testing.T) {
	_, err := panel.New(bus.NewMemory()).Status(context.Background(), "nobody")
	assert.True(t, errors.Is(err, bus.ErrNoReceiver))
}
