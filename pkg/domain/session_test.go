package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeSteps() []domain.Step {
	return []domain.Step{
		{Instruction: "Open the menu", Target: "Menu"},
		{Instruction: "Pick settings", Target: "Settings"},
		{Instruction: "Save", Target: "Save"},
	}
}

func TestSession_AdvanceKeepsIndexInBounds(t *testing.T) {
	s := domain.NewSession(threeSteps())

	for i := 0; i < 10; i++ {
		s.Advance()
		assert.GreaterOrEqual(t, s.CurrentIndex, 0)
		assert.LessOrEqual(t, s.CurrentIndex, len(s.Steps))
	}
	assert.True(t, s.Completed())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestSession_AdvanceFromLastCompletes(t *testing.T) {
	s := domain.NewSession(threeSteps())
	s.CurrentIndex = 2

	assert.True(t, s.Advance())
	assert.Equal(t, 3, s.CurrentIndex)
}

func TestNewSession_ReindexesAndStripsResolution(t *testing.T) {
	steps := threeSteps()
	steps[1].Index = 42
	steps[1].Region = &domain.Region{Top: 1, Left: 2, Width: 3, Height: 4}
	steps[1].Resolution = domain.ResolutionImage

	s := domain.NewSession(steps)

	for i, step := range s.Steps {
		assert.Equal(t, i, step.Index)
		assert.Nil(t, step.Region)
		assert.Empty(t, step.Resolution)
	}
}

func TestSessionRecord_RoundTrip(t *testing.T) {
	s := domain.NewSession(threeSteps())
	s.CurrentIndex = 1
	s.Steps[1] = s.Steps[1].Resolved(&domain.Region{Top: 10}, domain.ResolutionDOM)

	data, err := domain.MarshalSession(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, domain.FieldTutorialSteps)
	assert.Contains(t, raw, domain.FieldCurrentStepIndex)
	assert.NotContains(t, string(data), `"region"`, "resolution data must not be persisted")

	loaded, err := domain.UnmarshalSession(data)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentIndex)
	assert.Equal(t, "Pick settings", loaded.Steps[1].Instruction)
	assert.Nil(t, loaded.Steps[1].Region)
}

func TestUnmarshalSession_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing steps", `{"currentStepIndex": 0}`},
		{"missing index", `{"tutorialSteps": []}`},
		{"index out of range", `{"tutorialSteps": [{"step":"a","web_element":"b"}], "currentStepIndex": 5}`},
		{"negative index", `{"tutorialSteps": [], "currentStepIndex": -1}`},
		{"not json", `tutorialSteps=1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.UnmarshalSession([]byte(tt.data))
			assert.ErrorIs(t, err, domain.ErrSessionCorrupt)
		})
	}
}

func TestUnmarshalSession_CompletedIsValid(t *testing.T) {
	s, err := domain.UnmarshalSession([]byte(`{"tutorialSteps": [{"step":"a","web_element":"b"}], "currentStepIndex": 1}`))
	require.NoError(t, err)
	assert.True(t, s.Completed())
}
