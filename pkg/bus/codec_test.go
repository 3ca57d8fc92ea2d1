package bus_test

import (
	"testing"

	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_PageScriptPayloads(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bus.Message
	}{
		{
			name: "viewport with float dimensions",
			data: `{"action":"viewportDimensions","width":1280.0,"height":720}`,
			want: bus.ViewportDimensions{Width: 1280, Height: 720},
		},
		{
			name: "step completed with string index",
			data: `{"action":"stepCompleted","index":"2"}`,
			want: bus.StepCompleted{Index: 2},
		},
		{
			name: "initiate with numeric step_count",
			data: `{"action":"initiateTutorial","steps":[{"step":"Click File","web_element":"File","step_count":1}]}`,
			want: bus.InitiateTutorial{Steps: []domain.Step{{Instruction: "Click File", Target: "File", Label: "1"}}},
		},
		{
			name: "find element result",
			data: `{"action":"findElementResult","found":true,"region":{"top":10,"left":20,"width":30,"height":40}}`,
			want: bus.FindElementResult{Found: true, Region: &domain.Region{Top: 10, Left: 20, Width: 30, Height: 40}},
		},
		{
			name: "empty message",
			data: `{"action":"endTutorial"}`,
			want: bus.EndTutorial{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bus.Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_UnknownAction(t *testing.T) {
	_, err := bus.Decode([]byte(`{"action":"launchRockets"}`))
	assert.ErrorIs(t, err, bus.ErrUnknownAction)

	_, err = bus.Decode([]byte(`{"width":1}`))
	assert.ErrorIs(t, err, bus.ErrUnknownAction)
}

func TestEncode_TagsAction(t *testing.T) {
	data, err := bus.Encode(bus.DisplayStep{Step: domain.Step{Index: 1, Instruction: "Press Save", Target: "Save", Resolution: domain.ResolutionDOM}})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"action":"displayStep"`)
	assert.Contains(t, string(data), `"web_element":"Save"`)
	assert.Contains(t, string(data), `"resolution":"dom"`)
}

func TestEnvelope_Transit(t *testing.T) {
	env := bus.Envelope{
		From:    bus.ContentOf("tab-9"),
		To:      bus.BackgroundOf("tab-9"),
		Message: bus.PageReady{URL: "https://example.com/next"},
	}

	data, err := bus.EncodeEnvelope(env)
	require.NoError(t, err)

	got, err := bus.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, got)
}
