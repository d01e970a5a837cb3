package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
)

func newTestLayoutDeps(cfg *config.CLIConfig) *LayoutCommandDeps {
	return &LayoutCommandDeps{Config: cfg}
}

func TestLayoutCommand_ListsPresets(t *testing.T) {
	out, err := runCommand(t, NewLayoutCommand(newTestLayoutDeps(testConfig())), "-o", "json")
	require.NoError(t, err)

	var results []LayoutResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 4)
	assert.Equal(t, "1:1", results[0].Preset)
	assert.Equal(t, layout.Size{Width: 1080, Height: 1080}, results[0].Canvas)
	assert.Equal(t, "9:16", results[2].Preset)
	assert.Equal(t, layout.Size{Width: 1080, Height: 1920}, results[2].Canvas)
}

func TestLayoutCommand_PreviewSizes(t *testing.T) {
	out, err := runCommand(t, NewLayoutCommand(newTestLayoutDeps(testConfig())), "--preview")
	require.NoError(t, err)
	assert.Contains(t, out, "16:9    640x360")
}

func TestLayoutCommand_Transform(t *testing.T) {
	tests := []struct {
		name      string
		preset    string
		container string
		scale     float64
		boxW      float64
		boxH      float64
	}{
		{
			name:      "portrait capped by max height",
			preset:    "9:16",
			container: "1280x720",
			scale:     600.0 / 1920.0,
			boxW:      337.5,
			boxH:      600,
		},
		{
			name:      "landscape capped by max width",
			preset:    "16:9",
			container: "1920x1080",
			scale:     800.0 / 1920.0,
			boxW:      800,
			boxH:      450,
		},
		{
			name:      "square fits a small container",
			preset:    "1:1",
			container: "400x300",
			scale:     300.0 / 1080.0,
			boxW:      300,
			boxH:      300,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewLayoutCommand(newTestLayoutDeps(testConfig()))
			out, err := runCommand(t, cmd, "--preset", tt.preset, "--container", tt.container, "-o", "json")
			require.NoError(t, err)

			var r LayoutResult
			require.NoError(t, json.Unmarshal([]byte(out), &r))
			assert.Equal(t, tt.preset, r.Preset)
			assert.InDelta(t, tt.scale, r.Transform.Scale, 1e-9)
			assert.InDelta(t, tt.boxW, r.Transform.BoxWidth, 1e-6)
			assert.InDelta(t, tt.boxH, r.Transform.BoxHeight, 1e-6)
		})
	}
}

func TestLayoutCommand_Text(t *testing.T) {
	cmd := NewLayoutCommand(newTestLayoutDeps(testConfig()))
	out, err := runCommand(t, cmd, "--preset", "4:5")
	require.NoError(t, err)
	assert.Contains(t, out, "Canvas:    1080x1350")
	assert.NotContains(t, out, "Scale:")
}

func TestLayoutCommand_UnknownPreset(t *testing.T) {
	cmd := NewLayoutCommand(newTestLayoutDeps(testConfig()))
	_, err := runCommand(t, cmd, "--preset", "3:2")
	assert.Error(t, err)
}
