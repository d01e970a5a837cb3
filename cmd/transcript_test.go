package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

func newTestTranscriptCommand(cfg *config.CLIConfig) *TranscriptCommandDeps {
	return &TranscriptCommandDeps{
		Config:     cfg,
		LoadConfig: func() (*config.CLIConfig, error) { return cfg, nil },
	}
}

func TestNewTranscriptCommand_Subcommands(t *testing.T) {
	cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))
	assert.Equal(t, "transcript", cmd.Use)
	assert.Contains(t, cmd.Aliases, "tr")
	for _, sub := range []string{"show", "srt", "vtt", "import"} {
		found, _, err := cmd.Find([]string{sub})
		require.NoError(t, err)
		assert.Equal(t, sub, found.Name())
	}
}

func TestParseEdit(t *testing.T) {
	tests := []struct {
		in      string
		chunk   int
		text    string
		wantErr bool
	}{
		{in: "0=hello", chunk: 0, text: "hello"},
		{in: " 3 =a=b", chunk: 3, text: "a=b"},
		{in: "2=", chunk: 2, text: ""},
		{in: "hello", wantErr: true},
		{in: "x=hello", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			chunk, text, err := parseEdit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.chunk, chunk)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestTranscriptSRT(t *testing.T) {
	path := writeTestTranscript(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "standard",
			args: []string{"srt", path},
			want: "1\n00:00:00,000 --> 00:00:01,500\nhi there\n\n" +
				"2\n00:00:05,000 --> 00:00:06,000\nbye\n\n",
		},
		{
			name: "legacy hundredths",
			args: []string{"srt", path, "--legacy-hundredths"},
			want: "1\n00:00:00,000 --> 00:00:01,050\nhi there\n\n" +
				"2\n00:00:05,000 --> 00:00:06,000\nbye\n\n",
		},
		{
			name: "edited chunk",
			args: []string{"srt", path, "--edit", "1=goodbye"},
			want: "1\n00:00:00,000 --> 00:00:01,500\nhi there\n\n" +
				"2\n00:00:05,000 --> 00:00:06,000\ngoodbye\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))
			out, err := runCommand(t, cmd, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestTranscriptSRT_ConfiguredLegacyMode(t *testing.T) {
	cfg := testConfig()
	cfg.Editor.SRTMode = "legacy-hundredths"
	cmd := NewTranscriptCommand(newTestTranscriptCommand(cfg))

	out, err := runCommand(t, cmd, "srt", writeTestTranscript(t))
	require.NoError(t, err)
	assert.Contains(t, out, "00:00:01,050")
}

func TestTranscriptSRT_OutFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "talk.srt")
	cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))

	out, err := runCommand(t, cmd, "srt", writeTestTranscript(t), "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hi there")
}

func TestTranscriptSRT_BadEdit(t *testing.T) {
	cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))
	_, err := runCommand(t, cmd, "srt", writeTestTranscript(t), "--edit", "9=nope")
	assert.Error(t, err)
}

func TestTranscriptShow_JSON(t *testing.T) {
	cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))
	out, err := runCommand(t, cmd, "show", writeTestTranscript(t), "-o", "json")
	require.NoError(t, err)

	var cues []transcript.Cue
	require.NoError(t, json.Unmarshal([]byte(out), &cues))
	assert.Equal(t, []transcript.Cue{
		{Start: 0, End: 1.5, Text: "hi there"},
		{Start: 5, End: 6, Text: "bye"},
	}, cues)
}

func TestTranscriptShow_Text(t *testing.T) {
	cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))
	out, err := runCommand(t, cmd, "show", writeTestTranscript(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Segments: 2  Chunks: 2  Words: 3")
	assert.Contains(t, out, "hi there")
}

func TestTranscriptVTT(t *testing.T) {
	cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))
	out, err := runCommand(t, cmd, "vtt", writeTestTranscript(t))
	require.NoError(t, err)
	assert.Contains(t, out, "WEBVTT")
	assert.Contains(t, out, "bye")
}

func TestTranscriptImport(t *testing.T) {
	srt := filepath.Join(t.TempDir(), "captions.srt")
	require.NoError(t, os.WriteFile(srt, []byte(
		"1\n00:00:00,000 --> 00:00:02,000\nhello world\n\n2\n00:00:03,000 --> 00:00:04,000\nagain\n\n"), 0o600))

	cmd := NewTranscriptCommand(newTestTranscriptCommand(testConfig()))
	out, err := runCommand(t, cmd, "import", srt)
	require.NoError(t, err)

	var src transcript.Source
	require.NoError(t, json.Unmarshal([]byte(out), &src))
	require.Len(t, src.Segments, 2)
	words := src.Segments[0].WordList()
	require.Len(t, words, 2)
	assert.Equal(t, "hello", words[0].Word)
}

func TestLoadSource_Subtitles(t *testing.T) {
	srt := filepath.Join(t.TempDir(), "single.srt")
	require.NoError(t, os.WriteFile(srt, []byte("1\n00:00:00,000 --> 00:00:01,000\nok\n\n"), 0o600))

	src, err := loadSource(srt)
	require.NoError(t, err)
	assert.Len(t, src.Segments, 1)
}
