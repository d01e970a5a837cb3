package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/reelkit/client"
	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/events"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
)

type exportFakes struct {
	store     *fakeStore
	broker    *fakeBroker
	submitter *fakeSubmitter
}

func newExportFakes() *exportFakes {
	return &exportFakes{store: newFakeStore(), broker: &fakeBroker{}, submitter: &fakeSubmitter{}}
}

func (f *exportFakes) deps(cfg *config.CLIConfig) *ExportCommandDeps {
	return &ExportCommandDeps{
		Config:        cfg,
		OpenProjects:  f.store.open,
		ConnectBroker: f.broker.connect,
		APIKey:        noAPIKey,
		NewSubmitter:  f.submitter.factory,
		Retry:         &client.RetryPolicy{MaxRetries: 0},
	}
}

func configWithDatabase() *config.CLIConfig {
	cfg := testConfig()
	cfg.Database = &config.DatabaseConfig{Host: "localhost", Database: "reelkit", User: "reelkit"}
	return cfg
}

func TestExport_PrintsDocument(t *testing.T) {
	f := newExportFakes()
	cmd := NewExportCommand(f.deps(testConfig()))

	out, err := runCommand(t, cmd, writeTestTranscript(t), "--preset", "9:16", "--name", "launch.mp4", "--edit", "0=hello there")
	require.NoError(t, err)

	var doc export.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "launch.mp4", doc.Name)
	assert.Equal(t, "9:16", doc.Canvas.AspectRatio)
	assert.Equal(t, 1080.0, doc.Canvas.Width)
	assert.Equal(t, 1920.0, doc.Canvas.Height)

	sub, ok := doc.Layers[layers.NameSubtitle]
	require.True(t, ok, "subtitle layer is exported")
	require.Len(t, sub.Subtitles, 2)
	assert.Equal(t, "hello there", sub.Subtitles[0].Text)

	assert.Equal(t, []string{events.ChannelExportRequested}, f.broker.channels())
	assert.Empty(t, f.submitter.requests, "nothing is submitted without --submit")
}

func TestExport_WritesFile(t *testing.T) {
	f := newExportFakes()
	outPath := filepath.Join(t.TempDir(), "doc.json")
	cmd := NewExportCommand(f.deps(testConfig()))

	out, err := runCommand(t, cmd, writeTestTranscript(t), "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var doc export.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "reel.mp4", doc.Name)
}

func TestExport_Submit(t *testing.T) {
	f := newExportFakes()
	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("not really a video"), 0o600))
	cmd := NewExportCommand(f.deps(configWithDatabase()))

	out, err := runCommand(t, cmd, writeTestTranscript(t), "--video", video, "--submit")
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted reel.mp4: job job-42 (queued via http)")

	require.Len(t, f.submitter.requests, 1)
	req := f.submitter.requests[0]
	assert.Equal(t, "clip.mp4", req.Document.Src)
	assert.NotEmpty(t, req.RequestID)
	assert.Equal(t, []string{"clip.mp4"}, f.submitter.videos)

	require.Len(t, f.store.jobs, 1)
	job := f.store.jobs[0]
	assert.Equal(t, "job-42", job.ID)
	assert.Equal(t, "queued", job.Status)
	assert.Equal(t, "http", job.Transport)
	assert.Nil(t, job.ProjectID)

	assert.Equal(t, []string{events.ChannelExportRequested, events.ChannelRenderSubmitted}, f.broker.channels())
	payload := f.broker.payload(t, events.ChannelRenderSubmitted)
	assert.Equal(t, "job-42", payload["job_id"])
	assert.Equal(t, req.RequestID, payload["correlation_id"])
}

func TestExport_SubmitJSON(t *testing.T) {
	f := newExportFakes()
	cmd := NewExportCommand(f.deps(testConfig()))

	out, err := runCommand(t, cmd, writeTestTranscript(t), "--submit", "-o", "json")
	require.NoError(t, err)

	var result ExportResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "reel.mp4", result.ExportName)
	require.NotNil(t, result.Submission)
	assert.Equal(t, "job-42", result.Submission.JobID)
	assert.Empty(t, f.store.jobs, "no database configured")
}

func TestExport_SubmitFailure(t *testing.T) {
	f := newExportFakes()
	f.submitter.err = errors.New("render service exploded")
	cmd := NewExportCommand(f.deps(configWithDatabase()))

	_, err := runCommand(t, cmd, writeTestTranscript(t), "--submit")
	require.Error(t, err)

	require.Len(t, f.store.jobs, 1)
	assert.Equal(t, observability.StatusFailed, f.store.jobs[0].Status)
	assert.NotEmpty(t, f.store.jobs[0].ID)

	payload := f.broker.payload(t, events.ChannelRenderSubmitted)
	assert.Equal(t, observability.StatusFailed, payload["status"])
}

func TestExport_RestoresProject(t *testing.T) {
	f := newExportFakes()
	cfg := configWithDatabase()

	_, err := runCommand(t, NewProjectCommand(createProjectTestDeps(cfg, f.store, nil)),
		"save", "launch", writeTestTranscript(t), "--preset", "16:9", "--edit", "1=see you")
	require.NoError(t, err)

	out, err := runCommand(t, NewExportCommand(f.deps(cfg)), writeTestTranscript(t), "--project", "launch")
	require.NoError(t, err)

	var doc export.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "16:9", doc.Canvas.AspectRatio)
	assert.Equal(t, 1920.0, doc.Canvas.Width)
	sub := doc.Layers[layers.NameSubtitle]
	require.Len(t, sub.Subtitles, 2)
	assert.Equal(t, "see you", sub.Subtitles[1].Text)
}

func TestExport_UnknownProject(t *testing.T) {
	f := newExportFakes()
	_, err := runCommand(t, NewExportCommand(f.deps(testConfig())), writeTestTranscript(t), "--project", "missing")
	assert.Error(t, err)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(map[string]string{"c": "", "a": "", "b": ""}))
	assert.Empty(t, sortedKeys(nil))
}
