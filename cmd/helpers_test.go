package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/reelkit/client"
	"github.com/otherjamesbrown/reelkit/config"
	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/events"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/projects"
)

// testConfig returns a valid configuration with text output.
func testConfig() *config.CLIConfig {
	cfg := config.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

// testTranscript is two segments: "hi there" over 0-1.5s and "bye" over 5-6s.
const testTranscript = `{
  "segments": [
    {"speaker_name": "Ana", "wdlist": [
      {"word": "hi", "start": 0, "end": 0.5},
      {"word": "there", "start": 0.5, "end": 1.5}
    ]},
    {"speaker_name": "Ana", "wdlist": [
      {"word": "bye", "start": 5, "end": 6}
    ]}
  ]
}`

func writeTestTranscript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.json")
	require.NoError(t, os.WriteFile(path, []byte(testTranscript), 0o600))
	return path
}

// runCommand executes c with args and returns stdout.
func runCommand(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetIn(strings.NewReader(""))
	c.SetArgs(args)
	err := c.ExecuteContext(context.Background())
	return out.String(), err
}

type published struct {
	channel string
	payload []byte
}

type fakeBroker struct {
	mu   sync.Mutex
	sent []published
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	data, _ := message.([]byte)
	f.sent = append(f.sent, published{channel: channel, payload: data})
	cmd.SetVal(1)
	return cmd
}

func (f *fakeBroker) channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.sent {
		out = append(out, p.channel)
	}
	return out
}

func (f *fakeBroker) payload(t *testing.T, channel string) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.sent {
		if p.channel == channel {
			var m map[string]any
			require.NoError(t, json.Unmarshal(p.payload, &m))
			return m
		}
	}
	t.Fatalf("nothing published on %s", channel)
	return nil
}

func (f *fakeBroker) connect(ctx context.Context, cfg *config.CLIConfig) (events.Broker, func(), error) {
	return f, func() {}, nil
}

// fakeStore is an in-memory ProjectStore.
type fakeStore struct {
	mu       sync.Mutex
	projects map[string]*projects.Project
	jobs     []projects.RenderJob
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{projects: make(map[string]*projects.Project)}
}

func (s *fakeStore) Save(ctx context.Context, doc *export.SaveDocument) (*projects.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, ok := s.projects[doc.ProjectName]
	if !ok {
		p = &projects.Project{ID: uuid.New(), Name: doc.ProjectName, CreatedAt: now}
		s.projects[doc.ProjectName] = p
	}
	p.AspectRatio = doc.Layers.Canvas.AspectRatio
	p.Document = doc
	p.UpdatedAt = now
	return p, nil
}

func (s *fakeStore) Get(ctx context.Context, idOrName string) (*projects.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Name == idOrName || p.ID.String() == idOrName {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %s: %w", idOrName, rkerrors.ErrNotFound)
}

func (s *fakeStore) Delete(ctx context.Context, idOrName string) error {
	p, err := s.Get(ctx, idOrName)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, p.Name)
	return nil
}

func (s *fakeStore) List(ctx context.Context, filter projects.Filter) ([]*projects.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*projects.Project
	for _, p := range s.projects {
		if filter.NameSearch != "" && !strings.Contains(p.Name, filter.NameSearch) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) RecordRenderJob(ctx context.Context, job projects.RenderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *fakeStore) open(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (ProjectStore, func(), error) {
	return s, func() {}, nil
}

// fakeSubmitter records requests and answers with a fixed job.
type fakeSubmitter struct {
	mu       sync.Mutex
	requests []*client.Request
	videos   []string
	err      error
	health   *client.HealthStatus
}

func (f *fakeSubmitter) Transport() string { return "http" }

func (f *fakeSubmitter) Submit(ctx context.Context, req *client.Request) (*client.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.Video != nil {
		f.videos = append(f.videos, req.Video.FileName)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &client.Submission{JobID: "job-42", Transport: "http", Status: "queued"}, nil
}

func (f *fakeSubmitter) CheckHealth(ctx context.Context) (*client.HealthStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.health != nil {
		return f.health, nil
	}
	return &client.HealthStatus{Transport: "http", Healthy: true, Status: "SERVING", Latency: 3 * time.Millisecond}, nil
}

func (f *fakeSubmitter) factory(ctx context.Context, cfg *config.CLIConfig, apiKey string) (client.Submitter, client.Health, client.Closer, error) {
	return f, f, func() error { return nil }, nil
}

func noAPIKey(*config.CLIConfig) (string, error) { return "", nil }
