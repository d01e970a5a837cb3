package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/otherjamesbrown/reelkit/config"
)

type fakeExec struct {
	query string
	args  []any
	err   error
}

func (f *fakeExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.query = query
	f.args = args
	return nil, f.err
}

func TestOpen_NotConfigured(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := Open(&config.AuditConfig{Host: "db"}); err == nil {
		t.Error("expected error for partial config")
	}
}

func TestRecord(t *testing.T) {
	fake := &fakeExec{}
	log := &Log{exec: fake, agent: "editor"}

	err := log.Record(context.Background(), &Entry{
		Command:      "export",
		Args:         []string{"reel.json", "--submit"},
		FullCommand:  "reelkit export reel.json --submit",
		DurationMs:   120,
		ErrorMessage: strings.Repeat("x", 600),
		Hostname:     "studio",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !strings.Contains(fake.query, "INSERT INTO command_log") {
		t.Errorf("unexpected query %q", fake.query)
	}
	if len(fake.args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(fake.args))
	}
	if fake.args[0] != "editor" {
		t.Errorf("agent = %v, want editor", fake.args[0])
	}
	if _, ok := fake.args[2].(*pq.StringArray); !ok {
		t.Errorf("args should be a pq array, got %T", fake.args[2])
	}
	if msg, _ := fake.args[6].(string); len(msg) != maxMessageLen {
		t.Errorf("error message length = %d, want %d", len(msg), maxMessageLen)
	}
	if fake.args[7] != "studio" {
		t.Errorf("hostname = %v", fake.args[7])
	}
}

func TestRecord_Error(t *testing.T) {
	log := &Log{exec: &fakeExec{err: errors.New("boom")}, agent: "a"}
	err := log.Record(context.Background(), &Entry{Command: "srt", Success: true})
	if err == nil || !strings.Contains(err.Error(), "logging command") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("empty string should be nil")
	}
	if nullIfEmpty("x") != "x" {
		t.Error("non-empty string should pass through")
	}
}
