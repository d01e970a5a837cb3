// Package audit records CLI command executions in PostgreSQL.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"

	"github.com/otherjamesbrown/reelkit/config"
)

const maxMessageLen = 500

// Entry is one command log row.
type Entry struct {
	ID           int64     `json:"id"`
	Agent        string    `json:"agent"`
	Command      string    `json:"command"`
	Args         []string  `json:"args"`
	FullCommand  string    `json:"full_command"`
	DurationMs   int       `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Log writes command entries to the command_log table.
type Log struct {
	db    *sql.DB
	exec  execer
	agent string
}

// Open connects to the audit database described by cfg.
func Open(cfg *config.AuditConfig) (*Log, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("audit log not configured")
	}

	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Log{db: db, exec: db, agent: cfg.GetAgent()}, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (l *Log) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Record inserts e. Empty agent and hostname fall back to the configured agent and os.Hostname.
func (l *Log) Record(ctx context.Context, e *Entry) error {
	agent := e.Agent
	if agent == "" {
		agent = l.agent
	}
	hostname := e.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	args := e.Args
	if args == nil {
		args = []string{}
	}

	_, err := l.exec.ExecContext(ctx,
		`INSERT INTO command_log (agent, command, args, full_command, duration_ms, success, error_message, hostname)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		agent,
		e.Command,
		pq.Array(args),
		e.FullCommand,
		e.DurationMs,
		e.Success,
		nullIfEmpty(truncate(e.ErrorMessage, maxMessageLen)),
		nullIfEmpty(hostname),
	)
	if err != nil {
		return fmt.Errorf("logging command: %w", err)
	}
	return nil
}

// History returns the most recent entries, newest first. An empty agent matches all.
func (l *Log) History(ctx context.Context, agent string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, agent, command, args, full_command, duration_ms, success, error_message, hostname, created_at
		   FROM command_log
		  WHERE $1::text IS NULL OR agent = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		nullIfEmpty(agent), limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errorMsg, hostname sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.Agent,
			&e.Command,
			pq.Array(&e.Args),
			&e.FullCommand,
			&e.DurationMs,
			&e.Success,
			&errorMsg,
			&hostname,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.ErrorMessage = errorMsg.String
		e.Hostname = hostname.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return entries, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
