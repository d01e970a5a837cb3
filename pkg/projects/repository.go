// Package projects stores saved editor projects in PostgreSQL.
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
)

// Project is a stored save document.
type Project struct {
	ID          uuid.UUID
	Name        string
	AspectRatio string
	Document    *export.SaveDocument
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows List.
type Filter struct {
	NameSearch string
	Limit      int
	Offset     int
}

// RenderJob records a submission to the render service.
type RenderJob struct {
	ID         string
	ProjectID  *uuid.UUID
	ExportName string
	Transport  string
	Status     string
	ErrorCode  string
}

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database operations for projects.
type Repository struct {
	db     DBTX
	logger logging.Logger
	newID  func() uuid.UUID
}

// NewRepository creates a project repository.
func NewRepository(db DBTX, logger logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Repository{
		db:     db,
		logger: logger.With(logging.Component("project_repository")),
		newID:  uuid.New,
	}
}

// Save inserts doc or replaces the stored project with the same name.
func (r *Repository) Save(ctx context.Context, doc *export.SaveDocument) (*Project, error) {
	if doc == nil || doc.ProjectName == "" {
		return nil, fmt.Errorf("%w: project name is required", rkerrors.ErrValidation)
	}
	layers, err := json.Marshal(doc.Layers)
	if err != nil {
		return nil, fmt.Errorf("encode project layers: %w", err)
	}

	p := &Project{
		ID:          r.newID(),
		Name:        doc.ProjectName,
		AspectRatio: doc.Layers.Canvas.AspectRatio,
		Document:    doc,
	}
	query := `
		INSERT INTO projects (id, project_name, aspect_ratio, layers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (project_name) DO UPDATE SET
			aspect_ratio = EXCLUDED.aspect_ratio,
			layers = EXCLUDED.layers,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query, p.ID, p.Name, p.AspectRatio, layers).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	r.logger.Debug("project saved", logging.F("id", p.ID.String()), logging.F("name", p.Name))
	return p, nil
}

// Get returns a project by ID or by name.
func (r *Repository) Get(ctx context.Context, idOrName string) (*Project, error) {
	column, arg := lookupColumn(idOrName)
	query := fmt.Sprintf(`
		SELECT id, project_name, aspect_ratio, layers, created_at, updated_at
		FROM projects
		WHERE %s = $1
	`, column)

	var (
		p      Project
		layers []byte
	)
	err := r.db.QueryRow(ctx, query, arg).
		Scan(&p.ID, &p.Name, &p.AspectRatio, &layers, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %q", rkerrors.ErrNotFound, idOrName)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	doc := &export.SaveDocument{ProjectName: p.Name}
	if err := json.Unmarshal(layers, &doc.Layers); err != nil {
		return nil, fmt.Errorf("decode project %s layers: %w", p.ID, err)
	}
	p.Document = doc
	return &p, nil
}

// Delete removes a project by ID or by name.
func (r *Repository) Delete(ctx context.Context, idOrName string) error {
	column, arg := lookupColumn(idOrName)
	result, err := r.db.Exec(ctx, fmt.Sprintf("DELETE FROM projects WHERE %s = $1", column), arg)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %q", rkerrors.ErrNotFound, idOrName)
	}
	return nil
}

// List returns project summaries, most recently updated first. Document is
// not loaded.
func (r *Repository) List(ctx context.Context, filter Filter) ([]*Project, error) {
	query, args := listQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.AspectRatio, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// RecordRenderJob stores the outcome of a render submission.
func (r *Repository) RecordRenderJob(ctx context.Context, job RenderJob) error {
	var code *string
	if job.ErrorCode != "" {
		code = &job.ErrorCode
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO render_jobs (id, project_id, export_name, transport, status, error_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, error_code = EXCLUDED.error_code
	`, job.ID, job.ProjectID, job.ExportName, job.Transport, job.Status, code)
	if err != nil {
		return fmt.Errorf("failed to record render job: %w", err)
	}
	return nil
}

func lookupColumn(idOrName string) (string, any) {
	if id, err := uuid.Parse(idOrName); err == nil {
		return "id", id
	}
	return "project_name", idOrName
}

func listQuery(filter Filter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.NameSearch != "" {
		args = append(args, filter.NameSearch)
		conditions = append(conditions, fmt.Sprintf("LOWER(project_name) LIKE '%%' || LOWER($%d) || '%%'", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, project_name, aspect_ratio, created_at, updated_at FROM projects")
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY updated_at DESC")

	limit := 50
	switch {
	case filter.Limit > 1000:
		limit = 1000
	case filter.Limit > 0:
		limit = filter.Limit
	}
	fmt.Fprintf(&sb, " LIMIT %d", limit)
	if filter.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", filter.Offset)
	}
	return sb.String(), args
}
