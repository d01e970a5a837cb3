package projects

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/export"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeDB struct {
	sql  []string
	args [][]any
	row  fakeRow
	tag  pgconn.CommandTag
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return f.tag, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return f.row
}

func TestRepository_Save(t *testing.T) {
	id := uuid.MustParse("8f14e45f-ceea-467f-a8b1-6a4f1f0d9c11")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{values: []any{id, now, now}}}
	repo := NewRepository(db, nil)

	doc := &export.SaveDocument{ProjectName: "demo"}
	doc.Layers.Canvas.AspectRatio = "9:16"
	p, err := repo.Save(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, id, p.ID)
	assert.Equal(t, "9:16", p.AspectRatio)
	assert.Equal(t, now, p.CreatedAt)
	require.Len(t, db.args, 1)
	assert.Contains(t, db.sql[0], "ON CONFLICT (project_name)")
	assert.Equal(t, "demo", db.args[0][1])

	var layers export.SaveLayers
	require.NoError(t, json.Unmarshal(db.args[0][3].([]byte), &layers))
	assert.Equal(t, "9:16", layers.Canvas.AspectRatio)
}

func TestRepository_SaveRequiresName(t *testing.T) {
	repo := NewRepository(&fakeDB{}, nil)
	_, err := repo.Save(context.Background(), &export.SaveDocument{})
	assert.True(t, rkerrors.IsValidation(err))
}

func TestRepository_Get(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()
	layers := []byte(`{"canvas":{"width":1080,"height":1080,"backgroundColor":"#000000","titleEnabled":false,"subtitleEnabled":true},"images":[]}`)
	db := &fakeDB{row: fakeRow{values: []any{id, "demo", "1:1", layers, now, now}}}
	repo := NewRepository(db, nil)

	p, err := repo.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Contains(t, db.sql[0], "WHERE project_name = $1")
	require.NotNil(t, p.Document)
	assert.Equal(t, "demo", p.Document.ProjectName)
	assert.Equal(t, 1080.0, p.Document.Layers.Canvas.Width)

	_, err = repo.Get(context.Background(), id.String())
	require.NoError(t, err)
	assert.Contains(t, db.sql[1], "WHERE id = $1")
	assert.Equal(t, id, db.args[1][0])
}

func TestRepository_GetNotFound(t *testing.T) {
	repo := NewRepository(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, nil)
	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, rkerrors.IsNotFound(err))
}

func TestRepository_Delete(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("DELETE 1")}
	repo := NewRepository(db, nil)
	require.NoError(t, repo.Delete(context.Background(), "demo"))

	db.tag = pgconn.NewCommandTag("DELETE 0")
	assert.True(t, rkerrors.IsNotFound(repo.Delete(context.Background(), "demo")))
}

func TestRepository_RecordRenderJob(t *testing.T) {
	db := &fakeDB{}
	repo := NewRepository(db, nil)
	require.NoError(t, repo.RecordRenderJob(context.Background(), RenderJob{
		ID: "job-1", ExportName: "reel", Transport: "grpc", Status: "success",
	}))
	require.Len(t, db.args, 1)
	assert.Nil(t, db.args[0][5])

	require.NoError(t, repo.RecordRenderJob(context.Background(), RenderJob{
		ID: "job-2", Status: "failed", ErrorCode: "render_unavailable",
	}))
	code, ok := db.args[1][5].(*string)
	require.True(t, ok)
	assert.Equal(t, "render_unavailable", *code)
}

func TestListQuery(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
		args   int
	}{
		{
			name: "defaults",
			want: "SELECT id, project_name, aspect_ratio, created_at, updated_at FROM projects ORDER BY updated_at DESC LIMIT 50",
		},
		{
			name:   "search with paging",
			filter: Filter{NameSearch: "Demo", Limit: 10, Offset: 20},
			want: "SELECT id, project_name, aspect_ratio, created_at, updated_at FROM projects" +
				" WHERE LOWER(project_name) LIKE '%' || LOWER($1) || '%' ORDER BY updated_at DESC LIMIT 10 OFFSET 20",
			args: 1,
		},
		{
			name:   "limit capped",
			filter: Filter{Limit: 5000},
			want:   "SELECT id, project_name, aspect_ratio, created_at, updated_at FROM projects ORDER BY updated_at DESC LIMIT 1000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := listQuery(tt.filter)
			assert.Equal(t, tt.want, got)
			assert.Len(t, args, tt.args)
		})
	}
}
