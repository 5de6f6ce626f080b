package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(context.Background(), Config{Type: TypeSQLite, SQLite: SQLiteConfig{Path: path}})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(context.Background(), Config{SQLite: SQLiteConfig{Path: path}})
	require.NoError(t, err)
	defer s.Close()
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{ID: "run-1", DocumentURI: "file:///a.wdl", RunPath: "/runs/run-1"}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.Equal(t, StatusRunning, run.Status)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateStatus(context.Background(), "missing", StatusFailed, "boom")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_RecordsError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, &Run{ID: "run-2", DocumentURI: "file:///b.wdl", RunPath: "/runs/run-2"}))

	require.NoError(t, s.UpdateStatus(ctx, "run-2", StatusFailed, "command failed"))

	got, err := s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "command failed", got.Error)
}

func TestListRuns_MostRecentFirstWithPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		created := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateRun(ctx, &Run{ID: id, DocumentURI: "file:///x.wdl", RunPath: "/runs/" + id, CreatedAt: created}))
	}

	all, err := s.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-c", all[0].ID)
	assert.Equal(t, "run-a", all[2].ID)

	page, err := s.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "run-c", page[0].ID)
}

func TestValidate_SQLiteRequiresPath(t *testing.T) {
	cfg := Config{Type: TypeSQLite}
	assert.Error(t, cfg.Validate())
}

func TestValidate_PostgresRequiresDatabase(t *testing.T) {
	cfg := Config{Type: TypePostgres}
	assert.Error(t, cfg.Validate())

	cfg.Postgres = &PostgresConfig{Database: "wdlrun"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MongoRequiresURI(t *testing.T) {
	cfg := Config{Type: TypeMongo}
	assert.Error(t, cfg.Validate())

	cfg.Mongo = &MongoConfig{URI: "mongodb://localhost"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownType(t *testing.T) {
	cfg := Config{Type: "dynamodb"}
	assert.Error(t, cfg.Validate())
}
