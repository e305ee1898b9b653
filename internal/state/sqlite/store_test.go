package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_roundTrip(t *testing.T) {
	ctx := context.Background()
	path := DefaultPath(t.TempDir())
	s, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.New(), empty)

	st := state.New()
	st.Sessions["a"] = &models.Session{ID: "a", Project: "web", Status: models.StatusStopped, RecentEvents: []models.EventRecord{}}
	st.LastCallTime = models.Ptr(int64(42))
	require.NoError(t, s.Save(ctx, st))

	st.Sessions["a"].Status = models.StatusAsking
	require.NoError(t, s.Save(ctx, st))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestOpen_reopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	st := state.New()
	st.CallHistory = append(st.CallHistory, models.CallRecord{ExecutionID: "x"})
	require.NoError(t, s.Save(ctx, st))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.CallHistory, 1)
	assert.Equal(t, "x", got.CallHistory[0].ExecutionID)
}

func TestLoad_corruptRow(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "state.sqlite"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	_, err = s.DB.ExecContext(ctx, `INSERT INTO daemon_state(id, doc, updated_at) VALUES(1, '{"sessions":', 0)`)
	require.NoError(t, err)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.New(), got)
}
