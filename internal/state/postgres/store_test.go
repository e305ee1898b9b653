package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_roundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres test")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	st := state.New()
	st.Sessions["pg"] = &models.Session{ID: "pg", Project: "db", Status: models.StatusActive, RecentEvents: []models.EventRecord{}}
	st.ActiveCall = &models.ActiveCall{ExecutionID: "e1", Direction: models.DirectionInbound, EventsDuringCall: []models.EventRecord{}}
	require.NoError(t, s.Save(ctx, st))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	require.NoError(t, s.Migrate(ctx), "migrate is idempotent")
}

func TestOpen_requiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}
