package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/store"
)

// ----------------------------------------------------
// SETUP: Spin up real Postgres via Testcontainers
// ----------------------------------------------------
func setupTestDB(t *testing.T) *store.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.Open(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrate must be idempotent")
	return s
}

func TestSaveAndLoadRun(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	run := store.Run{
		ID:         "run-1",
		ArtistID:   "A",
		ArtistName: "Alpha",
		Keywords:   []string{"alpha", "synthwave"},
		Partial:    true,
		Playlists: []store.Playlist{
			{ID: "p2", Name: "Big", URL: "https://open.spotify.com/playlist/p2", Followers: "12k", FoundBy: []string{"alpha"}},
			{ID: "p1", Name: "Small", URL: "https://open.spotify.com/playlist/p1", Followers: "N/A", FoundBy: []string{"alpha", "synthwave"}},
		},
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "Alpha", got.ArtistName)
	require.True(t, got.Partial)
	require.Equal(t, run.Keywords, got.Keywords)
	require.Len(t, got.Playlists, 2)
	require.Equal(t, "p2", got.Playlists[0].ID, "order must be preserved")
	require.Equal(t, []string{"alpha", "synthwave"}, got.Playlists[1].FoundBy)
	require.False(t, got.CreatedAt.IsZero())
}

func TestSaveRun_ReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	require.NoError(t, s.SaveRun(ctx, store.Run{ID: "r", ArtistID: "A", Playlists: []store.Playlist{
		{ID: "p1", URL: "u1"}, {ID: "p2", URL: "u2"},
	}}))
	require.NoError(t, s.SaveRun(ctx, store.Run{ID: "r", ArtistID: "A", Playlists: []store.Playlist{
		{ID: "p3", URL: "u3"},
	}}))

	got, err := s.LoadRun(ctx, "r")
	require.NoError(t, err)
	require.Len(t, got.Playlists, 1)
	require.Equal(t, "p3", got.Playlists[0].ID)
	require.Empty(t, got.Keywords)
}

func TestLoadRun_NotFound(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.LoadRun(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrRunNotFound)
}
