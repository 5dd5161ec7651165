package secret

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "PLAYLIST_SUPPLY_USER", "PLAYLIST_SUPPLY_PASS",
	"PLAYLIST_SUPPLY_EMAIL", "PF_TOKEN_SECRET", "PG_DSN", "PORT", "SEARCH_DELAY_MS",
	"SEARCH_JITTER_MS", "SEARCH_WORKERS", "LASTFM_MAX_PAGES", "LOG_LEVEL", "LOG_FORMAT",
}

// isolate clears the config environment and runs the test in an empty
// directory so no authconfig.json is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("PLAYLIST_SUPPLY_USER", "me@example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 400*time.Millisecond, cfg.SearchDelay)
	require.Equal(t, 200*time.Millisecond, cfg.SearchJitter)
	require.Equal(t, 1, cfg.SearchWorkers)
	require.Equal(t, 5, cfg.LastFMMaxPages)
	require.Equal(t, "me@example.com", cfg.SupplyEmail)
}

func TestLoad_EnvFileAndAuthConfigFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SPOTIFY_CLIENT_ID=from-env-file\nSEARCH_WORKERS=3\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authconfig.json"),
		[]byte(`{"client_id":"ignored","client_secret":"file-secret","token_secret":"tok"}`), 0o600))

	cfg, err := Load(".env")
	require.NoError(t, err)
	require.Equal(t, "from-env-file", cfg.SpotifyClientID)
	require.Equal(t, "file-secret", cfg.SpotifyClientSecret)
	require.Equal(t, "tok", cfg.TokenSecret)
	require.Equal(t, 3, cfg.SearchWorkers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_BadNumber(t *testing.T) {
	isolate(t)
	t.Setenv("SEARCH_DELAY_MS", "soon")

	_, err := Load("")
	require.ErrorContains(t, err, "SEARCH_DELAY_MS")
}

func TestValidate(t *testing.T) {
	err := Config{SearchWorkers: 0}.Validate()
	require.ErrorIs(t, err, ErrMissingConfig)
	require.ErrorContains(t, err, "PF_TOKEN_SECRET")
	require.ErrorContains(t, err, "SEARCH_WORKERS")
}
