package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	ts, err := NewTokenService("s3cret")
	require.NoError(t, err)

	tok, exp, err := ts.Sign()
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 5*time.Second)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "playlistfinder", claims.Issuer)
}

func TestTokenService_Rejects(t *testing.T) {
	ts, _ := NewTokenService("s3cret")
	other, _ := NewTokenService("different")

	forged, _, err := other.Sign()
	require.NoError(t, err)
	_, err = ts.Parse(forged)
	require.Error(t, err)

	expired := ts
	expired.Duration = -time.Minute
	old, _, err := expired.Sign()
	require.NoError(t, err)
	_, err = ts.Parse(old)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "playlistfinder",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Parse(none)
	require.Error(t, err)

	_, err = ts.Parse("not-a-token")
	require.Error(t, err)
}

func TestNewTokenService_NoSecret(t *testing.T) {
	_, err := NewTokenService("")
	require.ErrorIs(t, err, ErrNoTokenSecret)
}

func TestSpotifyHTTPClient_ClientCredentials(t *testing.T) {
	var sawAuth bool
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		sawAuth = ok && user == "id" && pass == "secret"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "abc", "token_type": "bearer", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer api.Close()

	c, err := SpotifyHTTPClient(context.Background(), "id", "secret", tokenSrv.URL)
	require.NoError(t, err)
	resp, err := c.Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.True(t, sawAuth)
	require.Equal(t, "Bearer abc", gotAuth)
}

func TestSpotifyHTTPClient_MissingCredentials(t *testing.T) {
	_, err := SpotifyHTTPClient(context.Background(), "", "x", "")
	require.ErrorIs(t, err, ErrNoSpotifyCredentials)
}
