package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

var ErrNoSpotifyCredentials = errors.New("spotify client id and secret are required")

// SpotifyHTTPClient returns an http.Client that fetches and refreshes an
// app token with the client-credentials grant. tokenURL overrides the
// Spotify endpoint when non-empty.
func SpotifyHTTPClient(ctx context.Context, clientID, clientSecret, tokenURL string) (*http.Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrNoSpotifyCredentials
	}
	if tokenURL == "" {
		tokenURL = Endpoint.TokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return cfg.Client(ctx), nil
}
