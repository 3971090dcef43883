package services

import (
	"fmt"

	"github.com/desertthunder/beatporter/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

// DefaultScopes are requested when the config does not list any.
var DefaultScopes = []string{
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// NewAuthenticator builds the authorization code flow for the configured application.
func NewAuthenticator(creds shared.SpotifyConfig) (*spotifyauth.Authenticator, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret must be set", shared.ErrMissingCredentials)
	}
	if creds.RedirectURI == "" {
		return nil, fmt.Errorf("%w: redirect_uri must be set", shared.ErrMissingCredentials)
	}

	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return spotifyauth.New(
		spotifyauth.WithClientID(creds.ClientID),
		spotifyauth.WithClientSecret(creds.ClientSecret),
		spotifyauth.WithRedirectURL(creds.RedirectURI),
		spotifyauth.WithScopes(scopes...),
	), nil
}
