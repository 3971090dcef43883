// package services defines the catalog, search and playlist interfaces the sync engine runs against
//
// Beatport (scraped), Spotify (Web API)
package services

import (
	"context"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"golang.org/x/oauth2"
)

// CatalogSource lists the tracks of a catalog page in rank order.
type CatalogSource interface {
	// GenreTracks returns the top 100 of a genre. The empty code is the all-genres chart.
	GenreTracks(ctx context.Context, code string) ([]models.SourceTrack, error)

	// ChartTracks returns the tracks of a chart page.
	ChartTracks(ctx context.Context, url string) ([]models.SourceTrack, error)

	// FindChart resolves a chart name and url code to a chart page url.
	// It returns [shared.ErrChartNotFound] when nothing matches.
	FindChart(ctx context.Context, name, code string) (string, error)

	// LabelTracks returns the tracks of a label, oldest first. Unless overwrite is set,
	// paging stops at the first page holding a track published before since.
	LabelTracks(ctx context.Context, code string, since time.Time, overwrite bool) ([]models.SourceTrack, error)
}

// SearchBackend runs track searches against the streaming service.
//
// Malformed or unknown queries return an empty slice and a nil error.
type SearchBackend interface {
	Search(ctx context.Context, query string) ([]models.Candidate, error)
}

// PlaylistStore reads and writes the user's playlists.
type PlaylistStore interface {
	// Playlists returns every playlist the user owns or follows.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// FindPlaylist looks a playlist up by exact name.
	FindPlaylist(ctx context.Context, name string) (models.Playlist, bool, error)

	// GetOrCreate returns the playlist named name, creating it private with description when missing.
	GetOrCreate(ctx context.Context, name, description string) (models.Playlist, bool, error)

	// Playlist fetches one playlist by id.
	Playlist(ctx context.Context, id string) (models.Playlist, error)

	// ListTracks returns every item of a playlist in playlist order.
	ListTracks(ctx context.Context, id string) ([]models.PlaylistItem, error)

	// AppendTracks adds track ids to a playlist. A negative position appends at the end.
	AppendTracks(ctx context.Context, id string, trackIDs []string, position int) error

	// SetDescription replaces the playlist description.
	SetDescription(ctx context.Context, id, description string) error

	// Clear removes every track from a playlist.
	Clear(ctx context.Context, id string) error
}

// Session owns the OAuth token of the streaming service.
type Session interface {
	// Refresh exchanges the refresh token for a new access token and rebuilds the client.
	Refresh(ctx context.Context) error

	// Token returns the token currently in use.
	Token() (*oauth2.Token, error)
}

// Spotify is the full set of streaming-service operations the CLI needs.
type Spotify interface {
	SearchBackend
	PlaylistStore
	Session
}
