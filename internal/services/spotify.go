// Spotify Web API implementation of [SearchBackend], [PlaylistStore] and [Session]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1/"
	// maxTracksPerRequest is the Web API limit for playlist item writes.
	maxTracksPerRequest = 100
)

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	Credentials shared.SpotifyConfig
	// BaseURL overrides the Web API root. It must end with a slash.
	BaseURL string
	// TokenURL overrides the accounts service token endpoint.
	TokenURL    string
	RateLimit   float64
	SearchLimit int
	Logger      *log.Logger
	// OnToken is called with every refreshed token so it can be persisted.
	OnToken func(*oauth2.Token) error
}

// SpotifyService talks to the Spotify Web API through [spotify.Client].
//
// The client is rebuilt by [SpotifyService.Refresh]; every other method reads it under a lock.
type SpotifyService struct {
	mu         sync.RWMutex
	config     *oauth2.Config
	token      *oauth2.Token
	client     *spotify.Client
	httpClient *http.Client

	baseURL     string
	username    string
	userID      string
	limiter     *rate.Limiter
	searchLimit int
	logger      *log.Logger
	onToken     func(*oauth2.Token) error
}

// NewSpotifyService creates a service from configured credentials and a stored token.
func NewSpotifyService(ctx context.Context, opts SpotifyOpts) (*SpotifyService, error) {
	creds := opts.Credentials
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	token := creds.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run auth first", shared.ErrNotAuthenticated)
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	searchLimit := opts.SearchLimit
	if searchLimit <= 0 {
		searchLimit = 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       creds.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: tokenURL,
			},
		},
		baseURL:     baseURL,
		username:    creds.Username,
		limiter:     rate.NewLimiter(limit, 1),
		searchLimit: searchLimit,
		logger:      logger,
		onToken:     opts.OnToken,
	}
	s.setToken(ctx, token)
	return s, nil
}

func (s *SpotifyService) setToken(ctx context.Context, token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
	s.client = spotify.New(s.httpClient, spotify.WithRetry(true), spotify.WithBaseURL(s.baseURL))
}

func (s *SpotifyService) api() *spotify.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *SpotifyService) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}
	return nil
}

// apiError maps a failed Web API call onto the shared sentinels.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se spotify.Error
	if errors.As(err, &se) {
		return statusError(se.Status, se.Message)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("%w: %v", shared.ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
}

func statusError(status int, message string) error {
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, message)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d: %s", shared.ErrTransient, status, message)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, status, message)
	}
}

// emptySearch reports whether a failed search means "no results". The Web API answers some
// field-filtered queries with 400 and unknown markets with 404.
func emptySearch(err error) bool {
	var se spotify.Error
	return errors.As(err, &se) && (se.Status == http.StatusNotFound || se.Status == http.StatusBadRequest)
}

// Search runs a track search and converts the results to candidates.
func (s *SpotifyService) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	res, err := s.api().Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(s.searchLimit))
	if err != nil {
		if emptySearch(err) {
			s.logger.Debug("search rejected, treating as empty", "query", query, "error", err)
			return []models.Candidate{}, nil
		}
		return nil, apiError(err)
	}
	if res == nil || res.Tracks == nil {
		return []models.Candidate{}, nil
	}

	candidates := make([]models.Candidate, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		candidates = append(candidates, toCandidate(t))
	}
	return candidates, nil
}

func toCandidate(t spotify.FullTrack) models.Candidate {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Candidate{
		ID:         string(t.ID),
		Name:       t.Name,
		DurationMS: int(t.Duration),
		Artists:    artists,
		Popularity: int(t.Popularity),
	}
}

// UserID returns the configured username, or the id of the token's owner.
func (s *SpotifyService) UserID(ctx context.Context) (string, error) {
	s.mu.RLock()
	id := s.userID
	s.mu.RUnlock()
	if id != "" {
		return id, nil
	}
	if s.username != "" {
		return s.username, nil
	}

	if err := s.wait(ctx); err != nil {
		return "", err
	}
	user, err := s.api().CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch current user: %w", apiError(err))
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()
	return user.ID, nil
}

// Playlists returns every playlist the user owns or follows.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	client := s.api()
	page, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(50))
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", apiError(err))
	}

	var playlists []models.Playlist
	for {
		for _, p := range page.Playlists {
			playlists = append(playlists, models.Playlist{
				ID:          string(p.ID),
				Name:        p.Name,
				Description: p.Description,
				Public:      p.IsPublic,
				Owner:       p.Owner.ID,
				TrackCount:  int(p.Tracks.Total),
			})
		}

		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		err = client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return playlists, fmt.Errorf("playlist pagination error: %w", apiError(err))
		}
	}
	return playlists, nil
}

// FindPlaylist returns the first playlist named name.
func (s *SpotifyService) FindPlaylist(ctx context.Context, name string) (models.Playlist, bool, error) {
	playlists, err := s.Playlists(ctx)
	if err != nil {
		return models.Playlist{}, false, err
	}
	for _, p := range playlists {
		if p.Name == name {
			return p, true, nil
		}
	}
	return models.Playlist{}, false, nil
}

// GetOrCreate implements [PlaylistStore].
func (s *SpotifyService) GetOrCreate(ctx context.Context, name, description string) (models.Playlist, bool, error) {
	if p, ok, err := s.FindPlaylist(ctx, name); err != nil || ok {
		return p, false, err
	}

	userID, err := s.UserID(ctx)
	if err != nil {
		return models.Playlist{}, false, err
	}
	if err := s.wait(ctx); err != nil {
		return models.Playlist{}, false, err
	}
	created, err := s.api().CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return models.Playlist{}, false, fmt.Errorf("failed to create playlist %q: %w", name, apiError(err))
	}

	s.logger.Info("created playlist", "name", name, "id", created.ID)
	return models.Playlist{
		ID:          string(created.ID),
		Name:        created.Name,
		Description: created.Description,
		Public:      created.IsPublic,
		Owner:       created.Owner.ID,
	}, true, nil
}

// Playlist implements [PlaylistStore].
func (s *SpotifyService) Playlist(ctx context.Context, id string) (models.Playlist, error) {
	if err := s.wait(ctx); err != nil {
		return models.Playlist{}, err
	}
	p, err := s.api().GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		var se spotify.Error
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return models.Playlist{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return models.Playlist{}, fmt.Errorf("failed to fetch playlist %s: %w", id, apiError(err))
	}
	return models.Playlist{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Public:      p.IsPublic,
		Owner:       p.Owner.ID,
		TrackCount:  int(p.Tracks.Total),
	}, nil
}

// ListTracks implements [PlaylistStore]. Local files and episodes are skipped.
func (s *SpotifyService) ListTracks(ctx context.Context, id string) ([]models.PlaylistItem, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	client := s.api()
	page, err := client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(100))
	if err != nil {
		var se spotify.Error
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, fmt.Errorf("failed to list playlist tracks: %w", apiError(err))
	}

	var items []models.PlaylistItem
	for {
		for _, item := range page.Items {
			t := item.Track.Track
			if t == nil || t.ID == "" || item.IsLocal {
				continue
			}
			artists := make([]string, 0, len(t.Artists))
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			added, _ := time.Parse(time.RFC3339, item.AddedAt)
			items = append(items, models.PlaylistItem{
				TrackID: string(t.ID),
				AddedAt: added,
				Name:    t.Name,
				Artists: artists,
			})
		}

		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		err = client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return items, fmt.Errorf("playlist pagination error: %w", apiError(err))
		}
	}
	return items, nil
}

// AppendTracks implements [PlaylistStore]. Writes are split into requests of at most 100 ids;
// with a position, later chunks follow the earlier ones so the input order is kept.
func (s *SpotifyService) AppendTracks(ctx context.Context, id string, trackIDs []string, position int) error {
	for i, chunk := range shared.Chunk(trackIDs, maxTracksPerRequest) {
		if err := s.wait(ctx); err != nil {
			return err
		}

		var err error
		if position < 0 {
			ids := make([]spotify.ID, 0, len(chunk))
			for _, t := range chunk {
				ids = append(ids, spotify.ID(t))
			}
			_, err = s.api().AddTracksToPlaylist(ctx, spotify.ID(id), ids...)
			err = apiError(err)
		} else {
			err = s.insertTracks(ctx, id, chunk, position+i*maxTracksPerRequest)
		}
		if err != nil {
			return fmt.Errorf("failed to add %d tracks to %s: %w", len(chunk), id, err)
		}
	}
	return nil
}

type insertRequest struct {
	URIs     []string `json:"uris"`
	Position int      `json:"position"`
}

// insertTracks posts a positioned playlist write, which the client library does not expose.
func (s *SpotifyService) insertTracks(ctx context.Context, id string, trackIDs []string, position int) error {
	uris := make([]string, 0, len(trackIDs))
	for _, t := range trackIDs {
		uris = append(uris, "spotify:track:"+t)
	}
	return s.doRequest(ctx, http.MethodPost, "playlists/"+id+"/tracks", insertRequest{URIs: uris, Position: position}, nil)
}

// doRequest performs an authenticated JSON request against the Web API root.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(s.baseURL, "/")+"/"+endpoint, &payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.mu.RLock()
	httpClient := s.httpClient
	s.mu.RUnlock()

	resp, err := httpClient.Do(req)
	if err != nil {
		return apiError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return statusError(resp.StatusCode, e.Error.Message)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// SetDescription implements [PlaylistStore].
func (s *SpotifyService) SetDescription(ctx context.Context, id, description string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if err := s.api().ChangePlaylistDescription(ctx, spotify.ID(id), description); err != nil {
		return fmt.Errorf("failed to update description of %s: %w", id, apiError(err))
	}
	return nil
}

// Clear implements [PlaylistStore].
func (s *SpotifyService) Clear(ctx context.Context, id string) error {
	items, err := s.ListTracks(ctx, id)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.TrackID] {
			seen[item.TrackID] = true
			ids = append(ids, item.TrackID)
		}
	}

	for _, chunk := range shared.Chunk(ids, maxTracksPerRequest) {
		if err := s.wait(ctx); err != nil {
			return err
		}
		remove := make([]spotify.ID, 0, len(chunk))
		for _, t := range chunk {
			remove = append(remove, spotify.ID(t))
		}
		if _, err := s.api().RemoveTracksFromPlaylist(ctx, spotify.ID(id), remove...); err != nil {
			return fmt.Errorf("failed to clear playlist %s: %w", id, apiError(err))
		}
	}
	return nil
}

// Refresh implements [Session]. The refreshed token is handed to OnToken before the client
// is swapped.
func (s *SpotifyService) Refresh(ctx context.Context) error {
	s.mu.RLock()
	current := s.token
	s.mu.RUnlock()

	if current == nil || current.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	// A token without an access token forces the source to hit the token endpoint.
	next, err := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}

	if s.onToken != nil {
		if err := s.onToken(next); err != nil {
			s.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}
	s.setToken(ctx, next)
	s.logger.Debug("refreshed spotify session", "expiry", next.Expiry)
	return nil
}

// Token implements [Session]. It prefers the transport's token, which is newer when the
// oauth2 client refreshed on its own.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if tok, err := s.api().Token(); err == nil && tok != nil {
		return tok, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.token, nil
}
