// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
	"golang.org/x/oauth2"
)

// TrackInfo is the metadata a [MockPlaylistStore] reports for a track id.
type TrackInfo struct {
	Name    string
	Artists []string
}

// AppendCall records one [MockPlaylistStore.AppendTracks] call.
type AppendCall struct {
	PlaylistID string
	TrackIDs   []string
	Position   int
}

// MockPlaylistStore is an in-memory test double for services.PlaylistStore.
type MockPlaylistStore struct {
	mu sync.Mutex

	playlists map[string]*models.Playlist
	items     map[string][]models.PlaylistItem
	order     []string
	nextID    int

	Tracks  map[string]TrackInfo
	Appends []AppendCall
	Cleared []string
	Now     func() time.Time

	AppendErr error
	CreateErr error
	ListErr   error
}

// NewMockPlaylistStore returns an empty store whose clock starts at 2024-01-01 UTC and
// advances one second per added track.
func NewMockPlaylistStore() *MockPlaylistStore {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &MockPlaylistStore{
		playlists: map[string]*models.Playlist{},
		items:     map[string][]models.PlaylistItem{},
		Tracks:    map[string]TrackInfo{},
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
}

// Seed creates a playlist holding trackIDs and returns it.
func (m *MockPlaylistStore) Seed(name string, trackIDs ...string) models.Playlist {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.create(name, "")
	m.insert(p.ID, trackIDs, -1)
	return *p
}

func (m *MockPlaylistStore) create(name, description string) *models.Playlist {
	m.nextID++
	p := &models.Playlist{ID: fmt.Sprintf("pl%d", m.nextID), Name: name, Description: description, Owner: "digger"}
	m.playlists[p.ID] = p
	m.order = append(m.order, p.ID)
	return p
}

func (m *MockPlaylistStore) insert(id string, trackIDs []string, position int) {
	added := make([]models.PlaylistItem, 0, len(trackIDs))
	for _, tid := range trackIDs {
		info, ok := m.Tracks[tid]
		if !ok {
			info = TrackInfo{Name: "Track " + tid, Artists: []string{"Artist " + tid}}
		}
		added = append(added, models.PlaylistItem{TrackID: tid, AddedAt: m.Now(), Name: info.Name, Artists: info.Artists})
	}

	current := m.items[id]
	if position < 0 || position > len(current) {
		position = len(current)
	}
	m.items[id] = slices.Concat(current[:position:position], added, current[position:])
	m.playlists[id].TrackCount = len(m.items[id])
}

// TrackIDs returns the ids currently in a playlist.
func (m *MockPlaylistStore) TrackIDs(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.items[id]))
	for _, item := range m.items[id] {
		ids = append(ids, item.TrackID)
	}
	return ids
}

func (m *MockPlaylistStore) Playlists(ctx context.Context) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Playlist, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.playlists[id])
	}
	return out, nil
}

func (m *MockPlaylistStore) FindPlaylist(ctx context.Context, name string) (models.Playlist, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if p := m.playlists[id]; p.Name == name {
			return *p, true, nil
		}
	}
	return models.Playlist{}, false, nil
}

func (m *MockPlaylistStore) GetOrCreate(ctx context.Context, name, description string) (models.Playlist, bool, error) {
	if p, ok, _ := m.FindPlaylist(ctx, name); ok {
		return p, false, nil
	}
	if m.CreateErr != nil {
		return models.Playlist{}, false, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.create(name, description), true, nil
}

func (m *MockPlaylistStore) Playlist(ctx context.Context, id string) (models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return *p, nil
}

func (m *MockPlaylistStore) ListTracks(ctx context.Context, id string) ([]models.PlaylistItem, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[id]; !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return slices.Clone(m.items[id]), nil
}

func (m *MockPlaylistStore) AppendTracks(ctx context.Context, id string, trackIDs []string, position int) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[id]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	m.Appends = append(m.Appends, AppendCall{PlaylistID: id, TrackIDs: slices.Clone(trackIDs), Position: position})
	m.insert(id, trackIDs, position)
	return nil
}

func (m *MockPlaylistStore) SetDescription(ctx context.Context, id, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	p.Description = description
	return nil
}

func (m *MockPlaylistStore) Clear(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cleared = append(m.Cleared, id)
	m.items[id] = nil
	if p, ok := m.playlists[id]; ok {
		p.TrackCount = 0
	}
	return nil
}

// MockSession counts refreshes.
type MockSession struct {
	Refreshes  int
	RefreshErr error
	Current    *oauth2.Token
}

func (m *MockSession) Refresh(ctx context.Context) error {
	m.Refreshes++
	return m.RefreshErr
}

func (m *MockSession) Token() (*oauth2.Token, error) {
	if m.Current == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return m.Current, nil
}

// MockSpotify combines the store and session doubles with canned search results,
// satisfying services.Spotify.
type MockSpotify struct {
	*MockPlaylistStore
	*MockSession

	// Results maps a query to its candidates; Default answers every other query.
	Results   map[string][]models.Candidate
	Default   []models.Candidate
	SearchErr error
	User      string

	searchMu sync.Mutex
	Queries  []string
}

func NewMockSpotify() *MockSpotify {
	return &MockSpotify{
		MockPlaylistStore: NewMockPlaylistStore(),
		MockSession:       &MockSession{},
		Results:           map[string][]models.Candidate{},
		User:              "digger",
	}
}

func (m *MockSpotify) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	m.searchMu.Lock()
	defer m.searchMu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if c, ok := m.Results[query]; ok {
		return c, nil
	}
	return m.Default, nil
}

func (m *MockSpotify) UserID(ctx context.Context) (string, error) {
	if m.User == "" {
		return "", shared.ErrNotAuthenticated
	}
	return m.User, nil
}

// MockCatalog is a test double for services.CatalogSource keyed by code or url.
type MockCatalog struct {
	Genres map[string][]models.SourceTrack
	Charts map[string][]models.SourceTrack
	Labels map[string][]models.SourceTrack
	// ChartURLs maps a chart name to the url FindChart resolves it to.
	ChartURLs map[string]string

	Err        error
	LabelSince []time.Time
}

func (m *MockCatalog) GenreTracks(ctx context.Context, code string) ([]models.SourceTrack, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Genres[code], nil
}

func (m *MockCatalog) ChartTracks(ctx context.Context, url string) ([]models.SourceTrack, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Charts[url], nil
}

func (m *MockCatalog) FindChart(ctx context.Context, name, code string) (string, error) {
	if url, ok := m.ChartURLs[name]; ok {
		return url, nil
	}
	return "", fmt.Errorf("%w: %s", shared.ErrChartNotFound, name)
}

func (m *MockCatalog) LabelTracks(ctx context.Context, code string, since time.Time, overwrite bool) ([]models.SourceTrack, error) {
	m.LabelSince = append(m.LabelSince, since)
	if m.Err != nil {
		return nil, m.Err
	}
	return slices.Clone(m.Labels[code]), nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
