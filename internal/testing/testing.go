// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
)

// MockProvider is an in-memory [services.Provider].
//
// Playlists are keyed by ID; Features and TopTracks are keyed by track and artist ID.
// Every call is counted so tests can assert that no request was made.
type MockProvider struct {
	UserID    string
	Lists     []models.Playlist
	Entries   map[string][]models.PlaylistEntry
	Features  map[string]*features.Record
	TopTracks map[string][]models.Track

	PlaylistsErr    error
	PageErr         map[int]error // by offset
	FeaturesErr     error
	TopTracksErr    map[string]error
	AddErr          error
	CurrentUserErr  error
	OnPlaylistTrack func(offset int)
	OnPlaylist      func(playlistID string)
	OnAddTracks     func(trackIDs []string)

	mu     sync.Mutex
	calls  map[string]int
	Added  map[string][]string
	topReq []string
	featIn [][]string
}

// NewMockProvider creates an empty provider for user "user-1".
func NewMockProvider() *MockProvider {
	return &MockProvider{
		UserID:    "user-1",
		Entries:   map[string][]models.PlaylistEntry{},
		Features:  map[string]*features.Record{},
		TopTracks: map[string][]models.Track{},
		Added:     map[string][]string{},
	}
}

func (m *MockProvider) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[method]++
}

// Calls returns how many times method was invoked.
func (m *MockProvider) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of provider calls of any kind.
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// FeatureRequests returns the ID batches passed to AudioFeatures.
func (m *MockProvider) FeatureRequests() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.featIn)
}

// TopTrackRequests returns the artist IDs passed to ArtistTopTracks, sorted.
func (m *MockProvider) TopTrackRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.topReq)
	slices.Sort(out)
	return out
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) CurrentUserID(ctx context.Context) (string, error) {
	m.record("CurrentUserID")
	if m.CurrentUserErr != nil {
		return "", m.CurrentUserErr
	}
	return m.UserID, nil
}

func (m *MockProvider) Playlists(ctx context.Context) ([]models.Playlist, error) {
	m.record("Playlists")
	if m.PlaylistsErr != nil {
		return nil, m.PlaylistsErr
	}
	return slices.Clone(m.Lists), nil
}

func (m *MockProvider) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.record("Playlist")
	if m.OnPlaylist != nil {
		m.OnPlaylist(playlistID)
	}
	for _, p := range m.Lists {
		if p.ID == playlistID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %w: %s", shared.ErrProviderUnavailable, shared.ErrPlaylistNotFound, playlistID)
}

func (m *MockProvider) PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*services.TrackPage, error) {
	m.record("PlaylistTracks")
	if m.OnPlaylistTrack != nil {
		m.OnPlaylistTrack(offset)
	}
	if err := m.PageErr[offset]; err != nil {
		return nil, err
	}

	m.mu.Lock()
	all, ok := m.Entries[playlistID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", shared.ErrProviderUnavailable, shared.ErrPlaylistNotFound, playlistID)
	}

	end := min(offset+limit, len(all))
	page := &services.TrackPage{Offset: offset, Total: len(all)}
	if offset < end {
		page.Entries = slices.Clone(all[offset:end])
	}
	return page, nil
}

func (m *MockProvider) AudioFeatures(ctx context.Context, trackIDs []string) ([]*features.Record, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	m.record("AudioFeatures")

	m.mu.Lock()
	m.featIn = append(m.featIn, slices.Clone(trackIDs))
	m.mu.Unlock()

	if m.FeaturesErr != nil {
		return nil, m.FeaturesErr
	}

	out := make([]*features.Record, len(trackIDs))
	for i, id := range trackIDs {
		if r, ok := m.Features[id]; ok {
			cp := *r
			out[i] = &cp
		}
	}
	return out, nil
}

func (m *MockProvider) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	m.record("ArtistTopTracks")

	m.mu.Lock()
	m.topReq = append(m.topReq, artistID)
	m.mu.Unlock()

	if err := m.TopTracksErr[artistID]; err != nil {
		return nil, err
	}
	return slices.Clone(m.TopTracks[artistID]), nil
}

func (m *MockProvider) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	m.record("AddTracks")
	if m.OnAddTracks != nil {
		m.OnAddTracks(trackIDs)
	}
	if m.AddErr != nil {
		return m.AddErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added[playlistID] = append(m.Added[playlistID], trackIDs...)
	return nil
}

// Entry builds a playlist entry whose artists get IDs "{name}-id".
func Entry(id, name string, artists ...string) models.PlaylistEntry {
	track := models.Track{ID: id, Name: name, URI: "spotify:track:" + id}
	for _, a := range artists {
		track.Artists = append(track.Artists, models.Artist{ID: a + "-id", Name: a})
	}
	return models.PlaylistEntry{Track: track}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
