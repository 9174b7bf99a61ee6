package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/desertthunder/keytrack/internal/tasks"
)

// API serves the JSON interface over one provider and engine.
//
// It keeps at most one open session; requesting another playlist replaces it.
type API struct {
	provider services.Provider
	engine   *tasks.Engine
	logger   *log.Logger
	router   *http.ServeMux

	mu      sync.Mutex
	session *tasks.Session
}

// NewAPI creates the handler and registers its routes.
func NewAPI(provider services.Provider, engine *tasks.Engine, logger *log.Logger) *API {
	if logger == nil {
		logger = log.Default()
	}
	a := &API{
		provider: provider,
		engine:   engine,
		logger:   logger,
		router:   http.NewServeMux(),
	}
	a.routes()
	return a
}

// Routes mounts the API under /api/.
func (a *API) Routes() []string {
	return []string{"/api/"}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) routes() {
	a.router.HandleFunc("GET /api/health", a.Health)
	a.router.HandleFunc("GET /api/playlists", a.ListPlaylists)
	a.router.HandleFunc("GET /api/playlists/{id}/tracks", a.ListTracks)
	a.router.HandleFunc("POST /api/playlists/{id}/recommendations", a.Recommend)
	a.router.HandleFunc("POST /api/playlists/{id}/recommendations/all", a.AddAllCandidates)
	a.router.HandleFunc("POST /api/playlists/{id}/recommendations/{trackID}", a.AddCandidate)
	a.router.HandleFunc("GET /api/keys", a.KeyTable)
	a.router.HandleFunc("GET /api/keys/{code}/compatible", a.CompatibleKeys)
}

type errorResponse struct {
	Error string `json:"error"`
}

type tracksResponse struct {
	Playlist models.Playlist `json:"playlist"`
	Wheel    string          `json:"wheel"`
	Sorted   bool            `json:"sorted"`
	Total    int             `json:"total"`
	Count    int             `json:"count"`
	Tracks   []library.Row   `json:"tracks"`
}

type candidatesResponse struct {
	PlaylistID string            `json:"playlist_id"`
	Wheel      string            `json:"wheel"`
	Candidates []tasks.Candidate `json:"candidates"`
}

type addResponse struct {
	PlaylistID string `json:"playlist_id"`
	Added      int    `json:"added"`
	TrackCount int    `json:"track_count"`
	Remaining  int    `json:"remaining"`
}

type notationRow struct {
	PitchClass   int    `json:"pitch_class"`
	Musical      string `json:"musical"`
	CamelotMinor string `json:"camelot_minor"`
	CamelotMajor string `json:"camelot_major"`
	OpenMinor    string `json:"open_minor"`
	OpenMajor    string `json:"open_major"`
}

type keysResponse struct {
	Wheel     string        `json:"wheel"`
	Codes     []string      `json:"codes"`
	Notations []notationRow `json:"notations"`
}

// Health handles GET /api/health
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "provider": a.provider.Name()})
}

// ListPlaylists handles GET /api/playlists?q=
func (a *API) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.provider.Playlists(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, library.FilterPlaylists(playlists, r.URL.Query().Get("q")))
}

// ListTracks handles GET /api/playlists/{id}/tracks
//
// Query parameters: q, wheel, key, quality, min_bpm, max_bpm, sort (harmonic | numeric), refresh.
func (a *API) ListTracks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	criteria, err := criteriaFromQuery(query)
	if err != nil {
		a.writeError(w, err)
		return
	}
	sorted, opts := sortFromQuery(query)

	session, err := a.open(r.Context(), r.PathValue("id"), query.Get("refresh") == "true")
	if err != nil {
		a.writeError(w, err)
		return
	}

	rows := session.View(criteria, sorted, opts...)
	writeJSON(w, http.StatusOK, tracksResponse{
		Playlist: session.Playlist(),
		Wheel:    criteria.Wheel.String(),
		Sorted:   sorted,
		Total:    len(session.Entries()),
		Count:    len(rows),
		Tracks:   rows,
	})
}

// Recommend handles POST /api/playlists/{id}/recommendations
func (a *API) Recommend(w http.ResponseWriter, r *http.Request) {
	wheel, err := keys.ParseWheel(r.URL.Query().Get("wheel"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	session, err := a.open(r.Context(), r.PathValue("id"), false)
	if err != nil {
		a.writeError(w, err)
		return
	}

	candidates, err := session.Recommend(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]tasks.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = c.InWheel(wheel)
	}
	writeJSON(w, http.StatusOK, candidatesResponse{PlaylistID: session.Playlist().ID, Wheel: wheel.String(), Candidates: out})
}

// AddCandidate handles POST /api/playlists/{id}/recommendations/{trackID}
func (a *API) AddCandidate(w http.ResponseWriter, r *http.Request) {
	session, err := a.current(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	if err := session.AddCandidate(r.Context(), r.PathValue("trackID")); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addSummary(session, 1))
}

// AddAllCandidates handles POST /api/playlists/{id}/recommendations/all
func (a *API) AddAllCandidates(w http.ResponseWriter, r *http.Request) {
	session, err := a.current(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	count := len(session.Candidates())
	if err := session.AddAllCandidates(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addSummary(session, count))
}

// KeyTable handles GET /api/keys?wheel=
func (a *API) KeyTable(w http.ResponseWriter, r *http.Request) {
	wheel, err := keys.ParseWheel(r.URL.Query().Get("wheel"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	resp := keysResponse{Wheel: wheel.String(), Codes: keys.Codes(wheel)}
	for p := range keys.PitchClass(12) {
		n, _ := keys.Lookup(p)
		resp.Notations = append(resp.Notations, notationRow{
			PitchClass:   int(p),
			Musical:      n.Musical,
			CamelotMinor: n.Camelot[keys.Minor],
			CamelotMajor: n.Camelot[keys.Major],
			OpenMinor:    n.OpenKey[keys.Minor],
			OpenMajor:    n.OpenKey[keys.Major],
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CompatibleKeys handles GET /api/keys/{code}/compatible
func (a *API) CompatibleKeys(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	compatible, err := keys.CompatibleKeys(code)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": code, "compatible": compatible})
}

// open returns the session for playlistID, loading it unless it is already current.
func (a *API) open(ctx context.Context, playlistID string, refresh bool) (*tasks.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !refresh && a.session != nil && a.session.Playlist().ID == playlistID && a.session.Current() {
		return a.session, nil
	}

	playlist, err := a.provider.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	session, err := a.engine.Open(ctx, *playlist, nil)
	if err != nil {
		return nil, err
	}
	a.session = session
	return session, nil
}

// current returns the loaded session for playlistID without loading.
func (a *API) current(playlistID string) (*tasks.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil || a.session.Playlist().ID != playlistID {
		return nil, shared.ErrPlaylistNotFound
	}
	if !a.session.Current() {
		return nil, shared.ErrStaleSession
	}
	return a.session, nil
}

func addSummary(s *tasks.Session, added int) addResponse {
	return addResponse{
		PlaylistID: s.Playlist().ID,
		Added:      added,
		TrackCount: len(s.Entries()),
		Remaining:  len(s.Candidates()),
	}
}

func criteriaFromQuery(q url.Values) (library.Criteria, error) {
	return library.CriteriaInput{
		Search:    q.Get("q"),
		Wheel:     q.Get("wheel"),
		Keys:      q["key"],
		Qualities: q["quality"],
		MinBPM:    q.Get("min_bpm"),
		MaxBPM:    q.Get("max_bpm"),
	}.Parse()
}

func sortFromQuery(q url.Values) (bool, []library.SortOption) {
	switch strings.ToLower(q.Get("sort")) {
	case "harmonic", "true", "1":
		return true, nil
	case "numeric":
		return true, []library.SortOption{library.NumericWheelOrder()}
	default:
		return false, nil
	}
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrStaleSession):
		return http.StatusConflict
	case errors.Is(err, shared.ErrProviderUnavailable), errors.Is(err, shared.ErrTokenExpired):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("api request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}
