package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ChordLoader reads the per-user chord progression document.
//
// Satisfied by repositories.DocumentStore.
type ChordLoader interface {
	Get(ctx context.Context, userID string) (*models.UserDocument, error)
}

// EngineOpts tunes request sizes and pacing. Zero values take the defaults.
type EngineOpts struct {
	PageSize          int     // entries per playlist page (default: 100)
	FeatureBatchSize  int     // track IDs per audio-features request (default: 100)
	RequestsPerSecond float64 // provider request rate (default: 10)
	Burst             int     // limiter burst (default: 5)
	MaxSeeds          int     // recommendation seeds (default: 5)
	MaxPerSeed        int     // recommendations per seed (default: 1)
	Rand              *rand.Rand
}

func (o EngineOpts) withDefaults() EngineOpts {
	if o.PageSize <= 0 || o.PageSize > services.MaxPageSize {
		o.PageSize = services.MaxPageSize
	}
	if o.FeatureBatchSize <= 0 || o.FeatureBatchSize > services.MaxFeatureBatchSize {
		o.FeatureBatchSize = services.MaxFeatureBatchSize
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 10
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	if o.MaxSeeds <= 0 {
		o.MaxSeeds = DefaultMaxSeeds
	}
	if o.MaxPerSeed <= 0 {
		o.MaxPerSeed = DefaultMaxPerSeed
	}
	return o
}

// Engine loads playlists into sessions and tracks which session is current.
//
// Every Open takes a ticket when it starts. Only the holder of the latest ticket may publish;
// an older load that finishes late is discarded with [shared.ErrStaleSession]. A failed Open
// publishes nothing, so the previous session stays current.
type Engine struct {
	provider services.Provider
	chords   ChordLoader
	logger   *log.Logger
	limiter  *rate.Limiter
	selector *Selector
	opts     EngineOpts

	mu      sync.Mutex
	latest  uint64 // last ticket handed out
	current uint64 // ticket of the published session, 0 when none
}

// NewEngine creates an Engine. chords may be nil, in which case sessions start with no progressions.
func NewEngine(provider services.Provider, chords ChordLoader, logger *log.Logger, opts EngineOpts) *Engine {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard)
	}
	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)

	selectorOpts := []SelectorOption{WithSeeds(opts.MaxSeeds, opts.MaxPerSeed), WithLimiter(limiter)}
	if opts.Rand != nil {
		selectorOpts = append(selectorOpts, WithRand(opts.Rand))
	}

	return &Engine{
		provider: provider,
		chords:   chords,
		logger:   logger,
		limiter:  limiter,
		selector: NewSelector(provider, logger, selectorOpts...),
		opts:     opts,
	}
}

// Selector returns the recommendation selector shared by all sessions.
func (e *Engine) Selector() *Selector {
	return e.selector
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *Engine) wait(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	return nil
}

// Open loads every entry of playlist and its audio features, and returns a new current session.
//
// Any page or feature batch failure fails the whole open; no partial index is published.
func (e *Engine) Open(ctx context.Context, playlist models.Playlist, progress chan<- ProgressUpdate) (*Session, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%w: provider not initialized", shared.ErrServiceUnavailable)
	}

	gen := e.ticket()
	logger := shared.WithLogger(e.logger, "playlist", playlist.ID)

	entries, index, chords, err := e.load(ctx, playlist, logger, progress)
	if err != nil {
		return nil, err
	}

	if !e.publish(gen) {
		logger.Debug("discarding superseded load", "generation", gen)
		return nil, shared.ErrStaleSession
	}

	s := &Session{
		engine:   e,
		gen:      gen,
		playlist: playlist,
		entries:  entries,
		index:    index,
		chords:   chords,
		progress: progress,
	}

	logger.Info("playlist loaded", "tracks", len(entries), "analyzed", index.Len())
	sendProgress(progress, sessionReadyUpdate(s))
	return s, nil
}

func (e *Engine) ticket() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest++
	return e.latest
}

// publish makes gen the current session unless a newer Open has started since.
func (e *Engine) publish(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.latest {
		return false
	}
	e.current = gen
	return true
}

func (e *Engine) isCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current == gen
}

func (e *Engine) release(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == gen {
		e.current = 0
	}
}

// load fetches entries, features and chord progressions without touching the generation.
func (e *Engine) load(ctx context.Context, playlist models.Playlist, logger *log.Logger, progress chan<- ProgressUpdate) ([]models.PlaylistEntry, *features.Index, map[string]string, error) {
	entries, err := e.fetchEntries(ctx, playlist, progress)
	if err != nil {
		return nil, nil, nil, err
	}

	index, err := e.fetchFeatures(ctx, entries, progress)
	if err != nil {
		return nil, nil, nil, err
	}

	return entries, index, e.loadChords(ctx, logger, progress), nil
}

// fetchEntries reads the first page to learn the total, then the remaining pages concurrently.
func (e *Engine) fetchEntries(ctx context.Context, playlist models.Playlist, progress chan<- ProgressUpdate) ([]models.PlaylistEntry, error) {
	size := e.opts.PageSize

	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	first, err := e.provider.PlaylistTracks(ctx, playlist.ID, 0, size)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}

	numPages := 1
	if first.Total > size {
		numPages = (first.Total + size - 1) / size
	}
	sendProgress(progress, fetchTracksUpdate(1, numPages, playlist))

	pages := make([][]models.PlaylistEntry, numPages)
	pages[0] = first.Entries

	g, gctx := errgroup.WithContext(ctx)
	var done atomic.Int32
	done.Store(1)

	for i := 1; i < numPages; i++ {
		g.Go(func() error {
			if err := e.wait(gctx); err != nil {
				return err
			}

			page, err := e.provider.PlaylistTracks(gctx, playlist.ID, i*size, size)
			if err != nil {
				return fmt.Errorf("failed to fetch playlist tracks at offset %d: %w", i*size, err)
			}
			pages[i] = page.Entries

			sendProgress(progress, fetchTracksUpdate(int(done.Add(1)), numPages, playlist))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]models.PlaylistEntry, 0, first.Total)
	for _, page := range pages {
		for _, entry := range page {
			if entry.Track.ID == "" {
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// fetchFeatures requests analysis in batches concurrently and builds the index once every batch succeeded.
func (e *Engine) fetchFeatures(ctx context.Context, entries []models.PlaylistEntry, progress chan<- ProgressUpdate) (*features.Index, error) {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.Track.ID)
	}

	batches := slices.Collect(slices.Chunk(ids, e.opts.FeatureBatchSize))
	results := make([][]*features.Record, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	var done atomic.Int32

	for i, batch := range batches {
		g.Go(func() error {
			if err := e.wait(gctx); err != nil {
				return err
			}

			records, err := e.provider.AudioFeatures(gctx, batch)
			if err != nil {
				return fmt.Errorf("failed to fetch audio features: %w", err)
			}
			results[i] = records

			sendProgress(progress, fetchFeaturesUpdate(int(done.Add(1)), len(batches)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return features.Build(results...), nil
}

// loadChords never fails the open: a missing store, user or document yields an empty map.
func (e *Engine) loadChords(ctx context.Context, logger *log.Logger, progress chan<- ProgressUpdate) map[string]string {
	if e.chords == nil {
		return map[string]string{}
	}

	userID, err := e.provider.CurrentUserID(ctx)
	if err != nil {
		logger.Warn("could not resolve current user for chord progressions", "error", err)
		return map[string]string{}
	}
	sendProgress(progress, loadChordsUpdate(userID))

	doc, err := e.chords.Get(ctx, userID)
	switch {
	case errors.Is(err, shared.ErrDocumentNotFound):
		return map[string]string{}
	case err != nil:
		logger.Warn("failed to load chord progressions", "user", userID, "error", err)
		return map[string]string{}
	case doc.ChordProgressions == nil:
		return map[string]string{}
	}
	return doc.ChordProgressions
}

// Session is one opened playlist: its entries, feature index, chord progressions and
// current recommendations. All methods are safe for concurrent use.
type Session struct {
	engine   *Engine
	gen      uint64
	playlist models.Playlist
	progress chan<- ProgressUpdate

	mu         sync.RWMutex
	closed     bool
	entries    []models.PlaylistEntry
	index      *features.Index
	chords     map[string]string
	candidates []Candidate
	pending    map[string]bool // candidates claimed by an add in flight
}

// Playlist returns the metadata the session was opened with.
func (s *Session) Playlist() models.Playlist {
	return s.playlist
}

// Entries returns a copy of the loaded entries in playlist order.
func (s *Session) Entries() []models.PlaylistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Index returns the current feature index. The index itself is immutable.
func (s *Session) Index() *features.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Chords returns the chord progression for a track, if one was stored.
func (s *Session) Chords(trackID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chords[trackID]
	return c, ok
}

// Candidates returns a copy of the current recommendations.
func (s *Session) Candidates() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.candidates)
}

// View filters, optionally sorts and annotates the loaded entries.
func (s *Session) View(c library.Criteria, sorted bool, opts ...library.SortOption) []library.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return library.View(s.entries, s.index, c, sorted, s.chords, opts...)
}

// Current reports whether the session is still the engine's latest and has not been closed.
func (s *Session) Current() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current()
}

func (s *Session) current() bool {
	return !s.closed && s.engine.isCurrent(s.gen)
}

// Close marks the session stale. Outstanding operations discard their results.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.engine.release(s.gen)
}

// Recommend replaces the candidate set with a fresh selection seeded from the loaded entries.
func (s *Session) Recommend(ctx context.Context) ([]Candidate, error) {
	entries := s.Entries()
	sendProgress(s.progress, recommendUpdate(min(len(entries), s.engine.selector.maxSeeds)))

	candidates, err := s.engine.selector.Select(ctx, entries)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current() {
		return nil, shared.ErrStaleSession
	}
	s.candidates = candidates
	return slices.Clone(candidates), nil
}

// AddCandidate adds one recommended track to the playlist and merges its analysis without a reload.
//
// A candidate already claimed by another add in flight is reported as not found.
func (s *Session) AddCandidate(ctx context.Context, trackID string) error {
	claimed := s.claim(func(c Candidate) bool { return c.Track.ID == trackID })
	if len(claimed) == 0 {
		return fmt.Errorf("%w: %s is not a current recommendation", shared.ErrTrackNotFound, trackID)
	}
	return s.add(ctx, claimed)
}

// AddAllCandidates adds every unclaimed recommendation in one request. An empty set is a no-op.
func (s *Session) AddAllCandidates(ctx context.Context) error {
	claimed := s.claim(func(Candidate) bool { return true })
	if len(claimed) == 0 {
		return nil
	}
	return s.add(ctx, claimed)
}

// claim marks the matching candidates pending so concurrent adds cannot send them twice.
func (s *Session) claim(match func(Candidate) bool) []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []Candidate
	for _, c := range s.candidates {
		if s.pending[c.Track.ID] || !match(c) {
			continue
		}
		if s.pending == nil {
			s.pending = map[string]bool{}
		}
		s.pending[c.Track.ID] = true
		claimed = append(claimed, c)
	}
	return claimed
}

func (s *Session) unclaim(candidates []Candidate) {
	for _, c := range candidates {
		delete(s.pending, c.Track.ID)
	}
}

func (s *Session) add(ctx context.Context, candidates []Candidate) error {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Track.ID
	}

	err := s.engine.wait(ctx)
	if err == nil {
		err = s.engine.provider.AddTracks(ctx, s.playlist.ID, ids)
		if err != nil {
			err = fmt.Errorf("failed to add tracks: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unclaim(candidates)

	if err != nil {
		return err
	}
	if !s.current() {
		return shared.ErrStaleSession
	}

	now := time.Now()
	added := make(map[string]bool, len(candidates))
	records := make([]*features.Record, 0, len(candidates))
	for _, c := range candidates {
		s.entries = append(s.entries, models.PlaylistEntry{AddedAt: now, Track: c.Track})
		added[c.Track.ID] = true
		if c.record != nil {
			records = append(records, c.record)
		}
	}

	s.index = s.index.With(records...)
	s.candidates = slices.DeleteFunc(s.candidates, func(c Candidate) bool { return added[c.Track.ID] })

	sendProgress(s.progress, addTracksUpdate(len(candidates), s.playlist))
	return nil
}
