package tasks

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxSeeds   = 5
	DefaultMaxPerSeed = 1
)

// Candidate is a recommended track not yet in the playlist.
type Candidate struct {
	Track      models.Track        `json:"track"`
	Attributes features.Attributes `json:"attributes"`
	SeedArtist models.Artist       `json:"seed_artist"`

	record *features.Record
}

// InWheel returns a copy whose attributes render in w.
func (c Candidate) InWheel(w keys.Wheel) Candidate {
	c.Attributes = c.Attributes.InWheel(w)
	return c
}

// Selector picks recommendations from the top tracks of artists already in a playlist.
type Selector struct {
	provider   services.Provider
	logger     *log.Logger
	limiter    *rate.Limiter
	maxSeeds   int
	maxPerSeed int

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// SelectorOption configures a [Selector].
type SelectorOption func(*Selector)

// WithSeeds sets how many seed tracks are sampled and how many picks each seed contributes.
func WithSeeds(maxSeeds, maxPerSeed int) SelectorOption {
	return func(s *Selector) {
		if maxSeeds > 0 {
			s.maxSeeds = maxSeeds
		}
		if maxPerSeed > 0 {
			s.maxPerSeed = maxPerSeed
		}
	}
}

// WithRand injects the random source, for deterministic tests.
func WithRand(r *rand.Rand) SelectorOption {
	return func(s *Selector) { s.rng = r }
}

// WithLimiter paces provider requests.
func WithLimiter(l *rate.Limiter) SelectorOption {
	return func(s *Selector) { s.limiter = l }
}

// NewSelector creates a Selector with 5 seeds and 1 pick per seed.
func NewSelector(provider services.Provider, logger *log.Logger, opts ...SelectorOption) *Selector {
	s := &Selector{
		provider:   provider,
		logger:     logger,
		maxSeeds:   DefaultMaxSeeds,
		maxPerSeed: DefaultMaxPerSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.rng == nil {
		now := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(now, now>>1))
	}
	return s
}

type seed struct {
	trackID string
	artist  models.Artist
}

// Select samples seed tracks from entries, fetches their lead artists' top tracks and
// picks ones not already in the playlist.
//
// A failing top-tracks request only drops that seed. The final audio-features request is
// all or nothing. No eligible seeds means no provider calls and an empty result.
func (s *Selector) Select(ctx context.Context, entries []models.PlaylistEntry) ([]Candidate, error) {
	seeds := s.sample(eligibleSeeds(entries))
	if len(seeds) == 0 {
		return []Candidate{}, nil
	}

	topTracks := s.fetchTopTracks(ctx, seeds)

	excluded := make(map[string]bool, 2*len(entries))
	for _, e := range entries {
		exclude(excluded, e.Track)
	}

	var candidates []Candidate
	for i, sd := range seeds {
		for _, track := range s.pick(topTracks[i], excluded) {
			candidates = append(candidates, Candidate{Track: track, SeedArtist: sd.artist})
		}
	}

	if len(candidates) == 0 {
		return []Candidate{}, nil
	}

	if err := s.attachFeatures(ctx, candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// eligibleSeeds keeps entries with a track ID and an artist ID, seeded by the first artist that has one.
func eligibleSeeds(entries []models.PlaylistEntry) []seed {
	var seeds []seed
	for _, e := range entries {
		if e.Track.ID == "" {
			continue
		}
		i := slices.IndexFunc(e.Track.Artists, func(a models.Artist) bool { return a.ID != "" })
		if i < 0 {
			continue
		}
		seeds = append(seeds, seed{trackID: e.Track.ID, artist: e.Track.Artists[i]})
	}
	return seeds
}

// sample draws up to maxSeeds seeds uniformly without replacement, in draw order.
func (s *Selector) sample(seeds []seed) []seed {
	if len(seeds) == 0 {
		return nil
	}

	s.mu.Lock()
	perm := s.rng.Perm(len(seeds))
	s.mu.Unlock()

	n := min(s.maxSeeds, len(seeds))
	out := make([]seed, n)
	for i := range n {
		out[i] = seeds[perm[i]]
	}
	return out
}

// fetchTopTracks requests every seed concurrently. Failed seeds get a nil slice.
func (s *Selector) fetchTopTracks(ctx context.Context, seeds []seed) [][]models.Track {
	results := make([][]models.Track, len(seeds))

	var wg sync.WaitGroup
	for i, sd := range seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					s.logger.Warn("top tracks skipped", "artist", sd.artist.ID, "error", err)
					return
				}
			}

			tracks, err := s.provider.ArtistTopTracks(ctx, sd.artist.ID)
			if err != nil {
				s.logger.Warn("top tracks failed", "seed", sd.trackID, "artist", sd.artist.ID, "name", sd.artist.Name, "error", err)
				return
			}
			results[i] = tracks
		}()
	}
	wg.Wait()
	return results
}

// pick shuffles the available tracks and takes up to maxPerSeed, excluding each pick as it goes.
func (s *Selector) pick(tracks []models.Track, excluded map[string]bool) []models.Track {
	var available []models.Track
	for _, t := range tracks {
		if t.ID == "" || isExcluded(excluded, t) {
			continue
		}
		available = append(available, t)
	}
	if len(available) == 0 {
		return nil
	}

	s.mu.Lock()
	s.rng.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
	s.mu.Unlock()

	var picked []models.Track
	for _, t := range available {
		if len(picked) == s.maxPerSeed {
			break
		}
		if isExcluded(excluded, t) {
			continue
		}
		picked = append(picked, t)
		exclude(excluded, t)
	}
	return picked
}

func (s *Selector) attachFeatures(ctx context.Context, candidates []Candidate) error {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Track.ID
	}

	var batches [][]*features.Record
	for chunk := range slices.Chunk(ids, services.MaxFeatureBatchSize) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
			}
		}

		records, err := s.provider.AudioFeatures(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to fetch recommendation features: %w", err)
		}
		batches = append(batches, records)
	}

	ix := features.Build(batches...)
	for i := range candidates {
		id := candidates[i].Track.ID
		candidates[i].Attributes = ix.Resolve(id, keys.Camelot)
		if r, ok := ix.Lookup(id); ok {
			candidates[i].record = &r
		}
	}
	return nil
}

func exclude(set map[string]bool, t models.Track) {
	if t.ID != "" {
		set["id:"+t.ID] = true
	}
	if name := shared.NormalizeName(t.Name); name != "" {
		set["name:"+name] = true
	}
}

func isExcluded(set map[string]bool, t models.Track) bool {
	return set["id:"+t.ID] || set["name:"+shared.NormalizeName(t.Name)]
}
