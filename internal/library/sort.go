package library

import (
	"sort"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/models"
)

type sortOptions struct {
	numeric bool
}

// SortOption tweaks [HarmonicSort].
type SortOption func(*sortOptions)

// NumericWheelOrder orders Camelot codes by wheel number then letter (2A before 10A)
// instead of the default byte-wise comparison (10A before 2A).
func NumericWheelOrder() SortOption {
	return func(o *sortOptions) { o.numeric = true }
}

type sortKey struct {
	known   bool
	camelot string
	number  int
	letter  string
	bpm     int
}

// HarmonicSort returns a new slice ordered for harmonic mixing.
//
// Tracks without analysis come first and keep their relative order. Known tracks are
// ordered by Camelot code, then by BPM ascending. The sort is stable, so ties keep input order.
func HarmonicSort(entries []models.PlaylistEntry, ix *features.Index, opts ...SortOption) []models.PlaylistEntry {
	var o sortOptions
	for _, opt := range opts {
		opt(&o)
	}

	type keyed struct {
		entry models.PlaylistEntry
		key   sortKey
	}

	items := make([]keyed, len(entries))
	for i, e := range entries {
		items[i] = keyed{entry: e, key: sortKeyFor(e.Track.ID, ix)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i].key, items[j].key, o)
	})

	out := make([]models.PlaylistEntry, len(items))
	for i, it := range items {
		out[i] = it.entry
	}
	return out
}

func sortKeyFor(trackID string, ix *features.Index) sortKey {
	attrs := ix.Resolve(trackID, keys.Camelot)
	if !attrs.Known() {
		return sortKey{}
	}

	code, _ := attrs.Camelot()
	bpm, _ := attrs.BPM()
	n, letter := splitCamelot(code)
	return sortKey{known: true, camelot: code, number: n, letter: letter, bpm: bpm}
}

// less is a strict weak ordering: unknown < known, two unknowns are equal.
func less(a, b sortKey, o sortOptions) bool {
	if !a.known || !b.known {
		return !a.known && b.known
	}

	if o.numeric {
		if a.number != b.number {
			return a.number < b.number
		}
		if a.letter != b.letter {
			return a.letter < b.letter
		}
	} else if a.camelot != b.camelot {
		return a.camelot < b.camelot
	}

	return a.bpm < b.bpm
}

func splitCamelot(code string) (int, string) {
	k, err := keys.ParseCamelotKey(code)
	if err != nil {
		return 0, ""
	}
	return k.Number, k.Letter
}
