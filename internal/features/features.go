// package features indexes per-track audio analysis and resolves it into display attributes.
package features

import (
	"github.com/desertthunder/keytrack/internal/keys"
)

// Record is the provider's analysis of one track.
//
// A track without analysis has no Record at all; callers never see zeroed placeholders.
type Record struct {
	TrackID    string          `json:"track_id"`
	PitchClass keys.PitchClass `json:"key"`
	Mode       keys.Mode       `json:"mode"`
	Tempo      float64         `json:"tempo"`
}

// Index maps track IDs to their [Record]. It is never mutated after construction.
//
// A nil *Index is valid and behaves as an empty index.
type Index struct {
	records map[string]Record
}

// Build merges provider batches into an index.
//
// Nil entries (tracks the provider could not analyze) and entries without a track ID are skipped.
// When an ID appears more than once the later record wins.
func Build(batches ...[]*Record) *Index {
	size := 0
	for _, b := range batches {
		size += len(b)
	}

	ix := &Index{records: make(map[string]Record, size)}
	for _, batch := range batches {
		ix.put(batch)
	}
	return ix
}

func (ix *Index) put(batch []*Record) {
	for _, r := range batch {
		if r == nil || r.TrackID == "" {
			continue
		}
		ix.records[r.TrackID] = *r
	}
}

// Lookup returns the record for trackID. A missing record is a normal outcome.
func (ix *Index) Lookup(trackID string) (Record, bool) {
	if ix == nil {
		return Record{}, false
	}
	r, ok := ix.records[trackID]
	return r, ok
}

// Len reports the number of indexed tracks.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.records)
}

// With returns a new index holding the existing records plus the given ones.
// The receiver is left untouched so readers holding it see a consistent view.
func (ix *Index) With(records ...*Record) *Index {
	next := &Index{records: make(map[string]Record, ix.Len()+len(records))}
	if ix != nil {
		for id, r := range ix.records {
			next.records[id] = r
		}
	}
	next.put(records)
	return next
}

