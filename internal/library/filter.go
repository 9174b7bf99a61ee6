// package library filters and orders playlist entries by search text, key and tempo.
//
// Everything here is pure: no I/O, no timers. Callers that need debouncing (the TUI) do it before calling in.
package library

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
)

// Criteria selects playlist entries. Zero-valued fields are inactive.
type Criteria struct {
	Search    string     // case-insensitive substring of track or artist name
	Wheel     keys.Wheel // notation used for Keys
	Keys      []string   // accepted key codes in Wheel
	Qualities []string   // "Major" / "Minor", only applied with the Musical wheel
	MinBPM    *int       // inclusive
	MaxBPM    *int       // inclusive
}

// Active reports whether any criterion would exclude entries.
func (c Criteria) Active() bool {
	return strings.TrimSpace(c.Search) != "" ||
		len(c.Keys) > 0 ||
		c.qualityActive() ||
		c.MinBPM != nil ||
		c.MaxBPM != nil
}

func (c Criteria) qualityActive() bool {
	return c.Wheel == keys.Musical && len(c.Qualities) > 0
}

// Validate rejects key codes that do not exist in the selected wheel and inverted BPM bounds.
func (c Criteria) Validate() error {
	if len(c.Keys) > 0 {
		valid := toSet(keys.Codes(c.Wheel))
		for _, k := range c.Keys {
			if !valid[k] {
				return fmt.Errorf("%w: %q is not a %s key", shared.ErrInvalidArgument, k, c.Wheel)
			}
		}
	}

	for _, q := range c.Qualities {
		if !slices.Contains(keys.Qualities(), q) {
			return fmt.Errorf("%w: unknown quality %q", shared.ErrInvalidArgument, q)
		}
	}

	if c.MinBPM != nil && c.MaxBPM != nil && *c.MinBPM > *c.MaxBPM {
		return fmt.Errorf("%w: min bpm %d is above max bpm %d", shared.ErrInvalidArgument, *c.MinBPM, *c.MaxBPM)
	}
	return nil
}

// Apply returns the entries matching every active criterion, in their original order.
//
// Entries whose attributes are unknown never match an active key, quality or BPM criterion.
// With no active criteria the result is a copy of entries.
func Apply(entries []models.PlaylistEntry, c Criteria, ix *features.Index) []models.PlaylistEntry {
	out := make([]models.PlaylistEntry, 0, len(entries))
	if !c.Active() {
		return append(out, entries...)
	}

	m := newMatcher(c)
	for _, e := range entries {
		if m.match(e, ix) {
			out = append(out, e)
		}
	}
	return out
}

type matcher struct {
	search    string
	wheel     keys.Wheel
	keys      map[string]bool
	qualities map[string]bool
	min, max  *int
}

func newMatcher(c Criteria) matcher {
	m := matcher{
		search: strings.ToLower(strings.TrimSpace(c.Search)),
		wheel:  c.Wheel,
		min:    c.MinBPM,
		max:    c.MaxBPM,
	}
	if len(c.Keys) > 0 {
		m.keys = toSet(c.Keys)
	}
	if c.qualityActive() {
		m.qualities = toSet(c.Qualities)
	}
	return m
}

func (m matcher) match(e models.PlaylistEntry, ix *features.Index) bool {
	if m.search != "" && !matchesText(e.Track, m.search) {
		return false
	}

	if m.keys == nil && m.qualities == nil && m.min == nil && m.max == nil {
		return true
	}

	attrs := ix.Resolve(e.Track.ID, m.wheel)
	if !attrs.Known() {
		return false
	}

	if m.keys != nil {
		if k, _ := attrs.Key(); !m.keys[k] {
			return false
		}
	}

	if m.qualities != nil {
		if q, _ := attrs.Quality(); !m.qualities[q] {
			return false
		}
	}

	bpm, _ := attrs.BPM()
	if m.min != nil && bpm < *m.min {
		return false
	}
	if m.max != nil && bpm > *m.max {
		return false
	}
	return true
}

// matchesText checks the lower-cased needle against the track name and every artist name.
func matchesText(t models.Track, needle string) bool {
	if strings.Contains(strings.ToLower(t.Name), needle) {
		return true
	}
	for _, a := range t.Artists {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
