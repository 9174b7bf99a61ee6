package features

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/desertthunder/keytrack/internal/keys"
)

// NotAvailable is rendered in place of any unknown attribute.
const NotAvailable = "N/A"

// Attributes is the resolved key and tempo of a track.
//
// Fields are private so callers go through the (value, ok) accessors; a pitch class
// of 0 (C) is a real key and must never be confused with "no analysis".
type Attributes struct {
	known    bool
	wheel    keys.Wheel
	notation keys.Notation
	mode     keys.Mode
	bpm      int
}

// Unknown is the result for tracks without usable analysis.
var Unknown = Attributes{}

// Resolve derives the attributes for trackID, rendering its key in the selected wheel.
//
// Missing records and pitch classes outside [0, 11] resolve to [Unknown].
func (ix *Index) Resolve(trackID string, w keys.Wheel) Attributes {
	r, ok := ix.Lookup(trackID)
	if !ok {
		return Unknown
	}
	return FromRecord(r, w)
}

// FromRecord resolves a single record without an index.
func FromRecord(r Record, w keys.Wheel) Attributes {
	n, ok := keys.Lookup(r.PitchClass)
	if !ok {
		return Unknown
	}

	mode := keys.Minor
	if r.Mode == keys.Major {
		mode = keys.Major
	}

	return Attributes{
		known:    true,
		wheel:    w,
		notation: n,
		mode:     mode,
		bpm:      int(math.Round(r.Tempo)),
	}
}

// Known reports whether the track had usable analysis.
func (a Attributes) Known() bool { return a.known }

// Wheel is the notation [Attributes.Key] renders in.
func (a Attributes) Wheel() keys.Wheel { return a.wheel }

// InWheel re-renders the same attributes for a different wheel.
func (a Attributes) InWheel(w keys.Wheel) Attributes {
	a.wheel = w
	return a
}

// Key returns the key code in the selected wheel.
func (a Attributes) Key() (string, bool) {
	if !a.known {
		return "", false
	}
	return a.notation.Code(a.wheel, a.mode), true
}

// MusicalKey returns the pitch name, e.g. "F#/Gb".
func (a Attributes) MusicalKey() (string, bool) {
	if !a.known {
		return "", false
	}
	return a.notation.Musical, true
}

// Quality returns "Major" or "Minor".
func (a Attributes) Quality() (string, bool) {
	if !a.known {
		return "", false
	}
	return a.mode.String(), true
}

func (a Attributes) Camelot() (string, bool) {
	if !a.known {
		return "", false
	}
	return a.notation.Camelot[a.mode], true
}

func (a Attributes) OpenKey() (string, bool) {
	if !a.known {
		return "", false
	}
	return a.notation.OpenKey[a.mode], true
}

// BPM returns the tempo rounded to the nearest integer.
func (a Attributes) BPM() (int, bool) {
	if !a.known {
		return 0, false
	}
	return a.bpm, true
}

// Display helpers render [NotAvailable] for unknown values.

func (a Attributes) DisplayKey() string        { return orNA(a.Key()) }
func (a Attributes) DisplayMusicalKey() string { return orNA(a.MusicalKey()) }
func (a Attributes) DisplayQuality() string    { return orNA(a.Quality()) }
func (a Attributes) DisplayCamelot() string    { return orNA(a.Camelot()) }
func (a Attributes) DisplayOpenKey() string    { return orNA(a.OpenKey()) }

func (a Attributes) DisplayBPM() string {
	bpm, ok := a.BPM()
	if !ok {
		return NotAvailable
	}
	return strconv.Itoa(bpm)
}

func orNA(s string, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return s
}

type attributesJSON struct {
	Known   bool    `json:"known"`
	Wheel   string  `json:"wheel"`
	Key     *string `json:"key"`
	Musical *string `json:"musical_key"`
	Quality *string `json:"quality"`
	Camelot *string `json:"camelot"`
	OpenKey *string `json:"open_key"`
	BPM     *int    `json:"bpm"`
}

func optString(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}

func optInt(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}

// MarshalJSON writes unknown values as null.
func (a Attributes) MarshalJSON() ([]byte, error) {
	return json.Marshal(attributesJSON{
		Known:   a.known,
		Wheel:   a.wheel.String(),
		Key:     optString(a.Key()),
		Musical: optString(a.MusicalKey()),
		Quality: optString(a.Quality()),
		Camelot: optString(a.Camelot()),
		OpenKey: optString(a.OpenKey()),
		BPM:     optInt(a.BPM()),
	})
}
