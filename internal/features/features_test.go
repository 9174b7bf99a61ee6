package features

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/desertthunder/keytrack/internal/keys"
)

func record(id string, pitch keys.PitchClass, mode keys.Mode, tempo float64) *Record {
	return &Record{TrackID: id, PitchClass: pitch, Mode: mode, Tempo: tempo}
}

func TestIndex(t *testing.T) {
	t.Run("Build skips nil entries", func(t *testing.T) {
		ix := Build(
			[]*Record{record("a", 0, keys.Major, 120), nil},
			[]*Record{nil, record("b", 9, keys.Minor, 90)},
		)
		if ix.Len() != 2 {
			t.Fatalf("expected 2 records, got %d", ix.Len())
		}
		if _, ok := ix.Lookup("a"); !ok {
			t.Error("expected a to be indexed")
		}
		if _, ok := ix.Lookup("missing"); ok {
			t.Error("missing track should not be found")
		}
	})

	t.Run("Build skips records without ID", func(t *testing.T) {
		ix := Build([]*Record{record("", 1, keys.Major, 100)})
		if ix.Len() != 0 {
			t.Errorf("expected empty index, got %d", ix.Len())
		}
	})

	t.Run("later duplicates win", func(t *testing.T) {
		ix := Build(
			[]*Record{record("a", 0, keys.Major, 100)},
			[]*Record{record("a", 5, keys.Minor, 140)},
		)
		r, _ := ix.Lookup("a")
		if r.PitchClass != 5 || r.Tempo != 140 {
			t.Errorf("expected the second record, got %+v", r)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if Build().Len() != 0 {
			t.Error("expected empty index")
		}
	})

	t.Run("nil index", func(t *testing.T) {
		var ix *Index
		if _, ok := ix.Lookup("a"); ok {
			t.Error("nil index should find nothing")
		}
		if ix.Resolve("a", keys.Camelot).Known() {
			t.Error("nil index should resolve unknown")
		}
		if ix.With(record("a", 1, keys.Major, 1)).Len() != 1 {
			t.Error("With on nil index should create one")
		}
	})

	t.Run("With copies on write", func(t *testing.T) {
		base := Build([]*Record{record("a", 0, keys.Major, 100)})
		next := base.With(record("b", 2, keys.Minor, 128), nil)

		if base.Len() != 1 {
			t.Errorf("base index changed: %d records", base.Len())
		}
		if next.Len() != 2 {
			t.Errorf("expected 2 records, got %d", next.Len())
		}
		if _, ok := base.Lookup("b"); ok {
			t.Error("base should not see b")
		}
	})
}

func TestResolve(t *testing.T) {
	ix := Build([]*Record{
		record("c-major", 0, keys.Major, 127.6),
		record("a-minor", 9, keys.Minor, 89.5),
		record("broken", 14, keys.Major, 120),
		record("no-key", -1, keys.Minor, 100),
	})

	t.Run("pitch class zero is a real key", func(t *testing.T) {
		a := ix.Resolve("c-major", keys.Camelot)
		if !a.Known() {
			t.Fatal("C major should resolve")
		}
		if got, _ := a.Key(); got != "8B" {
			t.Errorf("Key() = %s, want 8B", got)
		}
		if got, _ := a.MusicalKey(); got != "C" {
			t.Errorf("MusicalKey() = %s, want C", got)
		}
		if got, _ := a.Quality(); got != "Major" {
			t.Errorf("Quality() = %s, want Major", got)
		}
		if got, _ := a.OpenKey(); got != "1d" {
			t.Errorf("OpenKey() = %s, want 1d", got)
		}
		if got, _ := a.BPM(); got != 128 {
			t.Errorf("BPM() = %d, want 128", got)
		}
	})

	t.Run("wheel selects key code", func(t *testing.T) {
		tests := []struct {
			wheel keys.Wheel
			want  string
		}{
			{keys.Musical, "A"},
			{keys.Camelot, "8A"},
			{keys.Open, "1m"},
		}
		for _, tt := range tests {
			got, ok := ix.Resolve("a-minor", tt.wheel).Key()
			if !ok || got != tt.want {
				t.Errorf("%s: Key() = %s, want %s", tt.wheel, got, tt.want)
			}
		}
	})

	t.Run("halves round away from zero", func(t *testing.T) {
		if got, _ := ix.Resolve("a-minor", keys.Musical).BPM(); got != 90 {
			t.Errorf("BPM() = %d, want 90", got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		for _, id := range []string{"missing", "broken", "no-key"} {
			a := ix.Resolve(id, keys.Camelot)
			if a.Known() {
				t.Errorf("%s should be unknown", id)
			}
			if _, ok := a.Key(); ok {
				t.Errorf("%s: Key() should not be ok", id)
			}
			if _, ok := a.BPM(); ok {
				t.Errorf("%s: BPM() should not be ok", id)
			}
			if a.DisplayKey() != NotAvailable || a.DisplayBPM() != NotAvailable {
				t.Errorf("%s: expected N/A display", id)
			}
		}
	})

	t.Run("InWheel", func(t *testing.T) {
		a := ix.Resolve("a-minor", keys.Musical).InWheel(keys.Open)
		if got := a.DisplayKey(); got != "1m" {
			t.Errorf("DisplayKey() = %s, want 1m", got)
		}
	})

	t.Run("MarshalJSON", func(t *testing.T) {
		data, err := json.Marshal(ix.Resolve("missing", keys.Camelot))
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"key":null`) || !strings.Contains(string(data), `"bpm":null`) {
			t.Errorf("unknown attributes should marshal nulls, got %s", data)
		}

		data, err = json.Marshal(ix.Resolve("c-major", keys.Camelot))
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"camelot":"8B"`) || !strings.Contains(string(data), `"bpm":128`) {
			t.Errorf("unexpected JSON: %s", data)
		}
	})
}
