package library

import (
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
)

func entry(id, name string, artists ...string) models.PlaylistEntry {
	track := models.Track{ID: id, Name: name, URI: "spotify:track:" + id}
	for i, a := range artists {
		track.Artists = append(track.Artists, models.Artist{ID: id + "-artist-" + string(rune('a'+i)), Name: a})
	}
	return models.PlaylistEntry{Track: track}
}

func rec(id string, pitch keys.PitchClass, mode keys.Mode, tempo float64) *features.Record {
	return &features.Record{TrackID: id, PitchClass: pitch, Mode: mode, Tempo: tempo}
}

func ids(entries []models.PlaylistEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Track.ID
	}
	return out
}

func intPtr(i int) *int { return &i }

// fixture: 8A @ 100, 8A @ 128, 5A @ 120, unknown, 8B @ 90
func fixture() ([]models.PlaylistEntry, *features.Index) {
	entries := []models.PlaylistEntry{
		entry("t1", "Midnight City", "M83"),
		entry("t2", "Strobe", "deadmau5"),
		entry("t3", "Windowlicker", "Aphex Twin"),
		entry("t4", "Untitled", "Unknown Artist"),
		entry("t5", "Teardrop", "Massive Attack", "Elizabeth Fraser"),
	}
	ix := features.Build([]*features.Record{
		rec("t1", 9, keys.Minor, 100.2),
		rec("t2", 9, keys.Minor, 127.8),
		rec("t3", 0, keys.Minor, 120),
		nil,
		rec("t5", 0, keys.Major, 90),
	})
	return entries, ix
}

func TestApply(t *testing.T) {
	entries, ix := fixture()

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{
			name:     "no criteria keeps everything",
			criteria: Criteria{},
			want:     []string{"t1", "t2", "t3", "t4", "t5"},
		},
		{
			name:     "search is case insensitive on track name",
			criteria: Criteria{Search: "STROBE"},
			want:     []string{"t2"},
		},
		{
			name:     "search matches any artist",
			criteria: Criteria{Search: "fraser"},
			want:     []string{"t5"},
		},
		{
			name:     "search matches unknown tracks by text",
			criteria: Criteria{Search: "untitled"},
			want:     []string{"t4"},
		},
		{
			name:     "camelot key set",
			criteria: Criteria{Wheel: keys.Camelot, Keys: []string{"8A"}},
			want:     []string{"t1", "t2"},
		},
		{
			name:     "open key set",
			criteria: Criteria{Wheel: keys.Open, Keys: []string{"10m", "1d"}},
			want:     []string{"t3", "t5"},
		},
		{
			name:     "musical key with quality",
			criteria: Criteria{Wheel: keys.Musical, Keys: []string{"C"}, Qualities: []string{"Major"}},
			want:     []string{"t5"},
		},
		{
			name:     "quality ignored outside musical wheel",
			criteria: Criteria{Wheel: keys.Camelot, Qualities: []string{"Major"}},
			want:     []string{"t1", "t2", "t3", "t4", "t5"},
		},
		{
			name:     "bpm bounds are inclusive on rounded tempo",
			criteria: Criteria{MinBPM: intPtr(100), MaxBPM: intPtr(120)},
			want:     []string{"t1", "t3"},
		},
		{
			name:     "min bpm only excludes unknown",
			criteria: Criteria{MinBPM: intPtr(0)},
			want:     []string{"t1", "t2", "t3", "t5"},
		},
		{
			name:     "criteria combine with AND",
			criteria: Criteria{Search: "o", Wheel: keys.Camelot, Keys: []string{"8A", "5A"}, MaxBPM: intPtr(125)},
			want:     []string{"t3"},
		},
		{
			name:     "key filter with no match",
			criteria: Criteria{Wheel: keys.Camelot, Keys: []string{"12B"}},
			want:     []string{},
		},
		{
			name:     "camelot code matches under the camelot wheel",
			criteria: Criteria{Wheel: keys.Camelot, Keys: []string{"8B"}},
			want:     []string{"t5"},
		},
		{
			name:     "camelot code is not a synonym under the musical wheel",
			criteria: Criteria{Wheel: keys.Musical, Keys: []string{"8B"}},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(entries, tt.criteria, ix))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("three tracks with one unanalyzed", func(t *testing.T) {
		entries := []models.PlaylistEntry{
			entry("a", "Fast", "X"),
			entry("b", "Slow", "Y"),
			entry("c", "Missing", "Z"),
		}
		ix := features.Build([]*features.Record{
			rec("a", 0, keys.Major, 128.4),
			rec("b", 9, keys.Minor, 89.6),
		})

		if got := ids(Apply(entries, Criteria{MinBPM: intPtr(100)}, ix)); !slices.Equal(got, []string{"a"}) {
			t.Errorf("Apply(minBpm=100) = %v, want [a]", got)
		}
		if got := ids(HarmonicSort(entries, ix)); got[0] != "c" {
			t.Errorf("HarmonicSort() = %v, want the unanalyzed track first", got)
		}
	})

	t.Run("returns a copy", func(t *testing.T) {
		got := Apply(entries, Criteria{}, ix)
		got[0].Track.Name = "changed"
		if entries[0].Track.Name == "changed" {
			t.Error("Apply should not alias its input")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := Apply(nil, Criteria{Search: "x"}, ix); len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
	})
}

func TestCriteria(t *testing.T) {
	t.Run("Active", func(t *testing.T) {
		if (Criteria{Search: "   "}).Active() {
			t.Error("whitespace search should be inactive")
		}
		if !(Criteria{MaxBPM: intPtr(1)}).Active() {
			t.Error("max bpm should be active")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name     string
			criteria Criteria
			wantErr  bool
		}{
			{"valid camelot", Criteria{Wheel: keys.Camelot, Keys: []string{"8A", "12B"}}, false},
			{"musical code in camelot wheel", Criteria{Wheel: keys.Camelot, Keys: []string{"C"}}, true},
			{"valid musical", Criteria{Wheel: keys.Musical, Keys: []string{"C#/Db"}, Qualities: []string{"Minor"}}, false},
			{"bad quality", Criteria{Qualities: []string{"Dorian"}}, true},
			{"inverted bounds", Criteria{MinBPM: intPtr(140), MaxBPM: intPtr(120)}, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.criteria.Validate()
				if tt.wantErr && !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})
}

func TestHarmonicSort(t *testing.T) {
	t.Run("unknown first then camelot then bpm", func(t *testing.T) {
		entries, ix := fixture()
		got := ids(HarmonicSort(entries, ix))
		// t3=5A, t1/t2=8A (100, 128), t5=8B
		want := []string{"t4", "t3", "t1", "t2", "t5"}
		if !slices.Equal(got, want) {
			t.Errorf("HarmonicSort() = %v, want %v", got, want)
		}
	})

	t.Run("does not modify input", func(t *testing.T) {
		entries, ix := fixture()
		before := ids(entries)
		HarmonicSort(entries, ix)
		if !slices.Equal(ids(entries), before) {
			t.Error("input order changed")
		}
	})

	t.Run("unknowns keep their relative order", func(t *testing.T) {
		entries := []models.PlaylistEntry{
			entry("u1", "a"), entry("k1", "b"), entry("u2", "c"), entry("u3", "d"),
		}
		ix := features.Build([]*features.Record{rec("k1", 0, keys.Major, 100)})
		got := ids(HarmonicSort(entries, ix))
		want := []string{"u1", "u2", "u3", "k1"}
		if !slices.Equal(got, want) {
			t.Errorf("HarmonicSort() = %v, want %v", got, want)
		}
	})

	t.Run("camelot codes compare byte-wise by default", func(t *testing.T) {
		entries := []models.PlaylistEntry{entry("two", "a"), entry("ten", "b")}
		ix := features.Build([]*features.Record{
			rec("two", 3, keys.Minor, 100), // 2A
			rec("ten", 2, keys.Major, 100), // 10B
		})
		got := ids(HarmonicSort(entries, ix))
		if !slices.Equal(got, []string{"ten", "two"}) {
			t.Errorf("expected 10B before 2A, got %v", got)
		}

		got = ids(HarmonicSort(entries, ix, NumericWheelOrder()))
		if !slices.Equal(got, []string{"two", "ten"}) {
			t.Errorf("numeric order: expected 2A before 10B, got %v", got)
		}
	})

	t.Run("numeric order puts A before B on the same number", func(t *testing.T) {
		entries := []models.PlaylistEntry{entry("b", "x"), entry("a", "y")}
		ix := features.Build([]*features.Record{
			rec("b", 0, keys.Major, 90),  // 8B
			rec("a", 9, keys.Minor, 150), // 8A
		})
		got := ids(HarmonicSort(entries, ix, NumericWheelOrder()))
		if !slices.Equal(got, []string{"a", "b"}) {
			t.Errorf("expected 8A before 8B, got %v", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := HarmonicSort(nil, nil); len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
	})
}

func TestFilterPlaylists(t *testing.T) {
	playlists := []models.Playlist{
		{ID: "p1", Name: "Warmup", Description: "slow deep house", OwnerName: "dj"},
		{ID: "p2", Name: "Peak Time", Description: "", OwnerName: "Selector"},
		{ID: "p3", Name: "Chill", Description: "sunday HOUSE", OwnerName: "me"},
	}

	tests := []struct {
		search string
		want   []string
	}{
		{"", []string{"p1", "p2", "p3"}},
		{"house", []string{"p1", "p3"}},
		{"PEAK", []string{"p2"}},
		{"selector", []string{"p2"}},
		{"nothing", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := FilterPlaylists(playlists, tt.search)
			gotIDs := make([]string, len(got))
			for i, p := range got {
				gotIDs[i] = p.ID
			}
			if !slices.Equal(gotIDs, tt.want) {
				t.Errorf("FilterPlaylists(%q) = %v, want %v", tt.search, gotIDs, tt.want)
			}
		})
	}
}

func TestCriteriaInput_Parse(t *testing.T) {
	tests := []struct {
		name    string
		input   CriteriaInput
		want    Criteria
		wantErr bool
	}{
		{
			name:  "empty input is inactive",
			input: CriteriaInput{},
			want:  Criteria{Wheel: keys.Musical},
		},
		{
			name:  "comma separated and repeated keys",
			input: CriteriaInput{Wheel: "camelot", Keys: []string{"8A, 9A", "10B"}},
			want:  Criteria{Wheel: keys.Camelot, Keys: []string{"8A", "9A", "10B"}},
		},
		{
			name:  "qualities ignore case",
			input: CriteriaInput{Qualities: []string{"minor,MAJOR"}},
			want:  Criteria{Wheel: keys.Musical, Qualities: []string{"Minor", "Major"}},
		},
		{
			name:  "bpm bounds and trimmed search",
			input: CriteriaInput{Search: "  strobe ", MinBPM: "120", MaxBPM: " 128"},
			want:  Criteria{Wheel: keys.Musical, Search: "strobe", MinBPM: intPtr(120), MaxBPM: intPtr(128)},
		},
		{name: "unknown wheel", input: CriteriaInput{Wheel: "circle"}, wantErr: true},
		{name: "unknown quality", input: CriteriaInput{Qualities: []string{"dorian"}}, wantErr: true},
		{name: "bad bpm", input: CriteriaInput{MinBPM: "fast"}, wantErr: true},
		{name: "negative bpm", input: CriteriaInput{MaxBPM: "-1"}, wantErr: true},
		{name: "key from another wheel", input: CriteriaInput{Wheel: "open", Keys: []string{"8A"}}, wantErr: true},
		{name: "inverted bounds", input: CriteriaInput{MinBPM: "130", MaxBPM: "120"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.Parse()
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.Search != tt.want.Search || got.Wheel != tt.want.Wheel {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			if !slices.Equal(got.Keys, tt.want.Keys) || !slices.Equal(got.Qualities, tt.want.Qualities) {
				t.Errorf("expected keys %v qualities %v, got %v %v", tt.want.Keys, tt.want.Qualities, got.Keys, got.Qualities)
			}
			if !equalBound(got.MinBPM, tt.want.MinBPM) || !equalBound(got.MaxBPM, tt.want.MaxBPM) {
				t.Errorf("unexpected bpm bounds %v %v", got.MinBPM, got.MaxBPM)
			}
		})
	}
}

func equalBound(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
