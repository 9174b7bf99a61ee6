package ui

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/tasks"
	th "github.com/desertthunder/keytrack/internal/testing"
)

var (
	warmup   = models.Playlist{ID: "pl1", Name: "Warmup", OwnerName: "dj"}
	cooldown = models.Playlist{ID: "pl2", Name: "Cooldown", Description: "ambient"}
)

func newTestModel(t *testing.T) (*Model, *th.MockProvider) {
	t.Helper()

	mock := th.NewMockProvider()
	mock.Lists = []models.Playlist{warmup, cooldown}
	mock.Entries[warmup.ID] = []models.PlaylistEntry{
		th.Entry("t1", "Midnight City", "M83"),
		th.Entry("t2", "Strobe", "deadmau5"),
		th.Entry("t3", "Teardrop", "Massive Attack"),
	}
	mock.Entries[cooldown.ID] = []models.PlaylistEntry{th.Entry("c1", "Avril 14th", "Aphex Twin")}
	mock.Features["t1"] = &features.Record{TrackID: "t1", PitchClass: 9, Mode: keys.Minor, Tempo: 105}
	mock.Features["t2"] = &features.Record{TrackID: "t2", PitchClass: 0, Mode: keys.Minor, Tempo: 128}
	mock.TopTracks["M83-id"] = []models.Track{{ID: "r1", Name: "Wait"}}
	mock.TopTracks["deadmau5-id"] = []models.Track{{ID: "r2", Name: "Ghosts n Stuff"}}
	mock.TopTracks["Massive Attack-id"] = []models.Track{{ID: "r3", Name: "Angel"}}

	engine := tasks.NewEngine(mock, nil, nil, tasks.EngineOpts{
		RequestsPerSecond: 10000,
		Burst:             1000,
		Rand:              rand.New(rand.NewPCG(5, 6)),
	})

	m := NewModel(context.Background(), mock, engine, Options{Debounce: time.Millisecond})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(m.Init()())
	return m, mock
}

func press(m *Model, keys string) tea.Cmd {
	var msg tea.KeyMsg
	switch keys {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

// drain runs cmd and feeds each result back until the chain ends.
func drain(m *Model, cmd tea.Cmd) {
	for cmd != nil {
		_, cmd = m.Update(cmd())
	}
}

func open(t *testing.T, m *Model, pl models.Playlist) {
	t.Helper()
	drain(m, m.openPlaylist(pl))
	if m.view != TrackView || m.session == nil {
		t.Fatalf("expected track view after load, got view %d (status %q)", m.view, m.status)
	}
}

func rowIDs(m *Model) []string {
	out := make([]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Track.ID
	}
	return out
}

func TestModel_Playlists(t *testing.T) {
	m, _ := newTestModel(t)

	if n := len(m.playlistList.Items()); n != 2 {
		t.Fatalf("expected 2 playlists, got %d", n)
	}

	t.Run("debounced search applies only the latest input", func(t *testing.T) {
		press(m, "/")
		if !m.searching {
			t.Fatal("expected search to be focused")
		}
		press(m, "a")
		press(m, "m")
		seq := m.searchSeq

		m.Update(searchDebouncedMsg(seq-1, "a"))
		if m.query != "" || len(m.playlistList.Items()) != 2 {
			t.Errorf("stale debounce applied: query %q", m.query)
		}

		m.Update(searchDebouncedMsg(seq, "am"))
		if m.query != "am" {
			t.Errorf("expected query %q, got %q", "am", m.query)
		}
		items := m.playlistList.Items()
		if len(items) != 1 || items[0].(playlistItem).playlist.ID != cooldown.ID {
			t.Errorf("expected only the ambient playlist, got %v", items)
		}
	})

	t.Run("esc clears the search", func(t *testing.T) {
		press(m, "esc")
		if m.searching || m.query != "" || len(m.playlistList.Items()) != 2 {
			t.Errorf("expected cleared search, got query %q searching %v", m.query, m.searching)
		}
	})

	t.Run("tick carries the current input", func(t *testing.T) {
		m.search.SetValue("warm")
		msg := m.debounceSearch()()

		m.Update(msg)
		if m.query != "warm" || len(m.playlistList.Items()) != 1 {
			t.Errorf("expected the warmup playlist, got query %q", m.query)
		}
		m.setQuery("")
	})

	t.Run("typing q while searching does not quit", func(t *testing.T) {
		press(m, "/")
		if cmd := press(m, "q"); cmd != nil {
			if _, ok := cmd().(tea.QuitMsg); ok {
				t.Error("q quit while typing a search")
			}
		}
		press(m, "esc")
	})
}

func TestModel_Tracks(t *testing.T) {
	m, _ := newTestModel(t)
	open(t, m, warmup)

	if got := rowIDs(m); !slices.Equal(got, []string{"t1", "t2", "t3"}) {
		t.Fatalf("unexpected rows %v", got)
	}

	t.Run("wheel cycles notation", func(t *testing.T) {
		want := []keys.Wheel{keys.Camelot, keys.Open, keys.Musical}
		for _, w := range want {
			press(m, "w")
			if m.wheel != w || m.rows[0].Attributes.Wheel() != w {
				t.Errorf("expected wheel %s, got %s", w, m.wheel)
			}
		}
	})

	t.Run("sort toggles harmonic order", func(t *testing.T) {
		press(m, "s")
		if got := rowIDs(m); !slices.Equal(got, []string{"t3", "t2", "t1"}) {
			t.Errorf("expected unknown first then 5A then 8A, got %v", got)
		}
		press(m, "s")
		if got := rowIDs(m); !slices.Equal(got, []string{"t1", "t2", "t3"}) {
			t.Errorf("expected playlist order, got %v", got)
		}
	})

	t.Run("search filters tracks", func(t *testing.T) {
		press(m, "/")
		press(m, "s")
		press(m, "t")
		m.Update(searchDebouncedMsg(m.searchSeq, "st"))
		if got := rowIDs(m); !slices.Equal(got, []string{"t2"}) {
			t.Errorf("expected only Strobe, got %v", got)
		}

		press(m, "enter")
		if m.searching || m.query != "st" {
			t.Errorf("expected committed query, got %q", m.query)
		}

		press(m, "esc")
		if m.query != "" || len(m.rows) != 3 || m.view != TrackView {
			t.Errorf("expected esc to clear the filter first, got %q in view %d", m.query, m.view)
		}
	})

	t.Run("bpm token in search filters by tempo", func(t *testing.T) {
		press(m, "/")
		press(m, "b")
		m.Update(searchDebouncedMsg(m.searchSeq, "bpm:100-110"))
		if got := rowIDs(m); !slices.Equal(got, []string{"t1"}) {
			t.Errorf("expected only Midnight City, got %v", got)
		}

		m.Update(searchDebouncedMsg(m.searchSeq, "bpm:fast"))
		if m.queryErr == nil || len(m.rows) != 3 {
			t.Errorf("expected an invalid filter to fall back to text search, got %v with %d rows", m.queryErr, len(m.rows))
		}

		press(m, "esc")
		if m.searching || m.query != "" || len(m.rows) != 3 {
			t.Errorf("expected cleared filter, got %q", m.query)
		}
	})

	t.Run("esc returns to playlists and closes the session", func(t *testing.T) {
		session := m.session
		press(m, "esc")
		if m.view != PlaylistListView || m.session != nil {
			t.Errorf("expected playlist view, got %d", m.view)
		}
		if session.Current() {
			t.Error("expected the session to be closed")
		}
	})
}

func TestModel_Recommendations(t *testing.T) {
	m, mock := newTestModel(t)
	open(t, m, warmup)

	drain(m, press(m, "r"))
	if m.view != RecommendView || len(m.candidates) != 3 {
		t.Fatalf("expected 3 recommendations, got %d in view %d (%s)", len(m.candidates), m.view, m.status)
	}

	first := m.candidates[0].Track.ID
	drain(m, press(m, "a"))
	if !slices.Equal(mock.Added[warmup.ID], []string{first}) {
		t.Errorf("expected %s to be added, got %v", first, mock.Added[warmup.ID])
	}
	if len(m.candidates) != 2 || len(m.rows) != 4 {
		t.Errorf("expected 2 candidates and 4 rows, got %d and %d", len(m.candidates), len(m.rows))
	}

	drain(m, press(m, "A"))
	if len(mock.Added[warmup.ID]) != 3 || len(m.candidates) != 0 || len(m.rows) != 6 {
		t.Errorf("expected everything added, got writes %v, %d candidates, %d rows", mock.Added[warmup.ID], len(m.candidates), len(m.rows))
	}

	if cmd := press(m, "A"); cmd != nil {
		t.Error("add all with nothing left should not issue a request")
	}

	press(m, "esc")
	if m.view != TrackView {
		t.Errorf("expected track view, got %d", m.view)
	}
}

func TestModel_Loading(t *testing.T) {
	t.Run("newer load wins", func(t *testing.T) {
		m, _ := newTestModel(t)

		// the first message proves the older load has started
		stale := m.openPlaylist(warmup)()
		second := m.openPlaylist(cooldown)
		if _, cmd := m.Update(stale); cmd != nil {
			t.Error("expected the older load to be dropped")
		}
		drain(m, second)

		if m.session == nil || m.session.Playlist().ID != cooldown.ID {
			t.Fatalf("expected the cooldown session, got %+v", m.session)
		}
		if got := rowIDs(m); !slices.Equal(got, []string{"c1"}) {
			t.Errorf("unexpected rows %v", got)
		}
	})

	t.Run("esc cancels a load", func(t *testing.T) {
		m, _ := newTestModel(t)

		cmd := m.openPlaylist(warmup)
		press(m, "esc")
		drain(m, cmd)

		if m.view != PlaylistListView || m.session != nil {
			t.Errorf("expected cancelled load, got view %d", m.view)
		}
	})

	t.Run("failed load returns to playlists", func(t *testing.T) {
		m, _ := newTestModel(t)

		drain(m, m.openPlaylist(models.Playlist{ID: "missing", Name: "Missing"}))
		if m.view != PlaylistListView || m.status == "" {
			t.Errorf("expected an error status on the playlist view, got view %d status %q", m.view, m.status)
		}
	})
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wheel   keys.Wheel
		search  string
		keys    []string
		min     int
		max     int
		wantErr bool
	}{
		{name: "plain text", query: "midnight city", wheel: keys.Musical, search: "midnight city", min: -1, max: -1},
		{name: "bpm range", query: "bpm:120-130", wheel: keys.Musical, min: 120, max: 130},
		{name: "open ended bpm", query: "bpm:120-", wheel: keys.Musical, min: 120, max: -1},
		{name: "single bpm", query: "BPM:128", wheel: keys.Musical, min: 128, max: 128},
		{name: "keys and text", query: "strobe key:8A,9A", wheel: keys.Camelot, search: "strobe", keys: []string{"8A", "9A"}, min: -1, max: -1},
		{name: "key outside wheel", query: "key:8A", wheel: keys.Musical, wantErr: true},
		{name: "inverted bpm", query: "bpm:130-120", wheel: keys.Musical, wantErr: true},
		{name: "bad bpm keeps text", query: "deep bpm:fast", wheel: keys.Musical, search: "deep", wantErr: true},
	}

	bound := func(p *int) int {
		if p == nil {
			return -1
		}
		return *p
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseQuery(tt.query, tt.wheel)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseQuery(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
			if c.Wheel != tt.wheel {
				t.Errorf("expected wheel %s, got %s", tt.wheel, c.Wheel)
			}
			if tt.wantErr {
				if c.Search != tt.search || len(c.Keys) > 0 || c.MinBPM != nil || c.MaxBPM != nil {
					t.Errorf("expected text-only fallback %q, got %+v", tt.search, c)
				}
				return
			}
			if c.Search != tt.search || !slices.Equal(c.Keys, tt.keys) {
				t.Errorf("got search %q keys %v", c.Search, c.Keys)
			}
			if bound(c.MinBPM) != tt.min || bound(c.MaxBPM) != tt.max {
				t.Errorf("got bpm %d-%d, want %d-%d", bound(c.MinBPM), bound(c.MaxBPM), tt.min, tt.max)
			}
		})
	}
}

func TestNewModel_DefaultDebounce(t *testing.T) {
	engine := tasks.NewEngine(th.NewMockProvider(), nil, nil, tasks.EngineOpts{})
	m := NewModel(context.Background(), th.NewMockProvider(), engine, Options{})
	if m.debounce != DefaultDebounce {
		t.Errorf("expected %v, got %v", DefaultDebounce, m.debounce)
	}
	if m.debounce < 300*time.Millisecond || m.debounce > 500*time.Millisecond {
		t.Errorf("default debounce %v outside 300ms-500ms", m.debounce)
	}
}
