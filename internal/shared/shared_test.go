package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeName(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "lower cases", in: "Midnight City", want: "midnight city"},
		{name: "trims", in: "  Strobe  ", want: "strobe"},
		{name: "collapses whitespace", in: "Around   the\tWorld", want: "around the world"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := GenerateState()

	if len(a) != 32 {
		t.Errorf("expected 32 hex characters, got %d (%s)", len(a), a)
	}
	if a == b {
		t.Error("expected distinct states")
	}
}

func TestMarshalJSON(t *testing.T) {
	t.Run("does not escape html", func(t *testing.T) {
		data, err := MarshalJSON(map[string]string{"name": "Drum & Bass <3"}, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"name":"Drum & Bass <3"}` {
			t.Errorf("got %s", data)
		}
	})

	t.Run("pretty", func(t *testing.T) {
		data, err := MarshalJSON(map[string]int{"bpm": 128}, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(data), "\n  \"bpm\": 128") {
			t.Errorf("expected indented output, got %s", data)
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("SetLogLevel", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&buf)

		if err := SetLogLevel(l, "warn"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.GetLevel() != log.WarnLevel {
			t.Errorf("expected warn level, got %v", l.GetLevel())
		}

		l.Info("hidden")
		if buf.Len() != 0 {
			t.Errorf("info should be filtered, got %q", buf.String())
		}

		if err := SetLogLevel(l, "loud"); err == nil {
			t.Error("expected error for unknown level")
		}
	})

	t.Run("WithLogger", func(t *testing.T) {
		var buf bytes.Buffer
		l := WithLogger(NewLogger(&buf), "component", "engine")
		l.Info("hello")
		if !strings.Contains(buf.String(), "component=engine") {
			t.Errorf("expected key-value pair in output, got %q", buf.String())
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	const url = "https://accounts.spotify.com/authorize"

	tests := []struct {
		name    string
		goos    string
		env     string
		want    string
		wantErr bool
	}{
		{name: "macOS", goos: "darwin", want: "open " + url},
		{name: "linux", goos: "linux", want: "xdg-open " + url},
		{name: "windows", goos: "windows", want: "rundll32 url.dll,FileProtocolHandler " + url},
		{name: "BROWSER wins", goos: "darwin", env: "firefox --new-tab", want: "firefox --new-tab " + url},
		{name: "unsupported", goos: "plan9", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BROWSER", tt.env)

			args, err := browserCommand(tt.goos, url)
			if tt.wantErr {
				if !errors.Is(err, ErrNotImplemented) {
					t.Errorf("expected ErrNotImplemented, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := strings.Join(args, " "); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
