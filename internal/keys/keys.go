// package keys maps pitch classes to musical, Camelot and Open Key notation.
package keys

import (
	"fmt"
	"strings"

	"github.com/desertthunder/keytrack/internal/shared"
)

// PitchClass is the tonic of a key as an integer in [0, 11] where 0 is C.
type PitchClass int

// Valid reports whether p is inside the table.
func (p PitchClass) Valid() bool {
	return p >= 0 && p < 12
}

// Mode uses the upstream encoding (0 minor, 1 major) so it can index [Notation] pairs.
type Mode int

const (
	Minor Mode = iota
	Major
)

// ModeFromInt converts the provider's integer mode.
func ModeFromInt(i int) (Mode, bool) {
	switch i {
	case 0:
		return Minor, true
	case 1:
		return Major, true
	default:
		return Minor, false
	}
}

func (m Mode) String() string {
	if m == Major {
		return "Major"
	}
	return "Minor"
}

// Wheel selects which notation a key is displayed and filtered in.
type Wheel int

const (
	Musical Wheel = iota
	Camelot
	Open
)

var wheels = []Wheel{Musical, Camelot, Open}

// Wheels lists every notation in display order.
func Wheels() []Wheel {
	return append([]Wheel(nil), wheels...)
}

func (w Wheel) String() string {
	switch w {
	case Musical:
		return "musical"
	case Camelot:
		return "camelot"
	case Open:
		return "open"
	default:
		return ""
	}
}

// Next cycles through the wheels, wrapping after Open.
func (w Wheel) Next() Wheel {
	return wheels[(int(w)+1)%len(wheels)]
}

// ParseWheel accepts the names returned by [Wheel.String] plus a few aliases.
func ParseWheel(s string) (Wheel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "musical", "music", "key", "":
		return Musical, nil
	case "camelot", "cam":
		return Camelot, nil
	case "open", "openkey", "open-key", "open_key":
		return Open, nil
	default:
		names := make([]string, 0, len(wheels))
		for _, w := range Wheels() {
			names = append(names, w.String())
		}
		return Musical, fmt.Errorf("%w: unknown wheel %q, want one of %s", shared.ErrInvalidArgument, s, strings.Join(names, ", "))
	}
}

// Notation holds every representation of one pitch class. Pairs are indexed by [Mode].
type Notation struct {
	Musical string
	Camelot [2]string
	OpenKey [2]string
}

// Code renders the key for the given wheel and mode.
func (n Notation) Code(w Wheel, m Mode) string {
	if m != Major {
		m = Minor
	}
	switch w {
	case Camelot:
		return n.Camelot[m]
	case Open:
		return n.OpenKey[m]
	default:
		return n.Musical
	}
}

var table = [12]Notation{
	{Musical: "C", Camelot: [2]string{"5A", "8B"}, OpenKey: [2]string{"10m", "1d"}},
	{Musical: "C#/Db", Camelot: [2]string{"12A", "3B"}, OpenKey: [2]string{"5m", "8d"}},
	{Musical: "D", Camelot: [2]string{"7A", "10B"}, OpenKey: [2]string{"12m", "3d"}},
	{Musical: "D#/Eb", Camelot: [2]string{"2A", "5B"}, OpenKey: [2]string{"7m", "10d"}},
	{Musical: "E", Camelot: [2]string{"9A", "12B"}, OpenKey: [2]string{"2m", "5d"}},
	{Musical: "F", Camelot: [2]string{"4A", "7B"}, OpenKey: [2]string{"9m", "12d"}},
	{Musical: "F#/Gb", Camelot: [2]string{"11A", "2B"}, OpenKey: [2]string{"4m", "7d"}},
	{Musical: "G", Camelot: [2]string{"6A", "9B"}, OpenKey: [2]string{"11m", "2d"}},
	{Musical: "G#/Ab", Camelot: [2]string{"1A", "4B"}, OpenKey: [2]string{"6m", "9d"}},
	{Musical: "A", Camelot: [2]string{"8A", "11B"}, OpenKey: [2]string{"1m", "4d"}},
	{Musical: "A#/Bb", Camelot: [2]string{"3A", "6B"}, OpenKey: [2]string{"8m", "11d"}},
	{Musical: "B", Camelot: [2]string{"10A", "1B"}, OpenKey: [2]string{"3m", "6d"}},
}

// Lookup returns the notation for p. The boolean is false when p is outside [0, 11].
func Lookup(p PitchClass) (Notation, bool) {
	if !p.Valid() {
		return Notation{}, false
	}
	return table[p], true
}

// Codes lists every value a key can take in the given wheel.
//
// Musical names come in pitch order. Camelot and Open Key codes come in wheel order, 1A/1B through 12A/12B.
func Codes(w Wheel) []string {
	if w == Musical {
		codes := make([]string, 0, len(table))
		for _, n := range table {
			codes = append(codes, n.Musical)
		}
		return codes
	}

	byNumber := make([][2]string, 12)
	for _, n := range table {
		for _, m := range []Mode{Minor, Major} {
			code := n.Code(w, m)
			num, _ := splitCode(code)
			byNumber[num-1][m] = code
		}
	}

	codes := make([]string, 0, 24)
	for _, pair := range byNumber {
		codes = append(codes, pair[Minor], pair[Major])
	}
	return codes
}

// Quality names offered for the Musical wheel.
func Qualities() []string {
	return []string{Major.String(), Minor.String()}
}

// splitCode breaks "10A" or "3d" into its number and suffix.
func splitCode(code string) (int, string) {
	i := 0
	n := 0
	for i < len(code) && code[i] >= '0' && code[i] <= '9' {
		n = n*10 + int(code[i]-'0')
		i++
	}
	return n, code[i:]
}
