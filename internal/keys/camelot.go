package keys

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/keytrack/internal/shared"
)

// Incompatible is the distance reported when either key cannot be parsed.
const Incompatible = 999

var camelotPattern = regexp.MustCompile(`^(\d{1,2})([AB])$`)

// CamelotKey is a parsed Camelot code. Letter A is minor, B is major.
type CamelotKey struct {
	Number int
	Letter string
}

// ParseCamelotKey parses codes like "8A" or "12b".
func ParseCamelotKey(code string) (*CamelotKey, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: empty camelot key", shared.ErrInvalidArgument)
	}

	m := camelotPattern.FindStringSubmatch(code)
	if m == nil {
		return nil, fmt.Errorf("%w: invalid camelot key %q", shared.ErrInvalidArgument, code)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 12 {
		return nil, fmt.Errorf("%w: camelot number out of range %q", shared.ErrInvalidArgument, m[1])
	}

	return &CamelotKey{Number: n, Letter: m[2]}, nil
}

func (k *CamelotKey) String() string {
	return fmt.Sprintf("%d%s", k.Number, k.Letter)
}

// Mode reports the quality encoded by the letter.
func (k *CamelotKey) Mode() Mode {
	if k.Letter == "B" {
		return Major
	}
	return Minor
}

func (k *CamelotKey) relative() string {
	if k.Letter == "A" {
		return "B"
	}
	return "A"
}

// step moves around the wheel, wrapping 12 to 1.
func (k *CamelotKey) step(delta int) int {
	return ((k.Number-1+delta)%12+12)%12 + 1
}

// Distance scores how well two keys mix:
//
//	0 same key
//	1 relative major/minor, or one step with the same letter
//	3 one step with the other letter
//	n+1 otherwise, n being the circular step count
func (k *CamelotKey) Distance(other *CamelotKey) int {
	if k == nil || other == nil {
		return Incompatible
	}
	if *k == *other {
		return 0
	}
	if k.Number == other.Number {
		return 1
	}

	diff := k.Number - other.Number
	if diff < 0 {
		diff = -diff
	}
	steps := min(diff, 12-diff)

	switch {
	case steps == 1 && k.Letter == other.Letter:
		return 1
	case steps == 1:
		return 3
	default:
		return steps + 1
	}
}

// HarmonicDistance parses both codes and returns their [CamelotKey.Distance].
func HarmonicDistance(a, b string) int {
	ka, err := ParseCamelotKey(a)
	if err != nil {
		return Incompatible
	}
	kb, err := ParseCamelotKey(b)
	if err != nil {
		return Incompatible
	}
	return ka.Distance(kb)
}

// MaxCompatibleDistance is the largest [CamelotKey.Distance] that still mixes cleanly.
// Diagonal steps score 3 and are treated as a key change, not a blend.
const MaxCompatibleDistance = 1

// IsCompatible reports whether two codes mix well. It agrees with [CompatibleKeys].
func IsCompatible(a, b string) bool {
	return HarmonicDistance(a, b) <= MaxCompatibleDistance
}

// CompatibleKeys lists the neighbours of code on the wheel, closest first:
// the key itself, its relative, then one step either way with the same letter.
func CompatibleKeys(code string) ([]string, error) {
	k, err := ParseCamelotKey(code)
	if err != nil {
		return nil, err
	}

	prev, next := k.step(-1), k.step(1)
	other := k.relative()

	return []string{
		k.String(),
		fmt.Sprintf("%d%s", k.Number, other),
		fmt.Sprintf("%d%s", prev, k.Letter),
		fmt.Sprintf("%d%s", next, k.Letter),
	}, nil
}

// FromCamelot finds the pitch class and mode behind a Camelot code.
func FromCamelot(code string) (PitchClass, Mode, error) {
	k, err := ParseCamelotKey(code)
	if err != nil {
		return 0, Minor, err
	}

	want := k.String()
	m := k.Mode()
	for p, n := range table {
		if n.Camelot[m] == want {
			return PitchClass(p), m, nil
		}
	}
	return 0, Minor, fmt.Errorf("%w: no key for %q", shared.ErrInvalidArgument, code)
}
