package ui

import (
	"strings"

	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
)

// parseQuery splits the track search box into criteria.
//
// Tokens of the form bpm:MIN-MAX (either side may be empty, a single number pins both) and key:CODE[,CODE]
// filter by tempo and key in the active wheel. Everything else is free text.
func parseQuery(q string, wheel keys.Wheel) (library.Criteria, error) {
	in := library.CriteriaInput{Wheel: wheel.String()}
	var words []string
	for _, field := range strings.Fields(q) {
		name, value, ok := strings.Cut(field, ":")
		switch {
		case ok && strings.EqualFold(name, "bpm"):
			lo, hi, ranged := strings.Cut(value, "-")
			if !ranged {
				hi = lo
			}
			in.MinBPM, in.MaxBPM = lo, hi
		case ok && strings.EqualFold(name, "key"):
			in.Keys = append(in.Keys, value)
		default:
			words = append(words, field)
		}
	}
	in.Search = strings.Join(words, " ")

	c, err := in.Parse()
	if err != nil {
		return library.Criteria{Search: in.Search, Wheel: wheel}, err
	}
	return c, nil
}
