package library

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/shared"
)

// CriteriaInput is the string form of [Criteria] as it arrives from flags and query strings.
//
// List fields accept repeated values, comma-separated values, or both.
type CriteriaInput struct {
	Search    string
	Wheel     string
	Keys      []string
	Qualities []string
	MinBPM    string
	MaxBPM    string
}

// Parse converts the input and validates the result.
func (in CriteriaInput) Parse() (Criteria, error) {
	wheel, err := keys.ParseWheel(in.Wheel)
	if err != nil {
		return Criteria{}, err
	}

	c := Criteria{
		Search: strings.TrimSpace(in.Search),
		Wheel:  wheel,
		Keys:   splitList(in.Keys),
	}

	for _, q := range splitList(in.Qualities) {
		i := slices.IndexFunc(keys.Qualities(), func(name string) bool { return strings.EqualFold(q, name) })
		if i < 0 {
			return Criteria{}, fmt.Errorf("%w: unknown quality %q", shared.ErrInvalidArgument, q)
		}
		c.Qualities = append(c.Qualities, keys.Qualities()[i])
	}

	if c.MinBPM, err = parseBPM("min bpm", in.MinBPM); err != nil {
		return Criteria{}, err
	}
	if c.MaxBPM, err = parseBPM("max bpm", in.MaxBPM); err != nil {
		return Criteria{}, err
	}

	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

func parseBPM(name, s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q", shared.ErrInvalidArgument, name, s)
	}
	return &v, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
