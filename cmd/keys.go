package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// KeysTable prints every pitch class in all three notations.
func (r *Runner) KeysTable(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		type row struct {
			PitchClass int       `json:"pitch_class"`
			Musical    string    `json:"musical"`
			Camelot    [2]string `json:"camelot"`
			OpenKey    [2]string `json:"open_key"`
		}
		rows := make([]row, 0, 12)
		for p := range keys.PitchClass(12) {
			n, _ := keys.Lookup(p)
			rows = append(rows, row{int(p), n.Musical, n.Camelot, n.OpenKey})
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Pitch", "Key", "Camelot (minor)", "Camelot (major)", "Open Key (minor)", "Open Key (major)").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for p := range keys.PitchClass(12) {
		n, _ := keys.Lookup(p)
		t.Row(strconv.Itoa(int(p)), n.Musical,
			n.Camelot[keys.Minor], n.Camelot[keys.Major],
			n.OpenKey[keys.Minor], n.OpenKey[keys.Major])
	}
	return r.writePlain("%s\n", t.String())
}

// KeysCompatible lists the keys that mix with a Camelot code, closest first.
// A second code prints the harmonic distance between the two.
func (r *Runner) KeysCompatible(ctx context.Context, cmd *cli.Command) error {
	code := strings.ToUpper(cmd.StringArg("code"))
	if code == "" {
		return fmt.Errorf("%w: a Camelot code such as 8A is required", shared.ErrMissingArgument)
	}

	compatible, err := keys.CompatibleKeys(code)
	if err != nil {
		return err
	}

	if other := strings.ToUpper(cmd.StringArg("other")); other != "" {
		if _, err := keys.ParseCamelotKey(other); err != nil {
			return err
		}
		d := keys.HarmonicDistance(code, other)
		verdict := "✓ compatible"
		if !keys.IsCompatible(code, other) {
			verdict = "✗ clash"
		}
		return r.writePlain("%s → %s: distance %d, %s\n", code, other, d, verdict)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"key": code, "compatible": compatible}, cmd.Bool("pretty"))
	}

	r.writePlain("Keys compatible with %s:\n", code)
	for _, c := range compatible {
		name := ""
		if p, m, err := keys.FromCamelot(c); err == nil {
			n, _ := keys.Lookup(p)
			name = fmt.Sprintf("%s %s", n.Musical, m)
		}
		r.writePlain("  %-4s %s\n", c, name)
	}
	return nil
}
