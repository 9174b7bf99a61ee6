// submodule cmd contains command definitions
package main

import (
	"slices"

	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "user",
		Usage: "User ID (default: the authenticated Spotify user)",
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the config file if needed, then initialize the document store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "SQLite database path (overrides the config)",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify using OAuth2 and save the tokens",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show stored credentials and check them against the API",
				Action: r.AuthStatus,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List Spotify playlists",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "search",
				Aliases: []string{"q"},
				Usage:   "Case-insensitive match on name, description or owner",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to print",
			},
		}, jsonFlags()...),
		Action: r.Playlists,
	}
}

func tracksCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "Playlist ID",
			Required: true,
		},
		&cli.BoolFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "Harmonic sort by Camelot code, then BPM",
		},
		&cli.BoolFlag{
			Name:  "numeric",
			Usage: "Order Camelot numbers numerically (2A before 10A) when sorting",
		},
		&cli.BoolFlag{
			Name:  "chords",
			Usage: "Print stored chord progressions below the table",
		},
	}
	flags = slices.Concat(flags, criteriaFlags(), jsonFlags())

	return &cli.Command{
		Name:   "tracks",
		Usage:  "Show a playlist's tracks with key and BPM",
		Flags:  flags,
		Action: r.Tracks,
	}
}

func recommendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "recommend",
		Aliases: []string{"rec"},
		Usage:   "Recommend tracks from the top tracks of a playlist's artists",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Playlist ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "wheel",
				Aliases: []string{"w"},
				Usage:   "Key notation: musical, camelot or open",
				Value:   "musical",
			},
			&cli.StringSliceFlag{
				Name:  "add",
				Usage: "Add these recommended track IDs to the playlist",
			},
			&cli.BoolFlag{
				Name:  "add-all",
				Usage: "Add every recommendation to the playlist",
			},
		}, jsonFlags()...),
		Action: r.Recommend,
	}
}

func exportCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "id",
			Usage: "Playlist ID (repeat for a bulk export)",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Export every playlist in the library",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: json, csv, markdown or txt",
			Value:   "json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory",
		},
		&cli.BoolFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "Harmonic sort before writing",
		},
		&cli.BoolFlag{
			Name:  "covers",
			Usage: "Download cover images for markdown exports",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent playlists in a bulk export (default: engine.workers)",
		},
	}

	return &cli.Command{
		Name:   "export",
		Usage:  "Export annotated playlists to files",
		Flags:  slices.Concat(flags, criteriaFlags()),
		Action: r.Export,
	}
}

func keysCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Musical, Camelot and Open Key reference",
		Commands: []*cli.Command{
			{
				Name:   "table",
				Usage:  "Print every key in all three notations",
				Flags:  jsonFlags(),
				Action: r.KeysTable,
			},
			{
				Name:  "compatible",
				Usage: "List keys that mix with a Camelot code, or compare two codes",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "code"},
					&cli.StringArg{Name: "other"},
				},
				Flags:  jsonFlags(),
				Action: r.KeysCompatible,
			},
		},
	}
}

func chordsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chords",
		Usage: "Manage per-track chord progressions",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print stored chord progressions",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:  "track",
						Usage: "Only print this track's progression",
					},
				}, jsonFlags()...),
				Action: r.ChordsGet,
			},
			{
				Name:  "set",
				Usage: "Store a chord progression for a track (blank text removes it)",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "track",
						Usage:    "Track ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "text",
						Usage: "Progression, e.g. \"vi-IV-I-V\"",
					},
				},
				Action: r.ChordsSet,
			},
			{
				Name:   "users",
				Usage:  "List users with stored chord progressions",
				Flags:  jsonFlags(),
				Action: r.ChordsUsers,
			},
			{
				Name:   "clear",
				Usage:  "Remove every chord progression of a user",
				Flags:  []cli.Flag{userFlag()},
				Action: r.ChordsClear,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wheel",
				Aliases: []string{"w"},
				Usage:   "Initial key notation: musical, camelot or open",
				Value:   "musical",
			},
		},
		Action: r.TUI,
	}
}
