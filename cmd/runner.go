package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/repositories"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/desertthunder/keytrack/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	provider   services.Provider
	store      repositories.DocumentStore
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Provider   services.Provider
	Store      repositories.DocumentStore
	Logger     *log.Logger
	Output     io.Writer
	Engine     tasks.EngineOpts
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		provider:   opts.Provider,
		store:      opts.Store,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.engine = r.newEngine(opts.Engine)
	return r
}

// engineOpts maps the [engine] config section. Zero values fall back to the engine defaults.
func engineOpts(c *shared.Config) tasks.EngineOpts {
	return tasks.EngineOpts{
		PageSize:          c.Engine.PageSize,
		FeatureBatchSize:  c.Engine.FeatureBatchSize,
		RequestsPerSecond: c.Engine.RequestsPerSecond,
		Burst:             c.Engine.Burst,
		MaxSeeds:          c.Engine.MaxSeeds,
		MaxPerSeed:        c.Engine.MaxPerSeed,
	}
}

func (r *Runner) newEngine(opts tasks.EngineOpts) *tasks.Engine {
	var chords tasks.ChordLoader
	if r.store != nil {
		chords = r.store
	}
	return tasks.NewEngine(r.provider, chords, r.logger, opts)
}

// SetLogger replaces the logger and rebuilds the engine around it.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.engine = r.newEngine(engineOpts(r.config))
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, tracksCommand, recommendCommand,
		exportCommand, keysCommand, chordsCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) requireProvider() error {
	if r.provider == nil {
		return fmt.Errorf("%w: Spotify service not initialized, set client_id and client_secret in %s", shared.ErrServiceUnavailable, r.configName())
	}
	return nil
}

func (r *Runner) requireStore() error {
	if r.store == nil {
		return fmt.Errorf("%w: document store not configured, run 'keytrack setup database'", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// saveTokens stores token in the config and persists it when the runner knows the config path.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// openSession resolves playlistID and loads it, printing progress to the log.
func (r *Runner) openSession(ctx context.Context, playlistID string) (*tasks.Session, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}
	if err := r.requireProvider(); err != nil {
		return nil, err
	}

	var session *tasks.Session
	err := r.withReauth(ctx, func() error {
		playlist, err := r.provider.Playlist(ctx, playlistID)
		if err != nil {
			return err
		}

		progress := make(chan tasks.ProgressUpdate, 50)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for u := range progress {
				r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
			}
		}()

		session, err = r.engine.Open(ctx, *playlist, progress)
		close(progress)
		<-done
		return err
	})
	return session, err
}

// criteriaFlags are shared by every command that renders tracks.
func criteriaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "search",
			Aliases: []string{"q"},
			Usage:   "Case-insensitive match on title or artist",
		},
		&cli.StringFlag{
			Name:    "wheel",
			Aliases: []string{"w"},
			Usage:   "Key notation: musical, camelot or open",
			Value:   "musical",
		},
		&cli.StringSliceFlag{
			Name:  "key",
			Usage: "Keep tracks in these keys (repeat or comma-separate)",
		},
		&cli.StringSliceFlag{
			Name:  "quality",
			Usage: "Keep tracks in these qualities: Major, Minor (musical wheel only)",
		},
		&cli.StringFlag{
			Name:  "min-bpm",
			Usage: "Inclusive lower BPM bound",
		},
		&cli.StringFlag{
			Name:  "max-bpm",
			Usage: "Inclusive upper BPM bound",
		},
	}
}

func criteriaFromFlags(cmd *cli.Command) (library.Criteria, error) {
	return library.CriteriaInput{
		Search:    cmd.String("search"),
		Wheel:     cmd.String("wheel"),
		Keys:      cmd.StringSlice("key"),
		Qualities: cmd.StringSlice("quality"),
		MinBPM:    cmd.String("min-bpm"),
		MaxBPM:    cmd.String("max-bpm"),
	}.Parse()
}

func sortOptions(cmd *cli.Command) []library.SortOption {
	if cmd.Bool("numeric") {
		return []library.SortOption{library.NumericWheelOrder()}
	}
	return nil
}

func (r *Runner) wheel(cmd *cli.Command) (keys.Wheel, error) {
	return keys.ParseWheel(cmd.String("wheel"))
}

// currentUser returns --user when given, otherwise the authenticated Spotify user.
func (r *Runner) currentUser(ctx context.Context, cmd *cli.Command) (string, error) {
	if id := cmd.String("user"); id != "" {
		return id, nil
	}
	if err := r.requireProvider(); err != nil {
		return "", err
	}

	var id string
	err := r.withReauth(ctx, func() (err error) {
		id, err = r.provider.CurrentUserID(ctx)
		return err
	})
	return id, err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// entriesSummary counts how many entries have usable analysis.
func entriesSummary(entries []models.PlaylistEntry, s *tasks.Session) (total, analyzed int) {
	for _, e := range entries {
		if _, ok := s.Index().Lookup(e.Track.ID); ok {
			analyzed++
		}
	}
	return len(entries), analyzed
}

var errNoOAuth = errors.New("spotify service does not support reauthorization")

// Close releases the document store.
func (r *Runner) Close() {
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warn("failed to close store", "error", err)
	}
	r.store = nil
}
