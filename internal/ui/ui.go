package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/desertthunder/keytrack/internal/tasks"
)

// DefaultDebounce is the quiet period after the last search or filter keystroke before the filter runs.
const DefaultDebounce = 400 * time.Millisecond

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	LoadingView
	TrackView
	RecommendView
)

// Options configures a [Model]. Zero values take the defaults.
type Options struct {
	Debounce time.Duration
	Wheel    keys.Wheel
	Logger   *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	provider services.Provider
	engine   *tasks.Engine
	logger   *log.Logger
	debounce time.Duration

	view   ViewState
	width  int
	height int

	playlists    []models.Playlist
	playlistList list.Model

	loadID     int
	loading    models.Playlist
	cancelLoad context.CancelFunc
	progress   tasks.ProgressUpdate

	session     *tasks.Session
	rows        []library.Row
	trackTable  table.Model
	candidates  []tasks.Candidate
	recTable    table.Model
	recommended bool

	search    textinput.Model
	searching bool
	searchSeq int
	query     string
	queryErr  error

	wheel  keys.Wheel
	sorted bool
	busy   bool
	status string
	err    error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, provider services.Provider, engine *tasks.Engine, opts Options) *Model {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search"

	playlistList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlistList.Title = "Spotify Playlists"
	playlistList.SetFilteringEnabled(false)
	playlistList.SetShowHelp(false)

	return &Model{
		ctx:          ctx,
		provider:     provider,
		engine:       engine,
		logger:       opts.Logger,
		debounce:     opts.Debounce,
		view:         PlaylistListView,
		playlistList: playlistList,
		trackTable:   newTable(),
		recTable:     newTable(),
		search:       search,
		wheel:        opts.Wheel,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func newTable() table.Model {
	t := table.New(table.WithFocused(true))
	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true)
	t.SetStyles(s)
	return t
}

// Run starts the program in the alternate screen and blocks until it exits.
func Run(ctx context.Context, m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init initializes the TUI by fetching playlists.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		if m.err != nil {
			if key.Matches(msg, m.keys.quit) {
				return m, m.quit()
			}
			return m, nil
		}

		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case LoadingView:
			return m.handleLoadingKeys(msg)
		case TrackView:
			return m.handleTrackKeys(msg)
		case RecommendView:
			return m.handleRecommendKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		p := msg.data.(playlistsPayload)
		if p.err != nil {
			m.err = p.err
			return m, nil
		}
		m.playlists = p.playlists
		m.applyQuery()
		return m, nil

	case MsgProgressUpdate:
		p := msg.data.(progressPayload)
		if p.loadID != m.loadID {
			return m, nil
		}
		m.progress = p.update
		return m, p.next

	case MsgSessionOpened:
		p := msg.data.(sessionPayload)
		if p.loadID != m.loadID || m.view != LoadingView {
			if p.session != nil {
				p.session.Close()
			}
			return m, nil
		}
		m.cancelLoad = nil
		if p.err != nil {
			m.view = PlaylistListView
			if !errors.Is(p.err, shared.ErrStaleSession) {
				m.status = styles.err.Render(fmt.Sprintf("Failed to load %s: %v", m.loading.Name, p.err))
			}
			return m, nil
		}
		m.setSession(p.session)
		return m, nil

	case MsgRecommendations:
		p := msg.data.(recommendationsPayload)
		if p.session != m.session {
			return m, nil
		}
		m.busy = false
		if p.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Recommendations failed: %v", p.err))
			return m, nil
		}
		m.candidates = p.candidates
		m.recommended = true
		m.view = RecommendView
		m.refreshCandidates()
		if len(p.candidates) == 0 {
			m.status = styles.warn.Render("No new tracks found for this playlist's artists")
		} else {
			m.status = fmt.Sprintf("%d recommendations", len(p.candidates))
		}
		return m, nil

	case MsgTracksAdded:
		p := msg.data.(addedPayload)
		if p.session != m.session {
			return m, nil
		}
		m.busy = false
		if p.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Add failed: %v", p.err))
			return m, nil
		}
		m.candidates = m.session.Candidates()
		m.refreshTracks()
		m.refreshCandidates()
		m.status = styles.ok.Render(fmt.Sprintf("✓ Added %d track(s) to %s", p.count, m.session.Playlist().Name))
		return m, nil

	case MsgSearchDebounced:
		p := msg.data.(searchPayload)
		if p.seq != m.searchSeq {
			return m, nil
		}
		m.query = p.query
		m.applyQuery()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.SetValue("")
		m.stopSearch()
		m.setQuery("")
		return m, nil
	case tea.KeyEnter:
		m.stopSearch()
		m.setQuery(m.search.Value())
		return m, nil
	}

	prev := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != prev {
		return m, tea.Batch(cmd, m.debounceSearch())
	}
	return m, cmd
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.search):
		return m, m.startSearch()
	case key.Matches(msg, m.keys.back):
		m.search.SetValue("")
		m.setQuery("")
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.fetchPlaylists()
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.openPlaylist(pl.playlist)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleLoadingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		if m.cancelLoad != nil {
			m.cancelLoad()
			m.cancelLoad = nil
		}
		m.loadID++
		m.view = PlaylistListView
		m.status = "Load cancelled"
	}
	return m, nil
}

func (m *Model) handleTrackKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		if m.query != "" {
			m.search.SetValue("")
			m.setQuery("")
			return m, nil
		}
		m.closeSession()
		m.view = PlaylistListView
		m.applyQuery()
		return m, nil
	case key.Matches(msg, m.keys.search):
		return m, m.startSearch()
	case key.Matches(msg, m.keys.wheel):
		m.wheel = m.wheel.Next()
		m.refreshTracks()
		m.refreshCandidates()
		return m, nil
	case key.Matches(msg, m.keys.sort):
		m.sorted = !m.sorted
		m.refreshTracks()
		return m, nil
	case key.Matches(msg, m.keys.reload):
		pl := m.session.Playlist()
		return m, m.openPlaylist(pl)
	case key.Matches(msg, m.keys.recommend):
		if m.recommended && len(m.candidates) > 0 {
			m.view = RecommendView
			return m, nil
		}
		return m, m.recommend()
	}

	var cmd tea.Cmd
	m.trackTable, cmd = m.trackTable.Update(msg)
	return m, cmd
}

func (m *Model) handleRecommendKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		m.view = TrackView
		return m, nil
	case key.Matches(msg, m.keys.wheel):
		m.wheel = m.wheel.Next()
		m.refreshTracks()
		m.refreshCandidates()
		return m, nil
	case key.Matches(msg, m.keys.recommend):
		return m, m.recommend()
	case key.Matches(msg, m.keys.addAll):
		return m, m.addAll()
	case key.Matches(msg, m.keys.add):
		i := m.recTable.Cursor()
		if i < 0 || i >= len(m.candidates) {
			return m, nil
		}
		return m, m.addOne(m.candidates[i].Track.ID)
	}

	var cmd tea.Cmd
	m.recTable, cmd = m.recTable.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case LoadingView:
		return m.renderLoading()
	case TrackView:
		return m.renderTracks()
	case RecommendView:
		return m.renderRecommendations()
	default:
		return ""
	}
}

func (m *Model) quit() tea.Cmd {
	if m.cancelLoad != nil {
		m.cancelLoad()
	}
	m.closeSession()
	return tea.Quit
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.playlistList.SetSize(width-4, height-8)
	m.trackTable.SetHeight(max(height-10, 3))
	m.recTable.SetHeight(max(height-10, 3))
	m.refreshTracks()
	m.refreshCandidates()
}

func (m *Model) startSearch() tea.Cmd {
	m.searching = true
	m.search.SetValue(m.query)
	m.search.CursorEnd()
	return m.search.Focus()
}

func (m *Model) stopSearch() {
	m.searching = false
	m.search.Blur()
}

// setQuery applies q now and invalidates any pending debounce.
func (m *Model) setQuery(q string) {
	m.searchSeq++
	m.query = q
	m.applyQuery()
}

// debounceSearch schedules the current input; only the newest tick is applied.
func (m *Model) debounceSearch() tea.Cmd {
	m.searchSeq++
	seq, query := m.searchSeq, m.search.Value()
	return tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return searchDebouncedMsg(seq, query)
	})
}

func (m *Model) applyQuery() {
	switch m.view {
	case PlaylistListView, LoadingView:
		m.playlistList.SetItems(playlistItems(library.FilterPlaylists(m.playlists, m.query)))
	case TrackView, RecommendView:
		m.refreshTracks()
	}
}

func (m *Model) setSession(s *tasks.Session) {
	m.session = s
	m.view = TrackView
	m.candidates = nil
	m.recommended = false
	m.search.SetValue("")
	m.query = ""
	m.searchSeq++
	m.status = fmt.Sprintf("Loaded %d tracks, %d analyzed", len(s.Entries()), s.Index().Len())
	m.trackTable.SetCursor(0)
	m.refreshTracks()
	m.refreshCandidates()
}

func (m *Model) closeSession() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	m.rows = nil
	m.candidates = nil
	m.recommended = false
	m.query = ""
	m.queryErr = nil
	m.search.SetValue("")
}

func (m *Model) refreshTracks() {
	if m.session == nil {
		return
	}
	var criteria library.Criteria
	criteria, m.queryErr = parseQuery(m.query, m.wheel)
	m.rows = m.session.View(criteria, m.sorted)
	m.trackTable.SetRows(nil)
	m.trackTable.SetColumns(trackColumns(m.wheel, m.width))
	m.trackTable.SetRows(trackRows(m.rows))
	if m.trackTable.Cursor() >= len(m.rows) {
		m.trackTable.SetCursor(max(len(m.rows)-1, 0))
	}
}

func (m *Model) refreshCandidates() {
	m.recTable.SetRows(nil)
	m.recTable.SetColumns(candidateColumns(m.wheel, m.width))
	m.recTable.SetRows(candidateRows(m.candidates, m.wheel))
	if m.recTable.Cursor() >= len(m.candidates) {
		m.recTable.SetCursor(max(len(m.candidates)-1, 0))
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	ctx, provider := m.ctx, m.provider
	return func() tea.Msg {
		playlists, err := provider.Playlists(ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

// openPlaylist starts a load and streams its progress. A newer load or esc makes older results stale.
func (m *Model) openPlaylist(pl models.Playlist) tea.Cmd {
	m.closeSession()
	if m.cancelLoad != nil {
		m.cancelLoad()
	}

	m.loadID++
	m.loading = pl
	m.progress = tasks.ProgressUpdate{}
	m.view = LoadingView
	m.status = ""

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelLoad = cancel

	loadID, engine, logger := m.loadID, m.engine, m.logger
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)

	go func() {
		session, err := engine.Open(ctx, pl, progress)
		if err != nil {
			logger.Warn("playlist load failed", "playlist", pl.ID, "error", err)
		}
		close(progress)
		done <- sessionOpenedMsg(loadID, session, err)
	}()

	return waitForProgress(loadID, progress, done)
}

func waitForProgress(loadID int, progress <-chan tasks.ProgressUpdate, done <-chan Msg) tea.Cmd {
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(loadID, update, waitForProgress(loadID, progress, done))
		}
		return <-done
	}
}

func (m *Model) recommend() tea.Cmd {
	if m.session == nil || m.busy {
		return nil
	}
	m.busy = true
	m.status = "Finding recommendations..."

	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		candidates, err := session.Recommend(ctx)
		return recommendationsMsg(session, candidates, err)
	}
}

func (m *Model) addOne(trackID string) tea.Cmd {
	if m.session == nil || m.busy {
		return nil
	}
	m.busy = true

	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		err := session.AddCandidate(ctx, trackID)
		return tracksAddedMsg(session, 1, err)
	}
}

func (m *Model) addAll() tea.Cmd {
	if m.session == nil || m.busy || len(m.candidates) == 0 {
		return nil
	}
	m.busy = true

	ctx, session, count := m.ctx, m.session, len(m.candidates)
	return func() tea.Msg {
		err := session.AddAllCandidates(ctx)
		return tracksAddedMsg(session, count, err)
	}
}

func (m *Model) renderSearch() string {
	if m.searching {
		return m.search.View()
	}
	if m.query != "" && m.queryErr != nil && (m.view == TrackView || m.view == RecommendView) {
		return styles.err.Render(fmt.Sprintf("filter: %q: %v", m.query, m.queryErr))
	}
	if m.query != "" {
		return styles.status.Render(fmt.Sprintf("filter: %q (esc to clear)", m.query))
	}
	return ""
}

func (m *Model) renderFooter(bindings ...key.Binding) string {
	var b strings.Builder
	if s := m.renderSearch(); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView(bindings))
	return b.String()
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(),
		m.renderFooter(m.keys.enter, m.keys.search, m.keys.reload, m.keys.quit))
}

func (m *Model) renderLoading() string {
	title := styles.title.Render(fmt.Sprintf("Loading '%s'", m.loading.Name))

	var phase string
	switch {
	case m.progress.Message == "":
		phase = "Starting..."
	case m.progress.Phase == tasks.FetchTracks:
		phase = fmt.Sprintf("Fetching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case m.progress.Phase == tasks.FetchFeatures:
		phase = fmt.Sprintf("Fetching audio features (%d/%d)", m.progress.Step, m.progress.Total)
	case m.progress.Phase == tasks.LoadChords:
		phase = "Loading chord progressions..."
	default:
		phase = "Preparing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, phase, styles.status.Render(m.progress.Message),
		m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
}

func (m *Model) renderTracks() string {
	pl := m.session.Playlist()
	order := "playlist order"
	if m.sorted {
		order = "harmonic order"
	}
	title := styles.title.Render(pl.Name)
	info := styles.status.Render(fmt.Sprintf("%d/%d tracks • %s • %s", len(m.rows), len(m.session.Entries()), keyHeader(m.wheel), order))

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, info, m.trackTable.View(),
		m.renderFooter(m.keys.search, m.keys.wheel, m.keys.sort, m.keys.recommend, m.keys.back, m.keys.quit))
}

func (m *Model) renderRecommendations() string {
	title := styles.title.Render(fmt.Sprintf("Recommendations for '%s'", m.session.Playlist().Name))

	body := m.recTable.View()
	if len(m.candidates) == 0 {
		body = styles.status.Render("Nothing left to add. Press r for a fresh selection.")
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, body,
		m.renderFooter(m.keys.add, m.keys.addAll, m.keys.recommend, m.keys.wheel, m.keys.back, m.keys.quit))
}
