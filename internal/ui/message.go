package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgSessionOpened
	MsgRecommendations
	MsgTracksAdded
	MsgSearchDebounced
)

type playlistsPayload struct {
	playlists []models.Playlist
	err       error
}

type progressPayload struct {
	loadID int
	update tasks.ProgressUpdate
	next   tea.Cmd
}

type sessionPayload struct {
	loadID  int
	session *tasks.Session
	err     error
}

type recommendationsPayload struct {
	session    *tasks.Session
	candidates []tasks.Candidate
	err        error
}

type addedPayload struct {
	session *tasks.Session
	count   int
	err     error
}

type searchPayload struct {
	seq   int
	query string
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsPayload{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]. next keeps draining the same load.
func progressUpdateMsg(loadID int, update tasks.ProgressUpdate, next tea.Cmd) Msg {
	return Msg{kind: MsgProgressUpdate, data: progressPayload{loadID, update, next}}
}

// sessionOpenedMsg is the constructor for [MsgSessionOpened]
func sessionOpenedMsg(loadID int, session *tasks.Session, err error) Msg {
	return Msg{kind: MsgSessionOpened, data: sessionPayload{loadID, session, err}}
}

// recommendationsMsg is the constructor for [MsgRecommendations]
func recommendationsMsg(session *tasks.Session, candidates []tasks.Candidate, err error) Msg {
	return Msg{kind: MsgRecommendations, data: recommendationsPayload{session, candidates, err}}
}

// tracksAddedMsg is the constructor for [MsgTracksAdded]
func tracksAddedMsg(session *tasks.Session, count int, err error) Msg {
	return Msg{kind: MsgTracksAdded, data: addedPayload{session, count, err}}
}

// searchDebouncedMsg is the constructor for [MsgSearchDebounced]. Only the latest seq is applied.
func searchDebouncedMsg(seq int, query string) Msg {
	return Msg{kind: MsgSearchDebounced, data: searchPayload{seq, query}}
}
