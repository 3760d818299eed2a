/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/whoswho/games/whoswho"
	"github.com/Seednode/whoswho/games/whoswho/kv"
)

var errSessionClosed = errors.New("session closed")

// Messages coming from clients
type ClientMessage struct {
	Type      string `json:"type"`                // "select", "guess", "play", "toggle", "stop", "restart", "leave", "audio_ended", "audio_error"
	ArtistID  string `json:"artist_id,omitempty"` // select
	TrackID   int    `json:"track_id,omitempty"`  // play / toggle
	Remaining *int   `json:"remaining,omitempty"` // guess: the counter the client last saw
	Handle    string `json:"handle,omitempty"`    // audio_ended / audio_error
	Message   string `json:"message,omitempty"`   // audio_error
}

// ViewMessage carries everything the play screen renders.
type ViewMessage struct {
	Type string `json:"type"` // "view"
	whoswho.View
}

// NavigateMessage tells the client to leave the current screen.
type NavigateMessage struct {
	Type  string `json:"type"`  // "navigate"
	Event string `json:"event"` // "setup" or "play"
	URL   string `json:"url"`
}

// GuessResultMessage reports the outcome of a submitted guess.
type GuessResultMessage struct {
	Type string `json:"type"` // "guess_result"
	whoswho.GuessResult
}

// AudioMessage asks the audio output client to start or stop a stream.
type AudioMessage struct {
	Type   string `json:"type"` // "audio_play" or "audio_stop"
	Handle string `json:"handle"`
	URL    string `json:"url,omitempty"`
}

// SimpleMessage is for errors and notices sent to one client.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type client struct {
	conn *websocket.Conn
	send chan any
}

type clientEvent struct {
	client *client
	msg    ClientMessage
}

type roundRequest struct {
	round  whoswho.RoundPayload
	result chan error
}

// tab is the hub of one browser session. Its run loop is the only goroutine
// touching the session, the player and the client set.
type tab struct {
	id  string
	cfg *Config

	store   *whoswho.SessionStore
	persist *whoswho.RoundPersistence
	audio   *wsAudio
	player  *whoswho.Player
	session *whoswho.Session

	clients  map[*client]bool
	register chan *client
	unreg    chan *client
	inbox    chan clientEvent
	rounds   chan roundRequest

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.RWMutex
	lastActive time.Time
}

func newTab(cfg *Config, id string, store kv.Store) *tab {
	t := &tab{
		id:         id,
		cfg:        cfg,
		store:      whoswho.NewSessionStore(),
		persist:    whoswho.NewRoundPersistence(store, "session:"+id, logger(cfg)),
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unreg:      make(chan *client),
		inbox:      make(chan clientEvent),
		rounds:     make(chan roundRequest),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}

	t.audio = newWSAudio(t)
	t.player = whoswho.NewPlayer(t.audio, logger(cfg))
	t.session = whoswho.NewSession(whoswho.SessionOptions{
		Store:       t.store,
		Persistence: t.persist,
		Playback:    t.player,
		Navigate:    t.navigate,
		Logf:        logger(cfg),
	})

	t.store.Subscribe(t.roundChanged)

	return t
}

func (t *tab) run() {
	defer close(t.done)

	for {
		select {
		case c := <-t.register:
			t.touch()
			t.clients[c] = true
			t.audio.attach(c)
			t.initialize(c)

		case c := <-t.unreg:
			t.touch()
			t.drop(c)
			if len(t.clients) == 0 {
				t.session.Leave()
			}

		case ev := <-t.inbox:
			t.touch()
			t.handle(ev)

		case req := <-t.rounds:
			t.touch()
			req.result <- whoswho.PublishRound(req.round, t.store, t.persist, t.navigate)

		case <-t.quit:
			t.session.Leave()
			t.store.Reset()
			for c := range t.clients {
				t.drop(c)
				_ = c.conn.Close()
			}
			return
		}
	}
}

// roundChanged logs each round written to the session store, once per round.
func (t *tab) roundChanged(p whoswho.RoundPayload) {
	if p.Empty() {
		return
	}
	logf(t.cfg, "GAMES: Session %s holds a round of %d artists and %d tracks", t.id, len(p.ArtistsArray), len(p.ArtistSongs))
}

// initialize runs on every play screen connection, as a page load would.
func (t *tab) initialize(c *client) {
	err := t.session.Initialize()
	if errors.Is(err, whoswho.ErrNoActiveRound) {
		t.sendTo(c, t.navigateMessage(whoswho.NavigateSetup))
		return
	}

	t.broadcastView()
}

func (t *tab) handle(ev clientEvent) {
	c, msg := ev.client, ev.msg

	switch msg.Type {
	case "select":
		if err := t.session.Select(msg.ArtistID); err != nil {
			t.sendError(c, err)
		}
		t.broadcastView()

	case "guess":
		if msg.Remaining != nil && *msg.Remaining != t.session.RemainingGuesses() {
			t.sendError(c, whoswho.ErrSubmissionInFlight)
			t.sendTo(c, t.viewMessage())
			return
		}

		result, err := t.session.CheckAnswer()
		if err != nil {
			t.sendError(c, err)
			t.sendTo(c, t.viewMessage())
			return
		}

		logf(t.cfg, "GAMES: Session %s guessed (correct: %t, remaining: %d)", t.id, result.Correct, result.Remaining)

		t.broadcast(GuessResultMessage{Type: "guess_result", GuessResult: result})
		t.broadcastView()

	case "play", "toggle":
		track, ok := t.session.Track(msg.TrackID)
		if !ok {
			t.sendError(c, errors.New("unknown track"))
			return
		}

		var err error
		if msg.Type == "play" {
			err = t.player.Play(track)
		} else {
			err = t.player.Toggle(track)
		}
		if err != nil {
			t.sendError(c, err)
		}
		t.broadcastView()

	case "stop":
		t.player.Stop()
		t.broadcastView()

	case "leave":
		t.session.Leave()
		t.broadcastView()

	case "restart":
		if err := t.session.Restart(); err != nil && !errors.Is(err, whoswho.ErrNoActiveRound) {
			errorf("restarting session %s: %v", t.id, err)
		}

	case "audio_ended":
		h := whoswho.Handle(msg.Handle)
		t.audio.forget(h)
		t.player.ReportEnded(h)
		t.broadcastView()

	case "audio_error":
		h := whoswho.Handle(msg.Handle)
		t.audio.forget(h)
		if perr := t.player.ReportError(h, errors.New(msg.Message)); perr != nil {
			t.sendError(c, perr)
		}
		t.broadcastView()

	default:
		// ignore unknown types
	}
}

// navigate is the session's Navigator.
func (t *tab) navigate(ev whoswho.Event) {
	t.broadcast(t.navigateMessage(ev))
}

func (t *tab) navigateMessage(ev whoswho.Event) NavigateMessage {
	url := t.cfg.prefix + "/"
	if ev == whoswho.NavigatePlay {
		url = t.cfg.prefix + "/play"
	}
	return NavigateMessage{Type: "navigate", Event: string(ev), URL: url}
}

func (t *tab) viewMessage() ViewMessage {
	v := t.session.View()
	if track, ok := t.player.Current(); ok {
		v.Playing = track.ID
	}
	return ViewMessage{Type: "view", View: v}
}

func (t *tab) broadcastView() {
	t.broadcast(t.viewMessage())
}

func (t *tab) sendError(c *client, err error) {
	t.sendTo(c, SimpleMessage{Type: "error", Message: err.Error()})
}

func (t *tab) broadcast(msg any) {
	for c := range t.clients {
		t.sendTo(c, msg)
	}
}

func (t *tab) sendTo(c *client, msg any) {
	if _, ok := t.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		t.drop(c)
	}
}

func (t *tab) drop(c *client) {
	if _, ok := t.clients[c]; !ok {
		return
	}
	delete(t.clients, c)
	close(c.send)
	t.audio.detach(c)
}

// publish hands a built round to the run loop.
func (t *tab) publish(round whoswho.RoundPayload) error {
	req := roundRequest{round: round, result: make(chan error, 1)}

	select {
	case t.rounds <- req:
	case <-t.done:
		return errSessionClosed
	}

	return <-req.result
}

func (t *tab) join(c *client) error {
	select {
	case t.register <- c:
		return nil
	case <-t.done:
		return errSessionClosed
	}
}

func (t *tab) leave(c *client) {
	select {
	case t.unreg <- c:
	case <-t.done:
	}
}

func (t *tab) deliver(ev clientEvent) bool {
	select {
	case t.inbox <- ev:
		return true
	case <-t.done:
		return false
	}
}

func (t *tab) close() {
	t.closeOnce.Do(func() {
		close(t.quit)
	})
}

func (t *tab) touch() {
	t.mu.Lock()
	t.lastActive = time.Now()
	t.mu.Unlock()
}

func (t *tab) idleSince() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.lastActive
}
