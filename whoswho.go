/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// whoswho server
//
// The setup screen picks a genre, a pool size and a number of preview clips;
// the server pulls the round from the catalog and stores it for the browser
// session. The play screen holds a websocket to the session hub, which owns the
// round state machine and tells the browser which preview to play.
//
// Routes:
//   - $prefix/             → setup screen
//   - $prefix/play         → play screen
//   - $prefix/api/genres   → genre list and allowed counts
//   - $prefix/api/rounds   → POST builds a round for this session
//   - $prefix/ws           → websocket for this session
//   - $prefix/qr           → PNG QR code of the setup screen

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/whoswho/games/whoswho"
	"github.com/Seednode/whoswho/games/whoswho/kv"
)

// DefaultGenres is offered when the catalog cannot list its genres.
var DefaultGenres = []string{"house", "alternative", "j-rock", "r-n-b"}

const maxMessageSize = 4096

type app struct {
	cfg   *Config
	setup *whoswho.Setup
	tabs  *tabManager
}

func newApp(cfg *Config, setup *whoswho.Setup, store kv.Store, key []byte) *app {
	return &app{
		cfg:   cfg,
		setup: setup,
		tabs:  newTabManager(cfg, store, key),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// assignSession makes sure the page response carries a session cookie.
func (a *app) assignSession(w http.ResponseWriter, r *http.Request) {
	if _, err := a.tabs.tabID(w, r); err != nil {
		errorf("%v", err)
	}
}

func (a *app) serveGenres(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(a.cfg, w)

		genres, err := a.setup.Genres(r.Context())
		if err != nil || len(genres) == 0 {
			logf(a.cfg, "SETUP: Falling back to default genres: %v", err)
			genres = DefaultGenres
		}

		err = writeJSON(w, http.StatusOK, map[string]any{
			"genres":  genres,
			"artists": whoswho.PoolSizes,
			"tracks":  whoswho.TrackCounts,
		})
		if err != nil {
			errs <- err
		}
	}
}

func parseRoundOptions(w http.ResponseWriter, r *http.Request) (whoswho.RoundOptions, error) {
	var opts whoswho.RoundOptions

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&opts); err != nil {
			return opts, err
		}
		return opts, nil
	}

	if err := r.ParseForm(); err != nil {
		return opts, err
	}

	opts.Genre = r.PostFormValue("genre")
	for field, dst := range map[string]*int{"artists": &opts.Artists, "tracks": &opts.Tracks} {
		raw := r.PostFormValue(field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, errors.New("invalid " + field)
		}
		*dst = n
	}

	return opts, nil
}

func roundErrorStatus(err error) int {
	switch {
	case errors.Is(err, whoswho.ErrGenreRequired), errors.Is(err, whoswho.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, whoswho.ErrNoArtists):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (a *app) createRound(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(a.cfg, w)

		id, err := a.tabs.tabID(w, r)
		if err != nil {
			errs <- err
			_ = writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to assign session"})
			return
		}

		opts, err := parseRoundOptions(w, r)
		if err != nil {
			_ = writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		round, err := a.setup.BuildRound(r.Context(), opts)
		if err != nil {
			status := roundErrorStatus(err)
			if status == http.StatusBadGateway {
				errs <- err
			}
			_ = writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}

		err = a.tabs.get(id).publish(round)
		if errors.Is(err, errSessionClosed) {
			err = a.tabs.get(id).publish(round)
		}
		if err != nil {
			errs <- err
			_ = writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to save round"})
			return
		}

		logf(a.cfg, "SETUP: Created %q round for %s in %s",
			opts.Genre,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)

		err = writeJSON(w, http.StatusOK, map[string]string{
			"navigate": string(whoswho.NavigatePlay),
			"url":      a.cfg.prefix + "/play",
		})
		if err != nil {
			errs <- err
		}
	}
}

// serveWS attaches the connection to the hub of its browser session.
func (a *app) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, err := a.tabs.existingTabID(r)
		if err != nil {
			http.Error(w, "missing session", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(a.cfg, "GAMES: Upgrade error: %v", err)
			return
		}

		c := &client{
			conn: conn,
			send: make(chan any, 16),
		}

		t := a.tabs.get(id)
		if err := t.join(c); err != nil {
			_ = conn.Close()
			return
		}

		go c.writePump()
		c.readPump(t)
	}
}

func (c *client) readPump(t *tab) {
	defer func() {
		t.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !t.deliver(clientEvent{client: c, msg: msg}) {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the setup screen using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func registerGame(cfg *Config, a *app, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/", servePage(cfg, "setup.html", errs, a.assignSession))
	mux.GET(cfg.prefix+"/play", servePage(cfg, "play.html", errs, a.assignSession))

	mux.GET(cfg.prefix+"/api/genres", a.serveGenres(errs))
	mux.POST(cfg.prefix+"/api/rounds", a.createRound(errs))

	mux.GET(cfg.prefix+"/ws", a.serveWS())

	mux.GET(cfg.prefix+"/qr", qrHandler(cfg))
}
