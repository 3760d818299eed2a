/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/Seednode/whoswho/games/whoswho/kv"
)

const tabCookieName = "whoswho_session"

// tabManager holds one hub per browser session, keyed by the id carried in
// the signed session cookie.
type tabManager struct {
	cfg         *Config
	kv          kv.Store
	key         []byte
	idleTimeout time.Duration

	mu   sync.Mutex
	tabs map[string]*tab

	stop     chan struct{}
	stopOnce sync.Once
}

func newTabManager(cfg *Config, store kv.Store, key []byte) *tabManager {
	m := &tabManager{
		cfg:         cfg,
		kv:          store,
		key:         key,
		idleTimeout: cfg.sessionTimeout,
		tabs:        make(map[string]*tab),
		stop:        make(chan struct{}),
	}
	if m.idleTimeout > 0 {
		go m.reaperLoop()
	}
	return m
}

func (m *tabManager) get(id string) *tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tabs[id]; ok {
		return t
	}

	t := newTab(m.cfg, id, m.kv)
	m.tabs[id] = t
	go t.run()

	logf(m.cfg, "GAMES: Opened session %s", id)

	return t
}

func (m *tabManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tabs)
}

// reaperLoop drops sessions idle longer than idleTimeout. Their rounds stay
// persisted, so the next visit resumes from storage.
func (m *tabManager) reaperLoop() {
	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reap(time.Now().Add(-m.idleTimeout))
		}
	}
}

func (m *tabManager) reap(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.tabs {
		if t.idleSince().Before(cutoff) {
			delete(m.tabs, id)
			t.close()
			logf(m.cfg, "GAMES: Reaped idle session %s", id)
		}
	}
}

func (m *tabManager) shutdown() {
	m.stopOnce.Do(func() {
		close(m.stop)

		m.mu.Lock()
		defer m.mu.Unlock()

		for id, t := range m.tabs {
			delete(m.tabs, id)
			t.close()
		}
	})
}

// tabID returns the session id from the request cookie, issuing a new signed
// cookie when there is none or it does not verify.
func (m *tabManager) tabID(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(tabCookieName); err == nil && c.Value != "" {
		if id, err := m.parseToken(c.Value); err == nil {
			return id, nil
		}
	}

	id := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  id,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tabCookieName,
		Value:    signed,
		Path:     m.cfg.prefix + "/",
		HttpOnly: true,
		Secure:   m.cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id, nil
}

// existingTabID is tabID for requests that must not start a new session.
func (m *tabManager) existingTabID(r *http.Request) (string, error) {
	c, err := r.Cookie(tabCookieName)
	if err != nil {
		return "", err
	}
	return m.parseToken(c.Value)
}

func (m *tabManager) parseToken(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		return "", err
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errors.New("session cookie has no valid subject")
	}

	return claims.Subject, nil
}
