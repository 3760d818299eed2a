package whoswho

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/Seednode/whoswho/games/whoswho/kv"
)

func testRound(poolSize, trackCount int) RoundPayload {
	var round RoundPayload
	for i := 1; i <= poolSize; i++ {
		round.ArtistsArray = append(round.ArtistsArray, Artist{
			ID:    fmt.Sprintf("artist-%d", i),
			Name:  fmt.Sprintf("Artist %d", i),
			Image: fmt.Sprintf("https://img.example/%d.jpg", i),
		})
	}
	round.WinningArtist = round.ArtistsArray[0]
	for i := 1; i <= trackCount; i++ {
		round.ArtistSongs = append(round.ArtistSongs, Track{
			ID:       i,
			ArtistID: round.WinningArtist.ID,
			Name:     fmt.Sprintf("Song %d", i),
			Preview:  fmt.Sprintf("https://p.example/%d.mp3", i),
		})
	}
	return round
}

type stopCounter struct {
	stops int
}

func (s *stopCounter) Stop() {
	s.stops++
}

type harness struct {
	store   *SessionStore
	persist *RoundPersistence
	kv      *kv.Memory
	stopper *stopCounter
	events  []Event
	session *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:   NewSessionStore(),
		kv:      kv.NewMemory(),
		stopper: &stopCounter{},
	}
	h.persist = NewRoundPersistence(h.kv, "test", t.Logf)
	h.session = NewSession(SessionOptions{
		Store:       h.store,
		Persistence: h.persist,
		Playback:    h.stopper,
		Rand:        rand.New(rand.NewSource(1)),
		Navigate:    func(ev Event) { h.events = append(h.events, ev) },
		Logf:        t.Logf,
	})
	return h
}

func (h *harness) start(t *testing.T, round RoundPayload) {
	t.Helper()

	if err := PublishRound(round, h.store, h.persist, nil); err != nil {
		t.Fatalf("publish round: %v", err)
	}
	if err := h.session.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}
