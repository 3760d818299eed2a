package whoswho

import "sync"

// SessionStore holds the round most recently produced by setup and pushes every
// write to its subscribers. The last write wins.
type SessionStore struct {
	mu     sync.Mutex
	value  RoundPayload
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	fn func(RoundPayload)
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Subscribe registers fn and immediately delivers the current value to it.
func (s *SessionStore) Subscribe(fn func(RoundPayload)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	current := s.value.clone()
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish overwrites the whole round.
func (s *SessionStore) Publish(p RoundPayload) {
	s.update(func(v *RoundPayload) {
		*v = p.clone()
	})
}

func (s *SessionStore) SetArtists(artists []Artist) {
	s.update(func(v *RoundPayload) {
		v.ArtistsArray = append([]Artist(nil), artists...)
	})
}

func (s *SessionStore) SetWinningArtist(a Artist) {
	s.update(func(v *RoundPayload) {
		v.WinningArtist = a
	})
}

func (s *SessionStore) SetTracks(tracks []Track) {
	s.update(func(v *RoundPayload) {
		v.ArtistSongs = append([]Track(nil), tracks...)
	})
}

// Reset empties the store, as a fresh page load would.
func (s *SessionStore) Reset() {
	s.update(func(v *RoundPayload) {
		*v = RoundPayload{}
	})
}

func (s *SessionStore) Current() RoundPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.value.clone()
}

func (s *SessionStore) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.value.Empty()
}

// update applies fn and notifies subscribers outside the lock, so callbacks may
// read the store again.
func (s *SessionStore) update(fn func(*RoundPayload)) {
	s.mu.Lock()
	fn(&s.value)
	current := s.value
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(current.clone())
	}
}
