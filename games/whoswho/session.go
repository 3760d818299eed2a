package whoswho

import (
	"math/rand"
)

type State int

const (
	Initializing State = iota
	Playing
	Won
	Lost
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "initializing"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) Terminated() bool {
	return s == Won || s == Lost
}

// Stopper is the part of the playback controller a session needs.
type Stopper interface {
	Stop()
}

// SessionOptions wires a Session to its collaborators. Store and Persistence
// are required.
type SessionOptions struct {
	Store       *SessionStore
	Persistence *RoundPersistence
	Playback    Stopper
	Rand        *rand.Rand
	Navigate    Navigator
	Logf        Logf
}

// Session is the state machine of one round. It is not safe for concurrent use.
type Session struct {
	store    *SessionStore
	persist  *RoundPersistence
	playback Stopper
	rng      *rand.Rand
	navigate Navigator
	logf     Logf

	state      State
	round      RoundPayload
	selected   *Artist
	remaining  int
	submitting bool
}

func NewSession(opts SessionOptions) *Session {
	s := &Session{
		store:    opts.Store,
		persist:  opts.Persistence,
		playback: opts.Playback,
		rng:      opts.Rand,
		navigate: opts.Navigate,
		logf:     opts.Logf,
	}
	if s.navigate == nil {
		s.navigate = func(Event) {}
	}
	if s.logf == nil {
		s.logf = nopLogf
	}
	return s
}

// GuessResult is the outcome of one CheckAnswer call.
type GuessResult struct {
	Correct   bool  `json:"correct"`
	Remaining int   `json:"remaining"`
	State     State `json:"state"`
}

// Initialize loads the round from the session store, or from persistence when
// the store is empty. It returns ErrNoActiveRound when neither has one.
func (s *Session) Initialize() error {
	s.state = Initializing
	s.selected = nil
	s.round = RoundPayload{}
	s.remaining = 0

	round := s.store.Current()
	if err := round.Validate(); err != nil {
		persisted, ok := s.persist.LoadRound()
		if !ok {
			return ErrNoActiveRound
		}
		round = persisted
		s.logf("GAMES: Resumed round of %q from storage", round.WinningArtist.Name)
	}

	Shuffle(s.rng, round.ArtistsArray)

	if state, ok := s.persist.LoadGuessState(); ok {
		s.remaining = state.RemainingGuesses
	} else {
		s.remaining = InitialGuesses(len(round.ArtistsArray))
	}

	s.round = round
	s.state = Playing

	return nil
}

// Select marks the artist the player intends to guess.
func (s *Session) Select(artistID string) error {
	if err := s.requirePlaying(); err != nil {
		return err
	}

	for _, a := range s.round.ArtistsArray {
		if a.ID == artistID {
			selected := a
			s.selected = &selected
			return nil
		}
	}

	return ErrUnknownArtist
}

// CheckAnswer submits the selected artist. The guess is charged before it is
// compared, including a winning guess.
func (s *Session) CheckAnswer() (GuessResult, error) {
	if s.submitting {
		return GuessResult{}, ErrSubmissionInFlight
	}
	if err := s.requirePlaying(); err != nil {
		return GuessResult{}, err
	}
	if s.selected == nil {
		return GuessResult{}, ErrNoSelection
	}

	s.submitting = true
	defer func() { s.submitting = false }()

	s.stopPlayback()

	s.remaining--

	correct := s.selected.Is(s.round.WinningArtist)
	switch {
	case correct:
		s.state = Won
		s.clearGuessState()
		s.logf("GAMES: Correct guess %q", s.selected.Name)
	case s.remaining > 0:
		state := GuessState{RemainingGuesses: s.remaining, StillPlaying: true}
		if err := s.persist.SaveGuessState(state); err != nil {
			s.logf("STORE: Failed to save guess state: %v", err)
		}
		s.logf("GAMES: Wrong guess %q, %d left", s.selected.Name, s.remaining)
	default:
		s.state = Lost
		s.clearGuessState()
		s.logf("GAMES: Wrong guess %q, out of guesses", s.selected.Name)
	}

	return GuessResult{Correct: correct, Remaining: s.remaining, State: s.state}, nil
}

// Restart forgets the persisted round, re-initializes and sends the player
// back to setup. The returned error is whatever Initialize reports, normally
// ErrNoActiveRound.
func (s *Session) Restart() error {
	s.stopPlayback()

	if err := s.persist.ClearRound(); err != nil {
		s.logf("STORE: Failed to clear round: %v", err)
	}
	s.clearGuessState()

	err := s.Initialize()
	s.navigate(NavigateSetup)

	return err
}

// Leave is the cleanup for navigating away from the play screen.
func (s *Session) Leave() {
	s.stopPlayback()
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) RemainingGuesses() int {
	return s.remaining
}

// Track looks up a track of the current round by its round-local ID.
func (s *Session) Track(id int) (Track, bool) {
	for _, t := range s.round.ArtistSongs {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// View is what the play screen renders. The winner is only revealed once the
// round is over.
type View struct {
	State            State    `json:"state"`
	Artists          []Artist `json:"artists"`
	Tracks           []Track  `json:"tracks"`
	Selected         string   `json:"selected,omitempty"`
	RemainingGuesses int      `json:"remainingGuesses"`
	Winner           *Artist  `json:"winner,omitempty"`
	Playing          int      `json:"playing,omitempty"`
}

func (s *Session) View() View {
	v := View{
		State:            s.state,
		Artists:          append([]Artist{}, s.round.ArtistsArray...),
		Tracks:           append([]Track{}, s.round.ArtistSongs...),
		RemainingGuesses: s.remaining,
	}
	if s.selected != nil {
		v.Selected = s.selected.ID
	}
	if s.state.Terminated() {
		winner := s.round.WinningArtist
		v.Winner = &winner
	}
	return v
}

func (s *Session) requirePlaying() error {
	switch {
	case s.state == Initializing:
		return ErrNoActiveRound
	case s.state.Terminated():
		return ErrRoundOver
	}
	return nil
}

func (s *Session) stopPlayback() {
	if s.playback != nil {
		s.playback.Stop()
	}
}

func (s *Session) clearGuessState() {
	if err := s.persist.ClearGuessState(); err != nil {
		s.logf("STORE: Failed to clear guess state: %v", err)
	}
}
