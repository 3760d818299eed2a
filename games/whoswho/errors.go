package whoswho

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveRound means neither the session store nor persistence holds a
	// round. Callers send the player back to setup.
	ErrNoActiveRound = errors.New("no active round")

	ErrNoSelection        = errors.New("no artist selected")
	ErrUnknownArtist      = errors.New("artist is not in the pool")
	ErrRoundOver          = errors.New("round is over")
	ErrSubmissionInFlight = errors.New("a guess is already being submitted")

	ErrGenreRequired  = errors.New("genre is required")
	ErrNoArtists      = errors.New("no artists listed for that genre, please select another")
	ErrInvalidOptions = errors.New("invalid round options")
)

// PlaybackError reports a preview that failed to load or play. It never
// affects the round.
type PlaybackError struct {
	Track Track
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of track %d (%s) failed: %v", e.Track.ID, e.Track.Preview, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// MalformedPersistedState is logged when a stored record cannot be decoded.
// It is treated exactly like a missing record.
type MalformedPersistedState struct {
	Key string
	Err error
}

func (e *MalformedPersistedState) Error() string {
	return fmt.Sprintf("malformed persisted state under %q: %v", e.Key, e.Err)
}

func (e *MalformedPersistedState) Unwrap() error {
	return e.Err
}
