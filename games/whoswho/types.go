package whoswho

import (
	"errors"
	"fmt"
)

// Artist is a candidate in the guessing pool. Two artists are the same iff
// their IDs match.
type Artist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

func (a Artist) Is(other Artist) bool {
	return a.ID == other.ID
}

// Track is one preview clip of the winning artist. ID is local to the round.
type Track struct {
	ID       int    `json:"id"`
	ArtistID string `json:"artistId"`
	Name     string `json:"name"`
	Preview  string `json:"preview"`
}

func (t Track) Playable() bool {
	return t.Preview != ""
}

// RoundPayload is everything needed to play (or resume) one round.
type RoundPayload struct {
	WinningArtist Artist   `json:"winningArtist"`
	ArtistSongs   []Track  `json:"artistSongs"`
	ArtistsArray  []Artist `json:"artistsArray"`
}

func (p RoundPayload) Empty() bool {
	return len(p.ArtistsArray) == 0
}

// Validate checks that the winner belongs to the pool and owns every track.
func (p RoundPayload) Validate() error {
	if p.Empty() {
		return errors.New("round has no artists")
	}
	if p.WinningArtist.ID == "" {
		return errors.New("round has no winning artist")
	}

	found := false
	for _, a := range p.ArtistsArray {
		if a.Is(p.WinningArtist) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("winning artist %q is not in the pool", p.WinningArtist.ID)
	}

	for _, t := range p.ArtistSongs {
		if t.ArtistID != p.WinningArtist.ID {
			return fmt.Errorf("track %d belongs to %q, not the winning artist", t.ID, t.ArtistID)
		}
		if !t.Playable() {
			return fmt.Errorf("track %d has no preview", t.ID)
		}
	}

	return nil
}

func (p RoundPayload) clone() RoundPayload {
	out := RoundPayload{WinningArtist: p.WinningArtist}
	if p.ArtistSongs != nil {
		out.ArtistSongs = append([]Track(nil), p.ArtistSongs...)
	}
	if p.ArtistsArray != nil {
		out.ArtistsArray = append([]Artist(nil), p.ArtistsArray...)
	}
	return out
}

// GuessState is the persisted guess counter of a round in progress.
type GuessState struct {
	RemainingGuesses int  `json:"numGuesses"`
	StillPlaying     bool `json:"isStillPlaying"`
}

// InitialGuesses is the guess allowance of a fresh round.
func InitialGuesses(poolSize int) int {
	if poolSize < 4 {
		return 1
	}
	return 2
}

// Event is an outbound navigation signal.
type Event string

const (
	NavigateSetup Event = "setup"
	NavigatePlay  Event = "play"
)

// Navigator receives navigation events. The routing itself is up to the caller.
type Navigator func(Event)

// Logf is the logging sink used throughout the package.
type Logf func(format string, args ...any)

func nopLogf(string, ...any) {}
