package whoswho

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
)

const searchLimit = 50

var (
	PoolSizes   = []int{2, 3, 4}
	TrackCounts = []int{1, 2, 3}
)

// Catalog is the music provider setup pulls candidates from. Implementations
// map provider payloads onto Artist and Track; Track.ID is assigned by setup.
type Catalog interface {
	Genres(ctx context.Context) ([]string, error)
	ArtistsByGenre(ctx context.Context, genre string, limit int) ([]Artist, error)
	TopTracks(ctx context.Context, artistID string) ([]Track, error)
}

// RoundOptions are the choices made on the setup screen. Zero counts pick the
// smallest allowed value.
type RoundOptions struct {
	Genre   string `json:"genre"`
	Artists int    `json:"artists"`
	Tracks  int    `json:"tracks"`
}

func (o RoundOptions) normalize() (RoundOptions, error) {
	o.Genre = strings.TrimSpace(o.Genre)
	if o.Genre == "" {
		return o, ErrGenreRequired
	}

	if o.Artists == 0 {
		o.Artists = PoolSizes[0]
	}
	if o.Tracks == 0 {
		o.Tracks = TrackCounts[0]
	}

	if !slices.Contains(PoolSizes, o.Artists) {
		return o, fmt.Errorf("%w: pool size %d not in %v", ErrInvalidOptions, o.Artists, PoolSizes)
	}
	if !slices.Contains(TrackCounts, o.Tracks) {
		return o, fmt.Errorf("%w: track count %d not in %v", ErrInvalidOptions, o.Tracks, TrackCounts)
	}

	return o, nil
}

// Setup builds new rounds from a catalog.
type Setup struct {
	catalog Catalog
	rng     *rand.Rand
	logf    Logf
}

func NewSetup(catalog Catalog, rng *rand.Rand, logf Logf) *Setup {
	if logf == nil {
		logf = nopLogf
	}
	return &Setup{catalog: catalog, rng: rng, logf: logf}
}

func (s *Setup) Genres(ctx context.Context) ([]string, error) {
	genres, err := s.catalog.Genres(ctx)
	if err != nil {
		return nil, fmt.Errorf("load genres: %w", err)
	}
	return genres, nil
}

// BuildRound picks a pool of artists for the genre. The first artist of the
// shuffled search results with a playable top track wins, and the pool is
// filled with the artists following it.
func (s *Setup) BuildRound(ctx context.Context, opts RoundOptions) (RoundPayload, error) {
	opts, err := opts.normalize()
	if err != nil {
		return RoundPayload{}, err
	}

	artists, err := s.catalog.ArtistsByGenre(ctx, opts.Genre, searchLimit)
	if err != nil {
		return RoundPayload{}, fmt.Errorf("search artists for %q: %w", opts.Genre, err)
	}
	if len(artists) == 0 {
		return RoundPayload{}, ErrNoArtists
	}

	Shuffle(s.rng, artists)

	start := -1
	var tracks []Track
	for i, a := range artists {
		top, err := s.catalog.TopTracks(ctx, a.ID)
		if err != nil {
			return RoundPayload{}, fmt.Errorf("top tracks of %q: %w", a.Name, err)
		}

		tracks = playableTracks(a, top)
		if len(tracks) > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return RoundPayload{}, ErrNoArtists
	}

	pool := artists[start:min(start+opts.Artists, len(artists))]
	if len(pool) < opts.Artists {
		s.logf("SETUP: Only %d of %d artists left after %q, pool is short", len(pool), opts.Artists, pool[0].Name)
	}

	Shuffle(s.rng, tracks)
	if len(tracks) > opts.Tracks {
		tracks = tracks[:opts.Tracks]
	}

	round := RoundPayload{
		WinningArtist: pool[0],
		ArtistSongs:   tracks,
		ArtistsArray:  append([]Artist(nil), pool...),
	}
	if err := round.Validate(); err != nil {
		return RoundPayload{}, fmt.Errorf("built an invalid round: %w", err)
	}

	s.logf("SETUP: Built %s round, %d artists, %d tracks", opts.Genre, len(round.ArtistsArray), len(round.ArtistSongs))

	return round, nil
}

// playableTracks keeps the tracks of a that have a preview and numbers them
// from 1 in catalog order.
func playableTracks(a Artist, top []Track) []Track {
	out := make([]Track, 0, len(top))
	for _, t := range top {
		if !t.Playable() || t.ArtistID != a.ID {
			continue
		}
		t.ID = len(out) + 1
		out = append(out, t)
	}
	return out
}

// PublishRound hands a freshly built round to the session store and to
// persistence, drops any guess counter left over from an earlier round, and
// signals that the play screen can open.
func PublishRound(round RoundPayload, store *SessionStore, persist *RoundPersistence, navigate Navigator) error {
	if err := round.Validate(); err != nil {
		return err
	}

	store.Publish(round)

	if err := persist.SaveRound(round); err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	if err := persist.ClearGuessState(); err != nil {
		return fmt.Errorf("clear guess state: %w", err)
	}

	if navigate != nil {
		navigate(NavigatePlay)
	}

	return nil
}
