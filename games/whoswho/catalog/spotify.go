// Package catalog fetches candidate artists and preview tracks from the
// Spotify Web API.
package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/Seednode/whoswho/games/whoswho"
)

const DefaultMarket = "US"

// Spotify implements whoswho.Catalog.
type Spotify struct {
	client *spotify.Client
	market string
}

// NewSpotify authenticates every request with a token from ts.
func NewSpotify(ctx context.Context, ts oauth2.TokenSource, market string, opts ...spotify.ClientOption) *Spotify {
	return newSpotify(oauth2.NewClient(ctx, ts), market, opts...)
}

func newSpotify(httpClient *http.Client, market string, opts ...spotify.ClientOption) *Spotify {
	if market == "" {
		market = DefaultMarket
	}
	return &Spotify{
		client: spotify.New(httpClient, opts...),
		market: market,
	}
}

func (s *Spotify) Genres(ctx context.Context) ([]string, error) {
	return s.client.GetAvailableGenreSeeds(ctx)
}

func (s *Spotify) ArtistsByGenre(ctx context.Context, genre string, limit int) ([]whoswho.Artist, error) {
	res, err := s.client.Search(ctx, "genre:"+genre, spotify.SearchTypeArtist, spotify.Limit(limit))
	if err != nil {
		return nil, err
	}
	if res.Artists == nil {
		return nil, nil
	}

	artists := make([]whoswho.Artist, 0, len(res.Artists.Artists))
	for _, a := range res.Artists.Artists {
		artists = append(artists, mapArtist(a))
	}
	return artists, nil
}

func (s *Spotify) TopTracks(ctx context.Context, artistID string) ([]whoswho.Track, error) {
	top, err := s.client.GetArtistsTopTracks(ctx, spotify.ID(artistID), s.market)
	if err != nil {
		return nil, fmt.Errorf("artists/%s/top-tracks: %w", artistID, err)
	}

	tracks := make([]whoswho.Track, 0, len(top))
	for _, t := range top {
		tracks = append(tracks, mapTrack(t, artistID))
	}
	return tracks, nil
}

func mapArtist(a spotify.FullArtist) whoswho.Artist {
	out := whoswho.Artist{
		ID:   string(a.ID),
		Name: a.Name,
	}
	if len(a.Images) > 0 {
		out.Image = a.Images[0].URL
	}
	return out
}

// mapTrack credits the track to artistID when it is among the track's
// artists, and to the first listed artist otherwise.
func mapTrack(t spotify.FullTrack, artistID string) whoswho.Track {
	out := whoswho.Track{
		Name:    t.Name,
		Preview: t.PreviewURL,
	}
	if len(t.Artists) > 0 {
		out.ArtistID = string(t.Artists[0].ID)
	}
	for _, a := range t.Artists {
		if string(a.ID) == artistID {
			out.ArtistID = artistID
			break
		}
	}
	return out
}
