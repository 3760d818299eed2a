package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/Seednode/whoswho/games/whoswho/kv"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "genre:rock" {
			t.Errorf("search query = %q", q)
		}
		if ty := r.URL.Query().Get("type"); ty != "artist" {
			t.Errorf("search type = %q", ty)
		}
		_, _ = w.Write([]byte(`{"artists":{"items":[
			{"id":"a1","name":"One","images":[{"url":"https://img/1a"},{"url":"https://img/1b"}]},
			{"id":"a2","name":"Two","images":[]}
		]}}`))
	})
	mux.HandleFunc("/artists/a1/top-tracks", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "GB") {
			t.Errorf("market missing from %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"tracks":[
			{"id":"t1","name":"Hit","preview_url":"https://p/1","artists":[{"id":"x"},{"id":"a1"}]},
			{"id":"t2","name":"Deep cut","preview_url":"","artists":[{"id":"a1"}]}
		]}`))
	})
	mux.HandleFunc("/recommendations/available-genre-seeds", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"genres":["jazz","rock"]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSpotifyCatalog(t *testing.T) {
	srv := newAPI(t)
	ctx := context.Background()

	s := newSpotify(srv.Client(), "GB", spotify.WithBaseURL(srv.URL+"/"))

	genres, err := s.Genres(ctx)
	if err != nil || len(genres) != 2 {
		t.Fatalf("genres = %v, %v", genres, err)
	}

	artists, err := s.ArtistsByGenre(ctx, "rock", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(artists) != 2 {
		t.Fatalf("got %d artists", len(artists))
	}
	if artists[0].ID != "a1" || artists[0].Image != "https://img/1a" || artists[1].Image != "" {
		t.Fatalf("unexpected mapping %+v", artists)
	}

	tracks, err := s.TopTracks(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks", len(tracks))
	}
	if tracks[0].ArtistID != "a1" || tracks[0].Preview != "https://p/1" {
		t.Fatalf("track credited wrongly: %+v", tracks[0])
	}
	if tracks[1].Playable() {
		t.Fatal("track without preview reported playable")
	}
}

func TestMapTrackFallsBackToFirstArtist(t *testing.T) {
	var tr spotify.FullTrack
	tr.Name = "Feature"
	tr.Artists = []spotify.SimpleArtist{{ID: "lead"}, {ID: "guest"}}

	if got := mapTrack(tr, "someone"); got.ArtistID != "lead" {
		t.Fatalf("artist = %q, want lead", got.ArtistID)
	}
}

func tokenServer(t *testing.T, expiresIn int, calls *int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-" + strings.Repeat("x", int(n)),
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndpointTokenSourceExpiry(t *testing.T) {
	var calls int32
	srv := tokenServer(t, 3600, &calls)

	before := time.Now()
	tok, err := (&EndpointTokenSource{URL: srv.URL, Client: srv.Client()}).Token()
	if err != nil {
		t.Fatal(err)
	}

	if tok.AccessToken != "token-x" || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected token %+v", tok)
	}

	want := before.Add(3600*time.Second - expirySlack)
	if d := tok.Expiry.Sub(want); d < 0 || d > 5*time.Second {
		t.Fatalf("expiry %s is %s off %s", tok.Expiry, d, want)
	}
}

func TestEndpointTokenSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			_, _ = w.Write([]byte(`{"expires_in":60}`))
		default:
			http.Error(w, "nope", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/empty", "/forbidden"} {
		if _, err := (&EndpointTokenSource{URL: srv.URL + path}).Token(); err == nil {
			t.Fatalf("%s: expected an error", path)
		}
	}
}

func TestNewTokenSourceReuses(t *testing.T) {
	var calls int32
	srv := tokenServer(t, 3600, &calls)

	store := kv.NewMemory()
	ts := NewTokenSource(store, &EndpointTokenSource{URL: srv.URL})

	for i := 0; i < 3; i++ {
		if _, err := ts.Token(); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("endpoint called %d times, want 1", n)
	}

	// a fresh process finds the token in the store
	again := NewTokenSource(store, &EndpointTokenSource{URL: srv.URL})
	tok, err := again.Token()
	if err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 || tok.AccessToken != "token-x" {
		t.Fatalf("stored token not reused: calls=%d tok=%s", n, tok.AccessToken)
	}
}

type staticSource struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (s *staticSource) Token() (*oauth2.Token, error) {
	s.calls++
	return s.tok, s.err
}

func TestStoredTokenSourceRefreshesExpired(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	expired, _ := json.Marshal(storedToken{Value: "old", Type: "Bearer", Expiration: time.Now().Add(-time.Minute).UnixMilli()})
	if err := store.Set(ctx, TokenKey, string(expired)); err != nil {
		t.Fatal(err)
	}

	src := &staticSource{tok: &oauth2.Token{AccessToken: "new", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}}
	tok, err := (&StoredTokenSource{Store: store, Src: src}).Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "new" || src.calls != 1 {
		t.Fatalf("got %s after %d calls", tok.AccessToken, src.calls)
	}

	raw, ok, _ := store.Get(ctx, TokenKey)
	if !ok || !strings.Contains(raw, `"value":"new"`) {
		t.Fatalf("store holds %q", raw)
	}
}

func TestStoredTokenSourcePropagatesErrors(t *testing.T) {
	src := &staticSource{err: errors.New("offline")}

	if _, err := (&StoredTokenSource{Store: kv.NewMemory(), Src: src}).Token(); !errors.Is(err, src.err) {
		t.Fatalf("expected offline, got %v", err)
	}
}
