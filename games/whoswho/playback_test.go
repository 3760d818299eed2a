package whoswho

import (
	"errors"
	"fmt"
	"testing"
)

type fakeAudio struct {
	next    int
	playing map[Handle]string
	started []string
	stopped []Handle
	fail    error
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{playing: make(map[Handle]string)}
}

func (f *fakeAudio) Start(url string) (Handle, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.next++
	h := Handle(fmt.Sprintf("h%d", f.next))
	f.playing[h] = url
	f.started = append(f.started, url)
	return h, nil
}

func (f *fakeAudio) Stop(h Handle) {
	delete(f.playing, h)
	f.stopped = append(f.stopped, h)
}

func (f *fakeAudio) IsPlaying(h Handle) bool {
	_, ok := f.playing[h]
	return ok
}

func tracks() (Track, Track) {
	round := testRound(2, 2)
	return round.ArtistSongs[0], round.ArtistSongs[1]
}

func TestToggleSameTrackTwiceStops(t *testing.T) {
	audio := newFakeAudio()
	p := NewPlayer(audio, t.Logf)
	a, _ := tracks()

	if err := p.Toggle(a); err != nil {
		t.Fatal(err)
	}
	if cur, ok := p.Current(); !ok || cur.ID != a.ID {
		t.Fatalf("expected track %d playing", a.ID)
	}

	if err := p.Toggle(a); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Current(); ok {
		t.Fatal("expected nothing playing")
	}
	if len(audio.playing) != 0 {
		t.Fatalf("backend still has %d streams", len(audio.playing))
	}
}

func TestToggleOtherTrackSwitches(t *testing.T) {
	audio := newFakeAudio()
	p := NewPlayer(audio, t.Logf)
	a, b := tracks()

	if err := p.Toggle(a); err != nil {
		t.Fatal(err)
	}
	if err := p.Toggle(b); err != nil {
		t.Fatal(err)
	}

	if cur, ok := p.Current(); !ok || cur.ID != b.ID {
		t.Fatalf("expected track %d playing, got %+v (%t)", b.ID, cur, ok)
	}
	if len(audio.playing) != 1 {
		t.Fatalf("%d streams playing, want 1", len(audio.playing))
	}
	for _, url := range audio.playing {
		if url != b.Preview {
			t.Fatalf("backend is playing %s", url)
		}
	}
}

func TestPlayRestartsSameTrack(t *testing.T) {
	audio := newFakeAudio()
	p := NewPlayer(audio, t.Logf)
	a, _ := tracks()

	_ = p.Play(a)
	_ = p.Play(a)

	if len(audio.started) != 2 || len(audio.stopped) != 1 {
		t.Fatalf("started %d, stopped %d", len(audio.started), len(audio.stopped))
	}
}

func TestStopWhenIdle(t *testing.T) {
	audio := newFakeAudio()
	p := NewPlayer(audio, t.Logf)

	p.Stop()
	p.Stop()

	if len(audio.stopped) != 0 {
		t.Fatalf("backend stop called %d times", len(audio.stopped))
	}
}

func TestStartFailure(t *testing.T) {
	audio := newFakeAudio()
	audio.fail = errors.New("could not load")
	p := NewPlayer(audio, t.Logf)
	a, _ := tracks()

	err := p.Play(a)

	var perr *PlaybackError
	if !errors.As(err, &perr) {
		t.Fatalf("expected a PlaybackError, got %v", err)
	}
	if perr.Track.ID != a.ID || !errors.Is(err, audio.fail) {
		t.Fatalf("unexpected error %+v", perr)
	}
	if _, ok := p.Current(); ok {
		t.Fatal("a failed start left something playing")
	}
}

func TestUnplayableTrack(t *testing.T) {
	p := NewPlayer(newFakeAudio(), t.Logf)
	a, _ := tracks()
	a.Preview = ""

	var perr *PlaybackError
	if err := p.Play(a); !errors.As(err, &perr) {
		t.Fatalf("expected a PlaybackError, got %v", err)
	}
}

func TestReportedEvents(t *testing.T) {
	audio := newFakeAudio()
	p := NewPlayer(audio, t.Logf)
	a, b := tracks()

	_ = p.Play(a)
	first := Handle("h1")
	_ = p.Play(b)

	if perr := p.ReportError(first, errors.New("late")); perr != nil {
		t.Fatalf("stale handle produced %v", perr)
	}
	if cur, ok := p.Current(); !ok || cur.ID != b.ID {
		t.Fatal("stale error stopped the current track")
	}

	perr := p.ReportError("h2", errors.New("decode failed"))
	if perr == nil || perr.Track.ID != b.ID {
		t.Fatalf("expected a PlaybackError for track %d, got %v", b.ID, perr)
	}
	if _, ok := p.Current(); ok {
		t.Fatal("errored track still current")
	}

	_ = p.Play(a)
	p.ReportEnded("h3")
	if _, ok := p.Current(); ok {
		t.Fatal("ended track still current")
	}
}

func TestPlaybackFailureKeepsRound(t *testing.T) {
	h := newHarness(t)
	h.start(t, testRound(4, 1))

	audio := newFakeAudio()
	audio.fail = errors.New("offline")
	p := NewPlayer(audio, t.Logf)

	track, _ := h.session.Track(1)
	if err := p.Play(track); err == nil {
		t.Fatal("expected a playback error")
	}

	if h.session.State() != Playing || h.session.RemainingGuesses() != 2 {
		t.Fatalf("playback failure changed the round: %s, %d", h.session.State(), h.session.RemainingGuesses())
	}
}
