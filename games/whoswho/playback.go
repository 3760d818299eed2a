package whoswho

import "errors"

// Handle identifies one stream started on an AudioBackend.
type Handle string

// AudioBackend is whatever actually plays a preview URL.
//
// Backends that fail or finish asynchronously report back through
// Player.ReportError and Player.ReportEnded.
type AudioBackend interface {
	Start(url string) (Handle, error)
	Stop(h Handle)
	IsPlaying(h Handle) bool
}

type voice struct {
	track  Track
	handle Handle
}

// Player plays at most one preview at a time. It is not safe for concurrent
// use; it belongs to the goroutine that owns the game session.
type Player struct {
	backend AudioBackend
	logf    Logf
	current *voice
}

func NewPlayer(backend AudioBackend, logf Logf) *Player {
	if logf == nil {
		logf = nopLogf
	}
	return &Player{backend: backend, logf: logf}
}

// Play stops whatever is playing and starts track. A failure is logged and
// returned as a *PlaybackError; it leaves nothing playing.
func (p *Player) Play(track Track) error {
	p.Stop()

	if !track.Playable() {
		return p.failed(track, errors.New("track has no preview"))
	}

	h, err := p.backend.Start(track.Preview)
	if err != nil {
		return p.failed(track, err)
	}

	p.current = &voice{track: track, handle: h}
	p.logf("AUDIO: Playing track %d (%s)", track.ID, track.Name)

	return nil
}

// Toggle stops track if it is the one playing, and plays it otherwise.
func (p *Player) Toggle(track Track) error {
	if p.isPlaying(track) {
		p.Stop()
		return nil
	}
	return p.Play(track)
}

// Stop is a no-op when nothing is playing.
func (p *Player) Stop() {
	if p.current == nil {
		return
	}

	p.backend.Stop(p.current.handle)
	p.logf("AUDIO: Stopped track %d", p.current.track.ID)
	p.current = nil
}

// Current returns the track that is audibly playing, if any.
func (p *Player) Current() (Track, bool) {
	if p.current == nil || !p.backend.IsPlaying(p.current.handle) {
		return Track{}, false
	}
	return p.current.track, true
}

// ReportEnded marks h as finished.
func (p *Player) ReportEnded(h Handle) {
	if p.current != nil && p.current.handle == h {
		p.logf("AUDIO: Finished track %d", p.current.track.ID)
		p.current = nil
	}
}

// ReportError logs a failure of h. Stale handles are logged and ignored.
func (p *Player) ReportError(h Handle, err error) *PlaybackError {
	if p.current == nil || p.current.handle != h {
		p.logf("AUDIO: Ignoring error from stale stream %s: %v", h, err)
		return nil
	}

	track := p.current.track
	p.current = nil

	perr := &PlaybackError{Track: track, Err: err}
	p.logf("AUDIO: %v", perr)
	return perr
}

func (p *Player) isPlaying(track Track) bool {
	return p.current != nil &&
		p.current.track.ID == track.ID &&
		p.current.track.Preview == track.Preview &&
		p.backend.IsPlaying(p.current.handle)
}

func (p *Player) failed(track Track, err error) error {
	perr := &PlaybackError{Track: track, Err: err}
	p.logf("AUDIO: %v", perr)
	return perr
}
