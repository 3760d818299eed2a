/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Seednode/whoswho/games/whoswho"
)

var errNoAudioOutput = errors.New("no audio output connected")

// wsAudio plays previews in the browser. Start and Stop become messages to
// the most recently connected client of the session, which reports back with
// "audio_ended" and "audio_error".
type wsAudio struct {
	t       *tab
	output  *client
	playing map[whoswho.Handle]bool
}

func newWSAudio(t *tab) *wsAudio {
	return &wsAudio{t: t, playing: make(map[whoswho.Handle]bool)}
}

func (a *wsAudio) Start(url string) (whoswho.Handle, error) {
	if a.output == nil {
		return "", errNoAudioOutput
	}

	h := whoswho.Handle(uuid.NewString())
	a.playing[h] = true
	a.t.sendTo(a.output, AudioMessage{Type: "audio_play", Handle: string(h), URL: url})

	return h, nil
}

func (a *wsAudio) Stop(h whoswho.Handle) {
	if !a.playing[h] {
		return
	}
	delete(a.playing, h)

	if a.output != nil {
		a.t.sendTo(a.output, AudioMessage{Type: "audio_stop", Handle: string(h)})
	}
}

func (a *wsAudio) IsPlaying(h whoswho.Handle) bool {
	return a.playing[h]
}

func (a *wsAudio) forget(h whoswho.Handle) {
	delete(a.playing, h)
}

// attach makes c the audio output. Streams started on the previous output
// are considered stopped.
func (a *wsAudio) attach(c *client) {
	if a.output != nil && a.output != c {
		for h := range a.playing {
			a.t.sendTo(a.output, AudioMessage{Type: "audio_stop", Handle: string(h)})
		}
	}
	a.output = c
	clear(a.playing)
}

// detach falls back to any remaining client when the output goes away.
func (a *wsAudio) detach(c *client) {
	if a.output != c {
		return
	}

	clear(a.playing)
	a.output = nil
	for other := range a.t.clients {
		a.output = other
		break
	}
}
