package whoswho

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/whoswho/games/whoswho/kv"
)

const (
	roundKey = "gameData"
	guessKey = "gameGuesses"

	storeTimeout = 5 * time.Second
)

// RoundPersistence keeps the round payload and the guess counter of one tab
// session in a durable store, so a round can be resumed after a reload.
type RoundPersistence struct {
	kv        kv.Store
	namespace string
	logf      Logf
}

// NewRoundPersistence stores records under "<namespace>:gameData" and
// "<namespace>:gameGuesses". An empty namespace uses the bare keys.
func NewRoundPersistence(store kv.Store, namespace string, logf Logf) *RoundPersistence {
	if logf == nil {
		logf = nopLogf
	}
	return &RoundPersistence{kv: store, namespace: namespace, logf: logf}
}

func (p *RoundPersistence) key(name string) string {
	if p.namespace == "" {
		return name
	}
	return p.namespace + ":" + name
}

func (p *RoundPersistence) SaveRound(round RoundPayload) error {
	return p.save(roundKey, round)
}

// LoadRound returns false when nothing usable is stored.
func (p *RoundPersistence) LoadRound() (RoundPayload, bool) {
	var round RoundPayload

	raw, ok := p.load(roundKey)
	if !ok {
		return round, false
	}

	if err := json.Unmarshal([]byte(raw), &round); err != nil {
		p.malformed(roundKey, err)
		return RoundPayload{}, false
	}
	if err := round.Validate(); err != nil {
		p.malformed(roundKey, err)
		return RoundPayload{}, false
	}

	return round, true
}

func (p *RoundPersistence) ClearRound() error {
	return p.clear(roundKey)
}

func (p *RoundPersistence) SaveGuessState(state GuessState) error {
	return p.save(guessKey, state)
}

// LoadGuessState returns false when no round is being resumed.
func (p *RoundPersistence) LoadGuessState() (GuessState, bool) {
	raw, ok := p.load(guessKey)
	if !ok {
		return GuessState{}, false
	}

	// older records hold only the counter
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		if n < 0 {
			p.malformed(guessKey, errors.New("negative guess counter"))
			return GuessState{}, false
		}
		return GuessState{RemainingGuesses: n, StillPlaying: true}, true
	}

	var state GuessState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		p.malformed(guessKey, err)
		return GuessState{}, false
	}
	if state.RemainingGuesses < 0 {
		p.malformed(guessKey, errors.New("negative guess counter"))
		return GuessState{}, false
	}

	return state, true
}

func (p *RoundPersistence) ClearGuessState() error {
	return p.clear(guessKey)
}

func (p *RoundPersistence) save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	return p.kv.Set(ctx, p.key(name), string(data))
}

func (p *RoundPersistence) load(name string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	raw, ok, err := p.kv.Get(ctx, p.key(name))
	if err != nil {
		p.logf("STORE: Failed to read %s: %v", p.key(name), err)
		return "", false
	}
	if trimmed := strings.TrimSpace(raw); !ok || trimmed == "" || trimmed == "null" {
		return "", false
	}

	return raw, true
}

func (p *RoundPersistence) clear(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	return p.kv.Delete(ctx, p.key(name))
}

func (p *RoundPersistence) malformed(name string, err error) {
	p.logf("STORE: %v", &MalformedPersistedState{Key: p.key(name), Err: err})
}
