package whoswho

import (
	"math/rand"
	"sync"
	"time"
)

var (
	defaultRandMu sync.Mutex
	defaultRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Shuffle permutes s in place with a Fisher-Yates pass. A nil rng uses a
// shared time-seeded source.
func Shuffle[T any](rng *rand.Rand, s []T) {
	if len(s) < 2 {
		return
	}

	if rng == nil {
		defaultRandMu.Lock()
		defer defaultRandMu.Unlock()
		rng = defaultRand
	}

	for i := len(s) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
