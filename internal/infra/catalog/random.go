package catalog

import (
	"math/rand"
	"sync"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

// lockedRand makes a *rand.Rand safe for concurrent request handlers.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand returns a goroutine-safe random source. A zero seed seeds from the clock.
func NewRand(seed int64) domain.RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
