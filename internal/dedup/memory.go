package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// MemoryGate keeps visit markers in a bounded LRU inside the process. The
// least recently used marker is dropped once size is reached.
type MemoryGate struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	prefix string
	cache  *lru.Cache[string, time.Time] // key -> expiry
}

// NewMemoryGate creates a gate holding at most size markers. A nil clock
// uses the real clock.
func NewMemoryGate(size int, prefix string, clock clockwork.Clock) (*MemoryGate, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cache, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("create marker cache: %w", err)
	}
	return &MemoryGate{clock: clock, prefix: prefix, cache: cache}, nil
}

func (g *MemoryGate) Admit(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	key = g.prefix + key

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	expires, ok := g.cache.Get(key)
	g.cache.Add(key, now.Add(ttl))
	return !ok || !now.Before(expires), nil
}

func (g *MemoryGate) Forget(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Remove(g.prefix + key)
	return nil
}

// Len returns the number of markers held, live or not yet evicted.
func (g *MemoryGate) Len() int {
	return g.cache.Len()
}
