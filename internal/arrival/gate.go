// Package arrival rate-limits "known person arrived" events per identity.
package arrival

import (
	"sync"
	"time"
)

// Gate admits at most one arrival per identity per cooldown window.
type Gate struct {
	cooldown time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown, last: make(map[string]time.Time)}
}

// Allow reports whether identity may log an arrival at now and, if so,
// starts a new cooldown window for it.
func (g *Gate) Allow(identity string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.last[identity]; ok && now.Sub(prev) < g.cooldown {
		return false
	}
	g.last[identity] = now
	return true
}

// Forget drops identities whose window closed before now.
func (g *Gate) Forget(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for id, t := range g.last {
		if now.Sub(t) >= g.cooldown {
			delete(g.last, id)
			n++
		}
	}
	return n
}

func (g *Gate) Cooldown() time.Duration { return g.cooldown }
