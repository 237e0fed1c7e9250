package engine

import (
	"sync"
	"time"
)

// CooldownGuard tracks the last trigger time per lead and channel. It is
// process-local shared state, so all access goes through the lock.
type CooldownGuard struct {
	mu   sync.Mutex
	last map[string]map[string]time.Time
}

func NewCooldownGuard() *CooldownGuard {
	return &CooldownGuard{last: make(map[string]map[string]time.Time)}
}

// CheckAndReserve atomically checks whether the (lead, channel) pair is
// outside its cooldown window and, if so, reserves the slot at now. The
// reservation happens before any send attempt, so a failed send still
// consumes the window. Two concurrent evaluations for the same pair can
// never both pass.
func (g *CooldownGuard) CheckAndReserve(leadID, channel string, window time.Duration, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if channels, ok := g.last[leadID]; ok {
		if last, ok := channels[channel]; ok && now.Sub(last) < window {
			return false
		}
	}
	if g.last[leadID] == nil {
		g.last[leadID] = make(map[string]time.Time)
	}
	g.last[leadID][channel] = now
	return true
}
