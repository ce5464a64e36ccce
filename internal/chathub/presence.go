package chathub

import "sync"

// PresenceRegistry tracks which identities currently hold at least one
// live connection. Connection counts are reference-counted per identity
// so "online" survives until the last tab disconnects, not just until
// the most recent one does. Mutations happen only on the hub goroutine;
// the lock exists for read access from HTTP handlers.
type PresenceRegistry struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{counts: make(map[string]int)}
}

// Add records a new connection for id and reports whether the identity
// just came online (zero connections before this one).
func (p *PresenceRegistry) Add(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[id]++
	return p.counts[id] == 1
}

// Remove records a dropped connection for id and reports whether the
// identity just went offline (that was its last connection).
func (p *PresenceRegistry) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[id]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.counts, id)
		return true
	}
	p.counts[id] = n - 1
	return false
}

// IsOnline reports whether id holds at least one live connection.
func (p *PresenceRegistry) IsOnline(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counts[id] > 0
}

// Online returns a snapshot of every currently-online identity id.
func (p *PresenceRegistry) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.counts))
	for id := range p.counts {
		ids = append(ids, id)
	}
	return ids
}
