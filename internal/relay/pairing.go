package relay

import (
	"net"
	"sync"

	"github.com/lanterncrew/fling/internal/identity"
)

// waiter is the bookkeeping the pairing table keeps for the first peer to
// arrive with a given id: its connection, its outbound PAKE element, and a
// channel the matching peer closes to release it from its timeout wait.
type waiter struct {
	conn    net.Conn
	element []byte
	done    chan struct{}
}

// pairingTable is the relay's entire state: a single-use map from pairing
// id to the peer that is waiting on it. An id is present only while exactly
// one of its two peers has arrived; the matching peer both pairs and
// deletes it in the same critical section, so it can never be reused.
type pairingTable struct {
	mu      sync.Mutex
	waiting map[identity.ID]*waiter
}

func newPairingTable() *pairingTable {
	return &pairingTable{waiting: make(map[identity.ID]*waiter)}
}

// match looks up id. If a peer is already waiting, it is removed and
// returned together with ok=true — the caller is now responsible for
// completing the pairing. Otherwise nil, false is returned.
func (t *pairingTable) match(id identity.ID) (*waiter, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.waiting[id]
	if ok {
		delete(t.waiting, id)
	}
	return w, ok
}

// tryRegister inserts w under id unless the table is already at maxClients
// capacity, in which case it returns false and w is not inserted.
func (t *pairingTable) tryRegister(id identity.ID, w *waiter, maxClients int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if maxClients > 0 && len(t.waiting) >= maxClients {
		return false
	}
	t.waiting[id] = w
	return true
}

// cancel removes id from the table, but only if it still points at w —
// it may already have been matched and removed by another goroutine.
func (t *pairingTable) cancel(id identity.ID, w *waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.waiting[id] == w {
		delete(t.waiting, id)
	}
}

// size returns the number of peers currently waiting, for tests and metrics.
func (t *pairingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiting)
}
