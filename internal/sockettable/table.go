// Package sockettable implements the process-wide SockID -> *socket.Socket
// map, guarded by a single readers/writer lock. Write-lock holders may
// mutate any socket; read-lock holders may only inspect.
package sockettable

import (
	"math/rand"
	"sync"

	"github.com/datawire/usertcp/internal/socket"
	"github.com/datawire/usertcp/pkg/usertcperr"
)

// PortRangeStart and PortRangeEnd bound the ephemeral local ports
// select_unused_port draws from: [PortRangeStart, PortRangeEnd).
const (
	PortRangeStart = 40000
	PortRangeEnd   = 60000
)

// Table is the socket table: a keyed map guarded by one RWMutex, shared by
// the receive loop, the retransmission timer, and every user-facing call.
type Table struct {
	mu      sync.RWMutex
	sockets map[socket.SockID]*socket.Socket
	rnd     *rand.Rand
}

// New constructs an empty Table whose port selection and initial-sequence
// randomness are drawn from rndSource.
func New(rndSource rand.Source) *Table {
	return &Table{sockets: make(map[socket.SockID]*socket.Socket), rnd: rand.New(rndSource)}
}

// Lock acquires the write lock and returns an unlock func, so callers can
// hold the table across a multi-step mutation (exactly the discipline the
// receive loop and timer use: acquire once per iteration, release once).
func (t *Table) Lock() func() {
	t.mu.Lock()
	return t.mu.Unlock
}

// RLock acquires the read lock and returns an unlock func.
func (t *Table) RLock() func() {
	t.mu.RLock()
	return t.mu.RUnlock
}

// Insert adds or replaces the entry for sk's current SockID. Must be
// called with the write lock held.
func (t *Table) Insert(sk *socket.Socket) {
	t.sockets[sk.SockID()] = sk
}

// Delete removes id from the table. Must be called with the write lock
// held.
func (t *Table) Delete(id socket.SockID) {
	delete(t.sockets, id)
}

// Get returns the exact entry for id, or nil. Callers must hold at least
// the read lock.
func (t *Table) Get(id socket.SockID) *socket.Socket {
	return t.sockets[id]
}

// Demux implements the inbound-packet lookup policy (spec.md §4.1): first
// the exact 4-tuple, then the listener key (wildcard remote), else nil.
// Callers must hold at least the read lock.
func (t *Table) Demux(localAddr, remoteAddr socket.IPv4, localPort, remotePort uint16) *socket.Socket {
	exact := socket.SockID{LocalAddr: localAddr, RemoteAddr: remoteAddr, LocalPort: localPort, RemotePort: remotePort}
	if sk := t.sockets[exact]; sk != nil {
		return sk
	}
	return t.sockets[socket.ListenerKey(localAddr, localPort)]
}

// SelectUnusedPort draws a uniform random port in [PortRangeStart,
// PortRangeEnd) and accepts it iff no existing SockID uses it as a local
// port, retrying up to the width of the range before giving up. Callers
// must hold the write lock, since it draws from the Table's random source
// shared with RandomInitialSeq.
func (t *Table) SelectUnusedPort() (uint16, error) {
	width := PortRangeEnd - PortRangeStart
	for i := 0; i < width; i++ {
		candidate := uint16(PortRangeStart + t.rnd.Intn(width))
		inUse := false
		for id := range t.sockets {
			if id.LocalPort == candidate {
				inUse = true
				break
			}
		}
		if !inUse {
			return candidate, nil
		}
	}
	return 0, usertcperr.ErrNoFreePort
}

// RandomInitialSeq draws a uniform initial sequence number in [1, 2^31),
// the range spec.md §4.2 specifies for both the active-open ISS and a
// passively opened child's ISS. Callers must hold the write lock, since it
// shares the Table's random source with SelectUnusedPort.
func (t *Table) RandomInitialSeq() uint32 {
	return uint32(1 + t.rnd.Int63n((1<<31)-1))
}

// Snapshot returns every SockID currently in the table. Used by tests and
// by the retransmission timer's sweep to list the sockets it visits.
func (t *Table) Snapshot() []socket.SockID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]socket.SockID, 0, len(t.sockets))
	for id := range t.sockets {
		ids = append(ids, id)
	}
	return ids
}

// Close drops every entry from the table. Called once the receive loop and
// retransmission timer goroutines have stopped.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sockets = make(map[socket.SockID]*socket.Socket)
}
