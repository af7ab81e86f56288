// Package eventbus implements the single-slot wakeup mechanism background
// threads use to signal user threads blocked in accept/connect/send.
//
// The bus holds at most one pending event. Publish overwrites whatever is
// there and wakes every waiter; a publisher can therefore stomp on an event
// no one has observed yet, and a waiter can be woken for someone else's
// event. This is tolerated rather than fixed because every condition a
// caller waits for (ConnectionCompleted, Acked) has an idempotent follow-up
// it re-checks on each wake: sequence numbers only advance, accept queues
// only grow. A lost event causes an extra spin through the wait loop, not a
// hang. A per-socket, per-kind wait queue would close this gap at the cost
// of more lock machinery; that tradeoff is left to a future revision.
package eventbus

import "sync"

// Kind identifies the reason a background thread woke a waiter.
type Kind int

const (
	// ConnectionCompleted fires on a listener's SockID once a passively
	// opened child reaches Established, and on an active-open SockID once
	// its own handshake completes.
	ConnectionCompleted Kind = iota
	// Acked fires on a SockID whenever its retransmission queue loses at
	// least one segment to an advancing ACK.
	Acked
	// DataArrived is reserved for a future receive path; nothing publishes
	// it yet.
	DataArrived
)

func (k Kind) String() string {
	switch k {
	case ConnectionCompleted:
		return "ConnectionCompleted"
	case Acked:
		return "Acked"
	case DataArrived:
		return "DataArrived"
	default:
		return "unknown"
	}
}

// Bus is a single-slot, condition-variable backed event signal shared by
// every socket and every event kind.
type Bus[ID comparable] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *event[ID]
}

type event[ID comparable] struct {
	sockID ID
	kind   Kind
}

// New constructs an empty Bus.
func New[ID comparable]() *Bus[ID] {
	b := &Bus[ID]{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish overwrites the pending slot with (id, kind) and wakes every
// waiter. Must not be called while holding the socket table lock's writer
// half and the bus lock at once in the other order — callers release the
// table lock before publishing, or publish while still holding it as long
// as they never acquire the table lock from inside Wait.
func (b *Bus[ID]) Publish(id ID, kind Kind) {
	b.mu.Lock()
	b.pending = &event[ID]{sockID: id, kind: kind}
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Wait blocks until an event matching (id, kind) is published, then
// consumes it. Callers must not hold the socket table lock while calling
// Wait; doing so would deadlock the receive loop and timer, which need the
// table lock to make progress and publish the awaited event.
func (b *Bus[ID]) Wait(id ID, kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.pending != nil && b.pending.sockID == id && b.pending.kind == kind {
			b.pending = nil
			return
		}
		b.cond.Wait()
	}
}
