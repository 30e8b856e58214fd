package connsup

import "sync/atomic"

// state is the value a Latch publishes: the current connection id paired
// with the handle it names. handle is nil in the initial state (spec §4.2:
// "Initial state: handle = none, CID = 0").
type state struct {
	cid    uint64
	handle Conn
}

// Latch is the single-writer/many-reader cell of spec §4.2/§9: the
// supervisor is the only writer, and every reader loads the whole pair
// atomically so a read never observes a CID paired with a stale handle or
// vice versa (the store-release/load-acquire requirement of spec §9 is
// satisfied by atomic.Pointer's happens-before guarantee).
type Latch struct {
	cell atomic.Pointer[state]
}

// NewLatch returns a latch in the spec's initial state.
func NewLatch() *Latch {
	l := &Latch{}
	l.cell.Store(&state{})
	return l
}

// Current returns the connection handle currently installed and its CID.
// handle is nil until the supervisor installs the first connection.
// Readers must use the returned handle for exactly one operation and never
// cache it across a suspension point (spec §4.2, "Contract to
// publishers/consumers").
func (l *Latch) Current() (cid uint64, handle Conn) {
	s := l.cell.Load()
	return s.cid, s.handle
}

// store installs a new (cid, handle) pair. Only the supervisor calls this.
func (l *Latch) store(cid uint64, handle Conn) {
	l.cell.Store(&state{cid: cid, handle: handle})
}
