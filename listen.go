package usertcp

import (
	"net"

	"github.com/pkg/errors"

	"github.com/datawire/usertcp/internal/eventbus"
	"github.com/datawire/usertcp/internal/socket"
	"github.com/datawire/usertcp/pkg/usertcperr"
)

// Listen creates a socket in the Listen state bound to localAddr:localPort.
// Inbound SYNs matching that 4-tuple's wildcard remote are handled by the
// receive loop's passive-open path; completed handshakes queue on this
// socket for Accept.
func (st *Stack) Listen(localAddr net.IP, localPort uint16) (socket.SockID, error) {
	unlock := st.table.Lock()
	defer unlock()

	addr := socket.IPv4FromNetIP(localAddr)
	id := socket.ListenerKey(addr, localPort)
	if st.table.Get(id) != nil {
		return socket.SockID{}, errors.Wrapf(usertcperr.ErrAlreadyListening, "usertcp: %s", id)
	}

	sk := socket.New(id, socket.StatusListen, st.channel)
	sk.Recv.Window = st.recvWin
	st.table.Insert(sk)
	return id, nil
}

// Accept blocks until listenerID's connected queue has at least one
// completed handshake, then returns and dequeues the oldest one.
func (st *Stack) Accept(listenerID socket.SockID) (socket.SockID, error) {
	for {
		unlock := st.table.Lock()
		listener := st.table.Get(listenerID)
		if listener == nil {
			unlock()
			return socket.SockID{}, errors.Wrapf(usertcperr.ErrNotFound, "usertcp: %s", listenerID)
		}
		if len(listener.ConnectedQueue) > 0 {
			child := listener.ConnectedQueue[0]
			listener.ConnectedQueue = listener.ConnectedQueue[1:]
			unlock()
			return child, nil
		}
		unlock()
		st.bus.Wait(listenerID, eventbus.ConnectionCompleted)
	}
}
