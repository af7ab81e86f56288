package usertcp

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/datawire/usertcp/internal/eventbus"
	"github.com/datawire/usertcp/internal/seqnum"
	"github.com/datawire/usertcp/internal/socket"
	"github.com/datawire/usertcp/pkg/tcpwire"
)

// Connect actively opens a connection to remoteAddr:remotePort: it
// resolves the local source address via the configured route.Resolver,
// draws an ephemeral local port and a random initial sequence number,
// sends the opening SYN, and blocks until the handshake completes or ctx
// is canceled.
func (st *Stack) Connect(ctx context.Context, remoteAddr net.IP, remotePort uint16) (socket.SockID, error) {
	localIP, err := st.routes.ResolveSource(ctx, remoteAddr)
	if err != nil {
		return socket.SockID{}, errors.Wrap(err, "usertcp.Connect: resolving source address")
	}

	unlock := st.table.Lock()
	localPort, err := st.table.SelectUnusedPort()
	if err != nil {
		unlock()
		return socket.SockID{}, errors.Wrap(err, "usertcp.Connect")
	}
	iss := seqnum.Value(st.table.RandomInitialSeq())

	id := socket.SockID{
		LocalAddr:  socket.IPv4FromNetIP(localIP),
		LocalPort:  localPort,
		RemoteAddr: socket.IPv4FromNetIP(remoteAddr),
		RemotePort: remotePort,
	}
	sk := socket.New(id, socket.StatusSynSent, st.channel)
	sk.Send = socket.SendParam{InitialSeq: iss, UnackedSeq: iss, Next: iss.Add(1)}
	sk.Recv.Window = st.recvWin
	st.table.Insert(sk)
	st.transmit(ctx, sk, tcpwire.FlagSYN, iss, 0, nil, true)
	unlock()

	if err := st.waitForEvent(ctx, id, eventbus.ConnectionCompleted); err != nil {
		return socket.SockID{}, err
	}
	return id, nil
}
