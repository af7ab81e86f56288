package usertcp

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/datawire/usertcp/internal/seqnum"
	"github.com/datawire/usertcp/internal/socket"
	"github.com/datawire/usertcp/pkg/tcpwire"
)

// transmit builds and sends one segment for sk, then hands it to
// socket.EnqueueRetransmission, which queues it unless it is a bare ACK
// carrying no payload and no SYN/FIN. A send that fails at the raw-socket
// layer is logged and still enqueued, so the timer retries it like any
// other loss; a segment that fails to encode is logged and not enqueued.
func (st *Stack) transmit(ctx context.Context, sk *socket.Socket, flags tcpwire.Flags, seq, ack seqnum.Value, payload []byte, carriesSYNorFIN bool) {
	seg := tcpwire.Segment{
		SrcIP:   sk.LocalAddr.NetIP(),
		DstIP:   sk.RemoteAddr.NetIP(),
		SrcPort: sk.LocalPort,
		DstPort: sk.RemotePort,
		Seq:     uint32(seq),
		Ack:     uint32(ack),
		Flags:   flags,
		Window:  sk.Recv.Window,
		Payload: payload,
	}
	wire, err := tcpwire.Encode(seg)
	if err != nil {
		dlog.Errorf(ctx, "usertcp: encoding segment for %s: %v", sk.SockID(), err)
		return
	}
	if err := sk.Sender.Send(ctx, sk.RemoteAddr.NetIP(), wire); err != nil {
		dlog.Errorf(ctx, "usertcp: sending segment for %s: %v", sk.SockID(), err)
	}
	sk.EnqueueRetransmission(seq, wire, len(payload), carriesSYNorFIN, time.Now())
}
