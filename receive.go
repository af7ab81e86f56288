package usertcp

import (
	"context"
	"net"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"

	"github.com/datawire/usertcp/internal/eventbus"
	"github.com/datawire/usertcp/internal/seqnum"
	"github.com/datawire/usertcp/internal/socket"
	"github.com/datawire/usertcp/pkg/tcpwire"
)

// datagram is one inbound IPv4 packet handed up from the raw channel,
// already stripped of its IP header.
type datagram struct {
	src, dst net.IP
	segment  []byte
}

// receiveLoop is the Stack's inbound path: read a datagram from the raw
// channel, demux it against the socket table, verify its checksum, and
// dispatch it to the handler for the socket's current state. It runs as
// a supervised dgroup goroutine, the same pattern
// pkg/vif/tcp/handler.go's processPackets uses for its TUN-side receive
// loop, adapted here to read from a blocking raw-socket Recv instead of
// a channel of pre-parsed packets.
func (st *Stack) receiveLoop(ctx context.Context) (err error) {
	defer func() {
		if perr := derror.PanicToError(recover()); perr != nil {
			err = perr
		}
	}()

	datagrams := make(chan datagram)
	recvErrs := make(chan error, 1)
	go func() {
		for {
			src, dst, segment, rerr := st.channel.Recv(ctx)
			if rerr != nil {
				recvErrs <- rerr
				return
			}
			select {
			case datagrams <- datagram{src: src, dst: dst, segment: segment}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case rerr := <-recvErrs:
			if ctx.Err() != nil {
				return nil
			}
			return rerr
		case d := <-datagrams:
			st.handleDatagram(ctx, d)
		}
	}
}

// handleDatagram demuxes and dispatches one inbound segment, holding the
// table's write lock for the duration — the same single-writer-lock
// discipline spec.md §4.2 calls for, so a handler can freely mutate the
// matched socket without a second acquisition.
func (st *Stack) handleDatagram(ctx context.Context, d datagram) {
	hdr, err := tcpwire.Decode(d.segment)
	if err != nil {
		dlog.Debugf(ctx, "usertcp: dropping unparseable segment from %s: %v", d.src, err)
		return
	}
	if !tcpwire.VerifyChecksum(d.segment, d.src, d.dst) {
		dlog.Debugf(ctx, "usertcp: dropping segment from %s:%d with bad checksum", d.src, hdr.SrcPort)
		return
	}

	unlock := st.table.Lock()
	defer unlock()

	localAddr := socket.IPv4FromNetIP(d.dst)
	remoteAddr := socket.IPv4FromNetIP(d.src)
	sk := st.table.Demux(localAddr, remoteAddr, hdr.DstPort, hdr.SrcPort)
	if sk == nil {
		dlog.Tracef(ctx, "usertcp: no socket for %s:%d <- %s:%d, dropping", d.dst, hdr.DstPort, d.src, hdr.SrcPort)
		return
	}

	switch sk.Status {
	case socket.StatusListen:
		st.handleListen(ctx, sk, remoteAddr, hdr)
	case socket.StatusSynSent:
		st.handleSynSent(ctx, sk, hdr)
	case socket.StatusSynRcvd:
		st.handleSynRcvd(ctx, sk, hdr)
	case socket.StatusEstablished:
		st.handleEstablished(ctx, sk, hdr)
	}
}

// handleListen implements the passive-open path: a SYN arriving at a
// listening socket spawns a new SynRcvd child with a fresh random ISS,
// and replies SYN|ACK. Non-SYN segments, and any segment carrying ACK
// (a SYN|ACK or bare ACK has no business hitting a listener), are
// dropped.
func (st *Stack) handleListen(ctx context.Context, listener *socket.Socket, remoteAddr socket.IPv4, hdr tcpwire.Header) {
	if !hdr.Flags.Has(tcpwire.FlagSYN) || hdr.Flags.Has(tcpwire.FlagACK) {
		return
	}

	childID := socket.SockID{
		LocalAddr:  listener.LocalAddr,
		LocalPort:  listener.LocalPort,
		RemoteAddr: remoteAddr,
		RemotePort: hdr.SrcPort,
	}
	if st.table.Get(childID) != nil {
		return // retransmitted SYN for a handshake already in progress
	}

	iss := seqnum.Value(st.table.RandomInitialSeq())
	child := socket.New(childID, socket.StatusSynRcvd, st.channel)
	child.Send = socket.SendParam{InitialSeq: iss, UnackedSeq: iss, Next: iss.Add(1), Window: hdr.Window}
	child.Recv = socket.RecvParam{
		InitialSeq: seqnum.Value(hdr.Seq),
		Next:       seqnum.Value(hdr.Seq).Add(1),
		Window:     st.recvWin,
	}
	listenerID := listener.SockID()
	child.ListeningSocket = &listenerID

	st.table.Insert(child)
	st.transmit(ctx, child, tcpwire.FlagSYN|tcpwire.FlagACK, iss, child.Recv.Next, nil, true)
}

// handleSynSent implements the active-open path's second leg. A SYN|ACK
// whose ack falls in [send.unacked_seq, send.next] acknowledges at least
// our SYN attempt: if it reaches send.next, our SYN is fully acked and
// the handshake completes into Established; if it only reaches
// unacked_seq (the simultaneous-open/duplicate-SYN|ACK case), the SYN
// itself isn't acked yet and the socket instead moves to SynRcvd to wait
// for the real ack, matching the reference synsent_handler's two
// branches.
func (st *Stack) handleSynSent(ctx context.Context, sk *socket.Socket, hdr tcpwire.Header) {
	if !hdr.Flags.Has(tcpwire.FlagSYN) || !hdr.Flags.Has(tcpwire.FlagACK) {
		return
	}
	ack := seqnum.Value(hdr.Ack)
	if !seqnum.InRange(ack, sk.Send.UnackedSeq, sk.Send.Next) {
		return // doesn't acknowledge our SYN attempt at all; ignore
	}

	sk.Send.UnackedSeq = ack
	sk.Send.Window = hdr.Window
	sk.Recv.InitialSeq = seqnum.Value(hdr.Seq)
	sk.Recv.Next = seqnum.Value(hdr.Seq).Add(1)

	if ack != sk.Send.Next {
		sk.Status = socket.StatusSynRcvd
		return
	}

	sk.Status = socket.StatusEstablished
	sk.PurgeAcked()

	st.transmit(ctx, sk, tcpwire.FlagACK, sk.Send.Next, sk.Recv.Next, nil, false)
	st.bus.Publish(sk.SockID(), eventbus.ConnectionCompleted)
}

// handleSynRcvd accepts the final ACK of a passive-open handshake: once
// it falls in range, the child moves to Established and is appended to
// its listener's connected queue for Accept to drain.
func (st *Stack) handleSynRcvd(ctx context.Context, sk *socket.Socket, hdr tcpwire.Header) {
	if !hdr.Flags.Has(tcpwire.FlagACK) {
		return
	}
	ack := seqnum.Value(hdr.Ack)
	if !seqnum.InRange(ack, sk.Send.UnackedSeq, sk.Send.Next) {
		return
	}

	sk.Send.UnackedSeq = ack
	sk.Status = socket.StatusEstablished
	sk.PurgeAcked()

	if sk.ListeningSocket != nil {
		if listener := st.table.Get(*sk.ListeningSocket); listener != nil {
			listener.ConnectedQueue = append(listener.ConnectedQueue, sk.SockID())
			st.bus.Publish(listener.SockID(), eventbus.ConnectionCompleted)
		}
	}
	_ = ctx
}

// handleEstablished advances SND.UNA on a valid ACK, purges the
// retransmission queue up to it, and publishes Acked if anything was
// purged. Acks below the current window or ahead of what we've sent are
// silently dropped, matching spec.md §4.2's edge cases for stale and
// future segments. Send.Window is never re-synced to hdr.Window here: it
// is replenished exclusively through PurgeAcked's bookkeeping, so it
// always reflects exactly the payload bytes acked so far, per the
// invariant spec.md §3 pins.
func (st *Stack) handleEstablished(ctx context.Context, sk *socket.Socket, hdr tcpwire.Header) {
	ack := seqnum.Value(hdr.Ack)
	if hdr.Flags.Has(tcpwire.FlagACK) && !seqnum.LessThan(ack, sk.Send.UnackedSeq) && !seqnum.LessThan(sk.Send.Next, ack) {
		sk.Send.UnackedSeq = ack
		if purged := sk.PurgeAcked(); purged > 0 {
			st.bus.Publish(sk.SockID(), eventbus.Acked)
		}
	}
	_ = ctx
}
