// Package socket holds the per-connection state machine: SockID, Socket,
// send/receive sequence parameters, and the retransmission queue. It knows
// nothing about the socket table or the event bus; those compose Sockets,
// a Socket never reaches back into them.
package socket

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/datawire/usertcp/internal/seqnum"
)

// IPv4 is a comparable 4-byte IPv4 address, used as part of the SockID map
// key. net.IP is a slice and cannot be a map key directly.
type IPv4 [4]byte

// Undetermined is the sentinel IPv4 used for a listening socket's remote
// address.
var Undetermined = IPv4{}

// UndeterminedPort is the sentinel port used for a listening socket's
// remote port.
const UndeterminedPort uint16 = 0

// IPv4FromNetIP converts a net.IP (4 or 16 byte form, as long as it holds
// an IPv4 address) into the comparable IPv4 type.
func IPv4FromNetIP(ip net.IP) IPv4 {
	var a IPv4
	v4 := ip.To4()
	copy(a[:], v4)
	return a
}

// NetIP converts back to the net.IP form raw channels and the header codec
// expect.
func (a IPv4) NetIP() net.IP { return net.IP(a[:]) }

func (a IPv4) String() string { return a.NetIP().String() }

// SockID is the 4-tuple key identifying a socket table entry.
type SockID struct {
	LocalAddr  IPv4
	RemoteAddr IPv4
	LocalPort  uint16
	RemotePort uint16
}

func (id SockID) String() string {
	p := strconv.Itoa
	return id.LocalAddr.String() + ":" + p(int(id.LocalPort)) + "<->" + id.RemoteAddr.String() + ":" + p(int(id.RemotePort))
}

// ListenerKey returns the SockID a listening socket is stored under for a
// given local address and port.
func ListenerKey(localAddr IPv4, localPort uint16) SockID {
	return SockID{LocalAddr: localAddr, LocalPort: localPort, RemoteAddr: Undetermined, RemotePort: UndeterminedPort}
}

// Status is the connection's position in the (truncated) TCP state
// machine this transport implements.
type Status int

const (
	StatusListen Status = iota
	StatusSynSent
	StatusSynRcvd
	StatusEstablished
)

func (s Status) String() string {
	switch s {
	case StatusListen:
		return "LISTEN"
	case StatusSynSent:
		return "SYN-SENT"
	case StatusSynRcvd:
		return "SYN-RCVD"
	case StatusEstablished:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}

// SendParam is the RFC 793 send-side sequence state: SND.ISS/SND.UNA/SND.NXT
// plus the peer's last-advertised receive window (remaining send credit).
type SendParam struct {
	InitialSeq seqnum.Value
	UnackedSeq seqnum.Value
	Next       seqnum.Value
	Window     uint16
}

// RecvParam is the RFC 793 receive-side sequence state: RCV.IRS/RCV.NXT,
// plus the window this socket advertises to its peer.
type RecvParam struct {
	InitialSeq seqnum.Value
	Next       seqnum.Value
	Window     uint16
}

// RetransmissionEntry is one outstanding, unacknowledged segment.
type RetransmissionEntry struct {
	Seq                    seqnum.Value
	Segment                []byte // the fully serialized packet, ready to resend as-is
	PayloadLen             int
	TransmissionCount      int
	LatestTransmissionTime time.Time
}

// Sender transmits one already-serialized TCP segment to a remote IPv4
// peer. Implementations live in package rawip (real) and rawiptest (test
// double); Socket only depends on this narrow interface.
type Sender interface {
	Send(ctx context.Context, dst net.IP, segment []byte) error
}

// Socket is the full per-connection record the table stores, keyed by
// SockID.
type Socket struct {
	LocalAddr  IPv4
	RemoteAddr IPv4
	LocalPort  uint16
	RemotePort uint16

	Status Status

	Send SendParam
	Recv RecvParam

	// RetransmissionQueue is ordered by ascending sequence number; the
	// head is the oldest unacknowledged segment.
	RetransmissionQueue []*RetransmissionEntry

	// ConnectedQueue holds the SockIDs of children whose handshake has
	// completed, awaiting Accept. Only meaningful for a listening socket.
	ConnectedQueue []SockID

	// ListeningSocket is the SockID of the listener that spawned this
	// socket via the passive-open path, or nil for an active-open or
	// listening socket itself.
	ListeningSocket *SockID

	Sender Sender

	// TraceID and CreatedAt are log-correlation fields only; no
	// invariant or wire behavior depends on either.
	TraceID   uuid.UUID
	CreatedAt time.Time
}

// New constructs a Socket keyed by id, with status s, a fresh trace ID,
// and no queued segments.
func New(id SockID, s Status, sender Sender) *Socket {
	return &Socket{
		LocalAddr:  id.LocalAddr,
		RemoteAddr: id.RemoteAddr,
		LocalPort:  id.LocalPort,
		RemotePort: id.RemotePort,
		Status:     s,
		Sender:     sender,
		TraceID:    uuid.New(),
		CreatedAt:  time.Now(),
	}
}

// SockID returns the key this socket is currently stored under.
func (sk *Socket) SockID() SockID {
	return SockID{
		LocalAddr:  sk.LocalAddr,
		RemoteAddr: sk.RemoteAddr,
		LocalPort:  sk.LocalPort,
		RemotePort: sk.RemotePort,
	}
}

// EnqueueRetransmission appends a newly sent segment to the tail of the
// retransmission queue, unless it is a bare ACK with no payload and no
// SYN/FIN — there is nothing to reliably deliver in that case, so nothing
// is queued for it.
func (sk *Socket) EnqueueRetransmission(seq seqnum.Value, segment []byte, payloadLen int, carriesSYNorFIN bool, now time.Time) {
	if payloadLen == 0 && !carriesSYNorFIN {
		return
	}
	sk.RetransmissionQueue = append(sk.RetransmissionQueue, &RetransmissionEntry{
		Seq:                    seq,
		Segment:                segment,
		PayloadLen:             payloadLen,
		TransmissionCount:      1,
		LatestTransmissionTime: now,
	})
}

// PurgeAcked drops every head-of-queue segment whose sequence number is
// strictly less than the current SND.UNA, replenishing the send window by
// each purged segment's payload length. It returns the number of segments
// purged, which the caller uses to decide whether to publish an Acked
// event. This is the one ack-purge routine the Established handler and the
// retransmission timer both call, per the spec's single-routine design.
func (sk *Socket) PurgeAcked() int {
	purged := 0
	for len(sk.RetransmissionQueue) > 0 {
		head := sk.RetransmissionQueue[0]
		if !seqnum.LessThan(head.Seq, sk.Send.UnackedSeq) {
			break
		}
		sk.RetransmissionQueue = sk.RetransmissionQueue[1:]
		sk.Send.Window = clampedAdd(sk.Send.Window, head.PayloadLen)
		purged++
	}
	return purged
}

func clampedAdd(window uint16, n int) uint16 {
	v := int(window) + n
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// DeductWindow lowers the advertised peer window by n, clamped at zero so
// it never underflows.
func (sk *Socket) DeductWindow(n int) {
	if int(sk.Send.Window) <= n {
		sk.Send.Window = 0
		return
	}
	sk.Send.Window -= uint16(n)
}
