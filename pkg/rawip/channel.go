// Package rawip is the external raw-IPv4 transport collaborator
// (spec.md §1.a): packet ingress/egress below the TCP engine. It is out
// of scope for the core's correctness — the core only needs the Channel
// interface — but a real implementation is included here so the module
// runs end to end outside of tests.
package rawip

import (
	"context"
	"net"
)

// Channel is what the core's Sender and receive loop need from the raw
// IPv4 transport: send one already-serialized TCP segment to a
// destination, and receive the next inbound IPv4 packet's source,
// destination, and TCP-layer payload.
type Channel interface {
	// Send transmits segment (a complete TCP header + payload, as built
	// by pkg/tcpwire.Encode) to dst over IPv4, protocol TCP.
	Send(ctx context.Context, dst net.IP, segment []byte) error

	// Recv blocks until the next inbound IPv4 packet destined for this
	// channel's protocol arrives, then returns its source and
	// destination addresses and its TCP-layer payload (header +
	// payload, with the IPv4 header already stripped).
	Recv(ctx context.Context) (src, dst net.IP, tcpSegment []byte, err error)

	// Close releases the underlying socket.
	Close() error
}
