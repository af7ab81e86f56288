// Package rawiptest is the "mocked transport channel" spec.md §8's
// end-to-end scenarios call for: an in-process virtual IPv4 network that
// delivers segments sent by one rawip.Channel straight to the inbox of
// whichever other channel registered the destination address, with no
// real socket or kernel involved.
package rawiptest

import (
	"context"
	"fmt"
	"net"
	"sync"
)

type datagram struct {
	src, dst net.IP
	segment  []byte
}

// Network is a shared switch: every Channel created on the same Network
// can reach every other one by IPv4 address.
type Network struct {
	mu    sync.Mutex
	boxes map[string]chan datagram
}

// NewNetwork constructs an empty virtual network.
func NewNetwork() *Network {
	return &Network{boxes: make(map[string]chan datagram)}
}

// Channel is a Network-backed rawip.Channel standing in for one host's
// raw IPv4 socket.
type Channel struct {
	net    *Network
	self   net.IP
	inbox  chan datagram
	closed chan struct{}
}

// NewChannel registers selfIP on net and returns the Channel representing
// that host. Only one Channel per address may be registered at a time.
func (n *Network) NewChannel(selfIP net.IP) (*Channel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := selfIP.String()
	if _, exists := n.boxes[key]; exists {
		return nil, fmt.Errorf("rawiptest: address %s already registered", key)
	}
	inbox := make(chan datagram, 256)
	n.boxes[key] = inbox
	return &Channel{net: n, self: selfIP, inbox: inbox, closed: make(chan struct{})}, nil
}

// Send delivers segment to dst's inbox if dst is registered on the same
// Network, or silently drops it otherwise (an unreachable destination is
// exactly what a real raw socket would produce: nothing arrives).
func (c *Channel) Send(ctx context.Context, dst net.IP, segment []byte) error {
	c.net.mu.Lock()
	inbox, ok := c.net.boxes[dst.String()]
	c.net.mu.Unlock()
	if !ok {
		return nil
	}
	cp := append([]byte(nil), segment...)
	select {
	case inbox <- datagram{src: c.self, dst: dst, segment: cp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("rawiptest: channel for %s is closed", c.self)
	}
}

// Recv blocks until a datagram addressed to this channel's host arrives.
func (c *Channel) Recv(ctx context.Context) (src, dst net.IP, tcpSegment []byte, err error) {
	select {
	case d := <-c.inbox:
		return d.src, d.dst, d.segment, nil
	case <-ctx.Done():
		return nil, nil, nil, ctx.Err()
	case <-c.closed:
		return nil, nil, nil, fmt.Errorf("rawiptest: channel for %s is closed", c.self)
	}
}

// Close unregisters the channel and unblocks any pending Recv/Send.
func (c *Channel) Close() error {
	c.net.mu.Lock()
	delete(c.net.boxes, c.self.String())
	c.net.mu.Unlock()
	close(c.closed)
	return nil
}
