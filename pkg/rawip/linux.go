//go:build linux

package rawip

import (
	"context"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/sys/unix"
)

// LinuxChannel is a Channel backed by an AF_INET/SOCK_RAW/IPPROTO_TCP
// socket, the same raw-socket shape `tools/uping/pkg/uping` uses for
// IPPROTO_ICMP: one fd, Sendto for egress, Recvfrom for ingress, no
// IP_HDRINCL — the kernel fills in the IPv4 header on send, and hands us
// the full IPv4 packet (header included) on receive.
type LinuxChannel struct {
	fd int
}

// NewLinuxChannel opens a raw IPv4/TCP socket. Requires CAP_NET_RAW (or
// root).
func NewLinuxChannel() (*LinuxChannel, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("opening raw IPv4/TCP socket: %w", err)
	}
	return &LinuxChannel{fd: fd}, nil
}

func (c *LinuxChannel) Send(_ context.Context, dst net.IP, segment []byte) error {
	dst4 := dst.To4()
	if dst4 == nil {
		return fmt.Errorf("rawip: destination %s is not IPv4", dst)
	}
	addr := unix.SockaddrInet4{}
	copy(addr.Addr[:], dst4)
	return unix.Sendto(c.fd, segment, 0, &addr)
}

// maxIPv4PacketSize is the largest IPv4 packet we will read: the maximum
// IPv4 total length (header included), generous enough for any segment
// this transport builds (MSS 1460 plus headers).
const maxIPv4PacketSize = 65535

func (c *LinuxChannel) Recv(_ context.Context) (src, dst net.IP, tcpSegment []byte, err error) {
	buf := make([]byte, maxIPv4PacketSize)
	n, _, err := unix.Recvfrom(c.fd, buf, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading from raw IPv4/TCP socket: %w", err)
	}

	ip := &layers.IPv4{}
	if err := ip.DecodeFromBytes(buf[:n], gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, nil, fmt.Errorf("rawip: parsing IPv4 header: %w", err)
	}
	return ip.SrcIP, ip.DstIP, ip.Payload, nil
}

func (c *LinuxChannel) Close() error {
	return unix.Close(c.fd)
}
