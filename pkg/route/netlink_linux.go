//go:build linux

package route

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// NetlinkResolver resolves a source address via an RTM_GETROUTE netlink
// request instead of shelling out to the `ip` binary — useful in minimal
// containers that carry no routing utility. It is the direct
// netlink/ioctl replacement spec.md §6's design notes call for, built on
// the same golang.org/x/sys/unix package the raw-socket layer already
// depends on.
type NetlinkResolver struct{}

// NewNetlinkResolver returns a NetlinkResolver.
func NewNetlinkResolver() *NetlinkResolver { return &NetlinkResolver{} }

func (r *NetlinkResolver) ResolveSource(ctx context.Context, dst net.IP) (net.IP, error) {
	dst4 := dst.To4()
	if dst4 == nil {
		return nil, fmt.Errorf("route: destination %s is not IPv4", dst)
	}

	sock, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("route: opening netlink socket: %w", err)
	}
	defer unix.Close(sock)

	req := newRouteGetRequest(dst4)
	if err := unix.Sendto(sock, req, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		return nil, fmt.Errorf("route: sending RTM_GETROUTE: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := unix.Read(sock, buf)
	if err != nil {
		return nil, fmt.Errorf("route: reading RTM_GETROUTE reply: %w", err)
	}

	msgs, err := unix.ParseNetlinkMessage(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("route: parsing netlink reply: %w", err)
	}
	return parsePrefSrc(msgs)
}

// newRouteGetRequest builds a minimal RTM_GETROUTE request carrying only
// the RTA_DST attribute, which is all a preferred-source lookup needs.
// Netlink headers are host byte order; this assumes little-endian, true
// of every platform this transport targets (amd64, arm64).
func newRouteGetRequest(dst4 net.IP) []byte {
	const rtMsgLen = 12 // sizeof(struct rtmsg)
	hdrLen := unix.NLMSG_HDRLEN
	attrLen := 4 + 4 // RTA_DST header + 4-byte IPv4 address
	total := hdrLen + rtMsgLen + attrLen

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))          // nlmsg_len
	binary.LittleEndian.PutUint16(buf[4:6], unix.RTM_GETROUTE)       // nlmsg_type
	binary.LittleEndian.PutUint16(buf[6:8], unix.NLM_F_REQUEST)      // nlmsg_flags
	binary.LittleEndian.PutUint32(buf[8:12], 1)                      // nlmsg_seq
	binary.LittleEndian.PutUint32(buf[12:16], 0)                     // nlmsg_pid

	rtmsg := buf[hdrLen : hdrLen+rtMsgLen]
	rtmsg[0] = unix.AF_INET // rtm_family

	attr := buf[hdrLen+rtMsgLen:]
	binary.LittleEndian.PutUint16(attr[0:2], uint16(attrLen)) // rta_len
	binary.LittleEndian.PutUint16(attr[2:4], unix.RTA_DST)    // rta_type
	copy(attr[4:8], dst4)
	return buf
}

func parsePrefSrc(msgs []unix.NetlinkMessage) (net.IP, error) {
	for _, m := range msgs {
		if m.Header.Type != unix.RTM_NEWROUTE {
			continue
		}
		const rtMsgLen = 12
		if len(m.Data) < rtMsgLen {
			continue
		}
		attrs, err := unix.ParseNetlinkRouteAttr(&m)
		if err != nil {
			continue
		}
		for _, a := range attrs {
			if a.Attr.Type == unix.RTA_PREFSRC && len(a.Value) == 4 {
				return net.IP(a.Value), nil
			}
		}
	}
	return nil, fmt.Errorf("route: no RTA_PREFSRC in netlink reply")
}
