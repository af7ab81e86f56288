// Package tcpwire is the header codec: it turns segment fields into bytes
// and back, computing and verifying the RFC 793 pseudo-header checksum.
// It is a pure function over its inputs — no socket, no table, no state —
// built on gopacket/layers.TCP so the one-complement pseudo-header sum
// lives in a vetted library instead of hand-rolled arithmetic.
package tcpwire

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Flags is the small subset of TCP control bits this transport uses. FIN
// and RST are represented so a caller can recognize them on decode, even
// though the core state machine has no handler for them yet.
type Flags uint8

const (
	FlagSYN Flags = 1 << iota
	FlagACK
	FlagFIN
	FlagRST
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

func (f Flags) String() string {
	s := ""
	for _, b := range []struct {
		bit Flags
		ch  byte
	}{{FlagSYN, 'S'}, {FlagACK, 'A'}, {FlagFIN, 'F'}, {FlagRST, 'R'}} {
		if f.Has(b.bit) {
			s += string(b.ch)
		}
	}
	if s == "" {
		return "."
	}
	return s
}

// Header is the decoded, library-agnostic view of a TCP segment: the
// fields the socket/table/handler packages need, without leaking
// gopacket's types into them.
type Header struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   Flags
	Window  uint16
	Payload []byte
}

// Segment describes the fields needed to build a new outgoing segment.
type Segment struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   Flags
	Window  uint16
	Payload []byte
}

// Encode serializes seg into a complete TCP segment (header + payload,
// checksum computed over the IPv4 pseudo-header) ready to hand to a raw
// IPv4 channel addressed to seg.DstIP.
func Encode(seg Segment) ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    seg.SrcIP.To4(),
		DstIP:    seg.DstIP.To4(),
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(seg.SrcPort),
		DstPort: layers.TCPPort(seg.DstPort),
		Seq:     seg.Seq,
		Ack:     seg.Ack,
		SYN:     seg.Flags.Has(FlagSYN),
		ACK:     seg.Flags.Has(FlagACK),
		FIN:     seg.Flags.Has(FlagFIN),
		RST:     seg.Flags.Has(FlagRST),
		Window:  seg.Window,
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	payload := gopacket.Payload(seg.Payload)
	if err := gopacket.SerializeLayers(buf, opts, tcp, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a raw TCP segment (as delivered by the raw IPv4 channel,
// i.e. without an IP header) into a Header. It does not verify the
// checksum; callers verify separately with VerifyChecksum, following the
// same split the receive loop's spec makes between parsing and checksum
// validation.
func Decode(b []byte) (Header, error) {
	tcp := &layers.TCP{}
	if err := tcp.DecodeFromBytes(b, gopacket.NilDecodeFeedback); err != nil {
		return Header{}, err
	}
	var flags Flags
	if tcp.SYN {
		flags |= FlagSYN
	}
	if tcp.ACK {
		flags |= FlagACK
	}
	if tcp.FIN {
		flags |= FlagFIN
	}
	if tcp.RST {
		flags |= FlagRST
	}
	return Header{
		SrcPort: uint16(tcp.SrcPort),
		DstPort: uint16(tcp.DstPort),
		Seq:     tcp.Seq,
		Ack:     tcp.Ack,
		Flags:   flags,
		Window:  tcp.Window,
		Payload: tcp.Payload,
	}, nil
}

// VerifyChecksum recomputes the pseudo-header checksum of the TCP segment
// b (as seen arriving from srcIP to dstIP) and reports whether it matches
// the checksum carried on the wire.
func VerifyChecksum(b []byte, srcIP, dstIP net.IP) bool {
	tcp := &layers.TCP{}
	if err := tcp.DecodeFromBytes(b, gopacket.NilDecodeFeedback); err != nil {
		return false
	}
	want := tcp.Checksum

	ip := &layers.IPv4{SrcIP: srcIP.To4(), DstIP: dstIP.To4(), Protocol: layers.IPProtocolTCP}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, tcp, gopacket.Payload(tcp.Payload)); err != nil {
		return false
	}
	return tcp.Checksum == want
}
