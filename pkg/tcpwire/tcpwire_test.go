package tcpwire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := net.IPv4(10, 0, 0, 1)
	dst := net.IPv4(10, 0, 0, 2)
	seg := Segment{
		SrcIP:   src,
		DstIP:   dst,
		SrcPort: 40001,
		DstPort: 8080,
		Seq:     123456,
		Ack:     654321,
		Flags:   FlagSYN | FlagACK,
		Window:  4096,
		Payload: []byte("hello"),
	}

	b, err := Encode(seg)
	require.NoError(t, err)

	hdr, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, seg.SrcPort, hdr.SrcPort)
	require.Equal(t, seg.DstPort, hdr.DstPort)
	require.Equal(t, seg.Seq, hdr.Seq)
	require.Equal(t, seg.Ack, hdr.Ack)
	require.True(t, hdr.Flags.Has(FlagSYN))
	require.True(t, hdr.Flags.Has(FlagACK))
	require.False(t, hdr.Flags.Has(FlagFIN))
	require.Equal(t, seg.Window, hdr.Window)
	require.Equal(t, seg.Payload, hdr.Payload)
}

func TestChecksumVerifiesOnEncodedSegment(t *testing.T) {
	src := net.IPv4(192, 168, 1, 1)
	dst := net.IPv4(192, 168, 1, 2)
	b, err := Encode(Segment{
		SrcIP: src, DstIP: dst,
		SrcPort: 1, DstPort: 2,
		Seq: 1, Ack: 0, Flags: FlagSYN, Window: 1024,
	})
	require.NoError(t, err)
	require.True(t, VerifyChecksum(b, src, dst))
}

func TestChecksumRejectsTamperedSegment(t *testing.T) {
	src := net.IPv4(192, 168, 1, 1)
	dst := net.IPv4(192, 168, 1, 2)
	b, err := Encode(Segment{
		SrcIP: src, DstIP: dst,
		SrcPort: 1, DstPort: 2,
		Seq: 1, Ack: 0, Flags: FlagACK, Window: 1024,
		Payload: []byte("payload"),
	})
	require.NoError(t, err)
	tampered := append([]byte(nil), b...)
	tampered[len(tampered)-1] ^= 0xFF // flip last payload byte
	require.False(t, VerifyChecksum(tampered, src, dst))
}

func TestFlagsString(t *testing.T) {
	require.Equal(t, "SA", (FlagSYN | FlagACK).String())
	require.Equal(t, ".", Flags(0).String())
	require.Equal(t, "R", FlagRST.String())
}
