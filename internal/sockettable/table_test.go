package sockettable

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datawire/usertcp/internal/socket"
)

func TestDemuxPrefersExactOverListener(t *testing.T) {
	tbl := New(rand.NewSource(1))
	unlock := tbl.Lock()
	defer unlock()

	local := socket.IPv4{10, 0, 0, 1}
	remote := socket.IPv4{10, 0, 0, 2}

	listener := socket.New(socket.ListenerKey(local, 8080), socket.StatusListen, nil)
	tbl.Insert(listener)

	child := socket.New(socket.SockID{LocalAddr: local, RemoteAddr: remote, LocalPort: 8080, RemotePort: 9999}, socket.StatusEstablished, nil)
	tbl.Insert(child)

	got := tbl.Demux(local, remote, 8080, 9999)
	require.Same(t, child, got)

	got = tbl.Demux(local, socket.IPv4{10, 0, 0, 3}, 8080, 1234)
	require.Same(t, listener, got)

	got = tbl.Demux(local, remote, 9090, 9999)
	require.Nil(t, got)
}

func TestSelectUnusedPortAvoidsTaken(t *testing.T) {
	tbl := New(rand.NewSource(1))
	unlock := tbl.Lock()
	defer unlock()

	seen := map[uint16]bool{}
	for i := 0; i < 50; i++ {
		p, err := tbl.SelectUnusedPort()
		require.NoError(t, err)
		require.False(t, seen[p], "port %d reused while still free", p)
		require.GreaterOrEqual(t, p, uint16(PortRangeStart))
		require.Less(t, p, uint16(PortRangeEnd))
		seen[p] = true
		tbl.Insert(socket.New(socket.SockID{LocalPort: p}, socket.StatusListen, nil))
	}
}

func TestRandomInitialSeqInRange(t *testing.T) {
	tbl := New(rand.NewSource(1))
	unlock := tbl.Lock()
	defer unlock()
	for i := 0; i < 100; i++ {
		seq := tbl.RandomInitialSeq()
		require.GreaterOrEqual(t, seq, uint32(1))
		require.Less(t, seq, uint32(1)<<31)
	}
}

func TestSnapshotAndClose(t *testing.T) {
	tbl := New(rand.NewSource(1))
	func() {
		unlock := tbl.Lock()
		defer unlock()
		tbl.Insert(socket.New(socket.SockID{LocalPort: 1}, socket.StatusListen, nil))
		tbl.Insert(socket.New(socket.SockID{LocalPort: 2}, socket.StatusListen, nil))
	}()
	require.Len(t, tbl.Snapshot(), 2)
	tbl.Close()
	require.Empty(t, tbl.Snapshot())
}
