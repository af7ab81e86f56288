package usertcp

import (
	"context"
	"time"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"

	"github.com/datawire/usertcp/internal/eventbus"
)

// retransmissionTimer walks every socket's retransmission queue once per
// TimerTick, resending the head segment once it has sat unacknowledged
// past RetransmissionTimeout (later segments wait behind it) and dropping
// it with a logged error (segment-level only, the socket itself is left
// in the table and the caller is not told) once it has hit
// MaxTransmissions — the same ticker-driven sweep
// pkg/vif/tcp/handler.go's processResends runs, adapted from its
// reversed linked-list walk to a slice head-check, since this socket
// table's retransmission queue is always ascending by sequence number.
func (st *Stack) retransmissionTimer(ctx context.Context) (err error) {
	defer func() {
		if perr := derror.PanicToError(recover()); perr != nil {
			err = perr
		}
	}()

	ticker := time.NewTicker(TimerTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			st.sweepRetransmissions(ctx, now)
		}
	}
}

func (st *Stack) sweepRetransmissions(ctx context.Context, now time.Time) {
	ids := st.table.Snapshot()

	unlock := st.table.Lock()
	defer unlock()

	for _, id := range ids {
		sk := st.table.Get(id)
		if sk == nil {
			continue
		}
		if purged := sk.PurgeAcked(); purged > 0 {
			st.bus.Publish(id, eventbus.Acked)
		}
		if len(sk.RetransmissionQueue) == 0 {
			continue
		}

		head := sk.RetransmissionQueue[0]
		if now.Sub(head.LatestTransmissionTime) < RetransmissionTimeout {
			continue
		}

		if head.TransmissionCount >= MaxTransmissions {
			dlog.Errorf(ctx, "usertcp: %s: segment at seq %d dropped after %d transmissions", id, head.Seq, head.TransmissionCount)
			sk.RetransmissionQueue = sk.RetransmissionQueue[1:]
			continue
		}

		if err := sk.Sender.Send(ctx, sk.RemoteAddr.NetIP(), head.Segment); err != nil {
			dlog.Errorf(ctx, "usertcp: %s: resending seq %d: %v", id, head.Seq, err)
		}
		head.TransmissionCount++
		head.LatestTransmissionTime = now
	}
}
