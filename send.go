package usertcp

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/datawire/usertcp/internal/eventbus"
	"github.com/datawire/usertcp/internal/seqnum"
	"github.com/datawire/usertcp/internal/socket"
	"github.com/datawire/usertcp/pkg/tcpwire"
	"github.com/datawire/usertcp/pkg/usertcperr"
)

// Send writes buffer to id's peer, splitting it into MSS-sized segments
// and pacing each send by SendPacing. When the peer's advertised window
// is exhausted, Send blocks on an Acked event before continuing, per
// spec.md §4.4's window-limited segmentation contract.
func (st *Stack) Send(ctx context.Context, id socket.SockID, buffer []byte) error {
	for len(buffer) > 0 {
		unlock := st.table.Lock()
		sk := st.table.Get(id)
		if sk == nil {
			unlock()
			return errors.Wrapf(usertcperr.ErrNotFound, "usertcp.Send: %s", id)
		}
		if sk.Status != socket.StatusEstablished {
			unlock()
			return errors.Errorf("usertcp.Send: %s is not established", id)
		}

		available := int(sk.Send.Window)
		if available == 0 {
			unlock()
			if err := st.waitForEvent(ctx, id, eventbus.Acked); err != nil {
				return err
			}
			continue
		}

		chunk := MSS
		if chunk > available {
			chunk = available
		}
		if chunk > len(buffer) {
			chunk = len(buffer)
		}

		payload := buffer[:chunk]
		seq := sk.Send.Next
		st.transmit(ctx, sk, tcpwire.FlagACK, seq, sk.Recv.Next, payload, false)
		sk.Send.Next = sk.Send.Next.Add(seqnum.Size(chunk))
		sk.DeductWindow(chunk)
		unlock()

		buffer = buffer[chunk:]
		if len(buffer) > 0 {
			time.Sleep(SendPacing)
		}
	}
	return nil
}

// waitForEvent blocks on the bus for (id, kind) or returns early if ctx
// is canceled first. The spawned goroutine leaks until the event
// eventually fires if ctx cancels first — the same tradeoff the
// single-slot bus itself accepts, documented in internal/eventbus.
func (st *Stack) waitForEvent(ctx context.Context, id socket.SockID, kind eventbus.Kind) error {
	done := make(chan struct{})
	go func() {
		st.bus.Wait(id, kind)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
