// Package usertcp is a user-space TCP transport operating above a raw
// IPv4 channel: the socket table, the per-connection state machine, the
// segment send/receive and retransmission logic, and the concurrency
// fabric (receive loop, retransmission timer, event bus) that coordinates
// them, presented as a socket-style Listen/Accept/Connect/Send API.
//
// Congestion control, selective ACK, out-of-order reassembly, connection
// teardown past Established, urgent data, option negotiation beyond MSS,
// and IPv6 are all out of scope; see spec.md / SPEC_FULL.md for the full
// non-goal list this implementation honors.
package usertcp

import (
	"context"

	"github.com/datawire/dlib/dgroup"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/datawire/usertcp/internal/eventbus"
	"github.com/datawire/usertcp/internal/socket"
	"github.com/datawire/usertcp/internal/sockettable"
	"github.com/datawire/usertcp/pkg/rawip"
	"github.com/datawire/usertcp/pkg/route"
)

// Stack is the top-level transport instance: the socket table, the event
// bus, the raw channel, and the background goroutine group that runs the
// receive loop and the retransmission timer. Each Stack is independent;
// a process may run more than one, as the test suite does to connect two
// in-process Stacks over a rawiptest.Network.
type Stack struct {
	table   *sockettable.Table
	bus     *eventbus.Bus[socket.SockID]
	channel rawip.Channel
	routes  route.Resolver
	recvWin uint16

	group  *dgroup.Group
	cancel context.CancelFunc
}

// NewStack validates cfg, then starts the receive loop and retransmission
// timer as supervised goroutines under a dgroup.Group — the same
// goroutine-group idiom pkg/client/userd/service.go uses to run its gRPC
// server and background workers, giving this transport the explicit
// shutdown path spec.md §9 flags as missing from the reference design.
func NewStack(ctx context.Context, cfg Config) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "usertcp.NewStack")
	}

	ctx, cancel := context.WithCancel(ctx)
	st := &Stack{
		table:   sockettable.New(cfg.RandSource),
		bus:     eventbus.New[socket.SockID](),
		channel: cfg.Channel,
		routes:  cfg.RouteResolver,
		recvWin: cfg.ReceiveWindow,
		cancel:  cancel,
	}

	st.group = dgroup.NewGroup(ctx, dgroup.GroupConfig{
		SoftShutdownTimeout:  cfg.SoftShutdownTimeout,
		EnableSignalHandling: false,
		ShutdownOnNonError:   false,
	})
	st.group.Go("receive-loop", st.receiveLoop)
	st.group.Go("retransmission-timer", st.retransmissionTimer)

	return st, nil
}

// Close cancels the background goroutines, waits up to the configured
// soft-shutdown timeout for them to stop, then drains the socket table.
// Errors from the background goroutines and from closing the channel are
// aggregated into one multierror.Error, per spec.md §9's call for an
// explicit shutdown path the reference design omits.
func (st *Stack) Close() error {
	st.cancel()

	var result *multierror.Error
	if err := st.group.Wait(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "background goroutines"))
	}
	st.table.Close()
	if err := st.channel.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "closing raw channel"))
	}
	return result.ErrorOrNil()
}
