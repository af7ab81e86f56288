package usertcp

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/datawire/usertcp/pkg/rawip"
	"github.com/datawire/usertcp/pkg/route"
)

// Constants fixed by the spec this transport implements: MSS, maximum
// retransmission attempts, the retransmission timeout, the timer's tick
// interval, and the per-segment pacing sleep in Send.
const (
	MSS                   = 1460
	MaxTransmissions      = 5
	RetransmissionTimeout = 3 * time.Second
	TimerTick             = 100 * time.Millisecond
	SendPacing            = time.Millisecond

	// defaultReceiveWindow is advertised to peers; a small multiple of
	// MSS, as spec.md §3 allows ("nominal MSS-multiple").
	defaultReceiveWindow = 8 * MSS
)

// Config bundles NewStack's dependencies and tunables, following the
// Config+Validate() shape the pack's uping tools use for their sender and
// listener configuration.
type Config struct {
	// Channel is the raw IPv4 transport. Required.
	Channel rawip.Channel

	// RouteResolver resolves the local source address for Connect.
	// Defaults to route.NewSubprocessResolver() if nil.
	RouteResolver route.Resolver

	// ReceiveWindow is advertised to peers in every outgoing segment.
	// Defaults to defaultReceiveWindow if zero.
	ReceiveWindow uint16

	// RandSource seeds port selection and initial sequence number
	// generation. Defaults to a time-seeded source if nil. Tests can
	// supply a deterministic source for reproducibility.
	RandSource rand.Source

	// SoftShutdownTimeout bounds how long Close waits for the receive
	// loop and retransmission timer to stop on their own before giving
	// up. Defaults to 2 seconds if zero.
	SoftShutdownTimeout time.Duration
}

// Validate fills in defaults and rejects a Config with no Channel.
func (c *Config) Validate() error {
	if c.Channel == nil {
		return errors.New("usertcp: Config.Channel is required")
	}
	if c.RouteResolver == nil {
		c.RouteResolver = route.NewSubprocessResolver()
	}
	if c.ReceiveWindow == 0 {
		c.ReceiveWindow = defaultReceiveWindow
	}
	if c.RandSource == nil {
		c.RandSource = rand.NewSource(time.Now().UnixNano())
	}
	if c.SoftShutdownTimeout == 0 {
		c.SoftShutdownTimeout = 2 * time.Second
	}
	return nil
}
