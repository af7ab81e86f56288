package usertcp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datawire/usertcp/pkg/rawiptest"
)

func TestValidateRejectsMissingChannel(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())
}

func TestValidateFillsDefaults(t *testing.T) {
	nw := rawiptest.NewNetwork()
	ch, err := nw.NewChannel(net.IPv4(10, 9, 9, 9))
	require.NoError(t, err)

	cfg := Config{Channel: ch}
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.RouteResolver)
	require.Equal(t, uint16(defaultReceiveWindow), cfg.ReceiveWindow)
	require.NotNil(t, cfg.RandSource)
	require.NotZero(t, cfg.SoftShutdownTimeout)
}
