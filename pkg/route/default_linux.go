//go:build linux

package route

import (
	"context"
	"net"

	"github.com/datawire/dlib/dlog"
)

// DefaultResolver tries the subprocess contract first (§6's pinned
// behavior) and falls back to the netlink resolver when the `ip` binary
// is missing or fails — e.g. a minimal container with no routing
// utility installed.
type DefaultResolver struct {
	primary  Resolver
	fallback Resolver
}

// NewDefaultResolver returns a DefaultResolver wrapping
// NewSubprocessResolver and NewNetlinkResolver.
func NewDefaultResolver() *DefaultResolver {
	return &DefaultResolver{primary: NewSubprocessResolver(), fallback: NewNetlinkResolver()}
}

func (r *DefaultResolver) ResolveSource(ctx context.Context, dst net.IP) (net.IP, error) {
	ip, err := r.primary.ResolveSource(ctx, dst)
	if err == nil {
		return ip, nil
	}
	dlog.Debugf(ctx, "route: subprocess resolver failed (%v), falling back to netlink", err)
	return r.fallback.ResolveSource(ctx, dst)
}
