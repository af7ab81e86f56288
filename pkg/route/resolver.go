// Package route is the external route-lookup collaborator (spec.md §1.b):
// resolving the local source IPv4 address to use when connecting to a
// given destination. Out of scope for the core's correctness; the core
// only depends on the Resolver interface.
package route

import (
	"context"
	"net"
)

// Resolver resolves the local source IPv4 address to use when reaching
// dst.
type Resolver interface {
	ResolveSource(ctx context.Context, dst net.IP) (net.IP, error)
}
