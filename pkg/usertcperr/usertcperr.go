// Package usertcperr defines the sentinel error values callers match
// against with errors.Is, one per error kind in the transport's error
// taxonomy. These are stdlib errors.New values rather than a third-party
// error package's type: a set of comparable sentinels has no natural home
// in a wrapping library like pkg/errors (used at call sites to add
// context, see the root package), and the pack carries no dedicated
// sentinel-error library to replace errors.New with.
package usertcperr

import "errors"

var (
	// ErrNotFound indicates a SockID absent from the socket table.
	ErrNotFound = errors.New("usertcp: socket not found")
	// ErrNoFreePort indicates select_unused_port exhausted its retries.
	ErrNoFreePort = errors.New("usertcp: no free local port")
	// ErrTransportLimit indicates a segment's retransmission count reached
	// MaxTransmissions and was dropped.
	ErrTransportLimit = errors.New("usertcp: retransmission limit reached")
	// ErrAlreadyListening indicates Listen was called for a local address
	// and port that already has a listening socket.
	ErrAlreadyListening = errors.New("usertcp: already listening")
	// ErrParse indicates a malformed header or bad checksum. Never
	// surfaced to a user-facing call; background threads log and drop.
	ErrParse = errors.New("usertcp: malformed segment")
)
