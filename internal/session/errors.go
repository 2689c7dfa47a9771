package session

import "errors"

var (
	// ErrNegotiationTimeout means no valid reply or channel arrived within
	// the attempt deadline. It fails only the attempt it timed.
	ErrNegotiationTimeout = errors.New("negotiation timed out")

	// ErrRequestResolved rejects a second Accept or Reject on the same
	// inbound request. Every attempt resolves exactly once.
	ErrRequestResolved = errors.New("request already accepted or rejected")

	// ErrFacadeClosed is returned by operations on a closed facade.
	ErrFacadeClosed = errors.New("session facade closed")
)
