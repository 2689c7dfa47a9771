// Package relay models the append-only public event log used as the
// out-of-band rendezvous. The relay is a pass-through: it accepts a
// recipient address and opaque bytes and re-emits both as a publicly
// observable event stamped with the authentic sender address. It performs
// no validation of content and keeps no session state.
//
// Two implementations are provided: MemoryRelay for tests and
// same-process demos, and a TCP Server/Client pair with a durable event
// log for multi-process use.
package relay

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNullRecipient rejects submissions addressed to the zero address.
	ErrNullRecipient = errors.New("relay: null recipient")

	// ErrEmptyPayload rejects submissions with no payload.
	ErrEmptyPayload = errors.New("relay: empty payload")

	// ErrClosed is returned once the relay endpoint has shut down.
	ErrClosed = errors.New("relay: closed")
)

// Event is one observable record on the log. Sender is authentic: it is
// the account that signed the submission, not a claim in the payload.
type Event struct {
	Seq       uint64
	Sender    common.Address
	Recipient common.Address
	Payload   []byte
}

// Filter selects events by either address field. A nil field matches any
// value.
type Filter struct {
	Sender    *common.Address
	Recipient *common.Address
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	if f.Sender != nil && *f.Sender != ev.Sender {
		return false
	}
	if f.Recipient != nil && *f.Recipient != ev.Recipient {
		return false
	}
	return true
}

// Subscription is a live registration on the event stream.
type Subscription interface {
	Unsubscribe()
}

// Relay is one local identity's handle on the log. Submit may block for
// multi-second acknowledgment latency; Subscribe may block until the log
// acknowledges the registration. Both are bounded by ctx. Subscribe
// delivers every matching event observed at-or-after subscription time to
// ch; the caller must keep draining ch until Unsubscribe returns.
type Relay interface {
	Submit(ctx context.Context, recipient common.Address, payload []byte) error
	Subscribe(ctx context.Context, filter Filter, ch chan<- Event) (Subscription, error)
}
