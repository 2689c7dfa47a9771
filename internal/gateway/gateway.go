// Package gateway wraps a relay endpoint for one local identity. Its one
// real job is ordering: all submissions from the identity funnel through a
// single queue, so a second submission never begins transmission before
// the first has been accepted by the relay.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-dial/internal/relay"
)

var (
	// ErrSubmission means the relay rejected or failed a submission. It is
	// distinct from a negotiation timeout: it fails the attempt that
	// submitted, nothing else.
	ErrSubmission = errors.New("relay submission failed")

	// ErrClosed is returned once the gateway has shut down.
	ErrClosed = errors.New("gateway closed")
)

type job struct {
	ctx       context.Context
	recipient common.Address
	payload   []byte
	done      chan error
}

// Gateway serializes submissions and hands out filtered subscriptions.
type Gateway struct {
	relay  relay.Relay
	logger *logrus.Logger

	jobs      chan job
	quit      chan struct{}
	closeOnce sync.Once
}

func New(r relay.Relay, log *logrus.Logger) *Gateway {
	if log == nil {
		log = logrus.New()
	}
	g := &Gateway{
		relay:  r,
		logger: log,
		jobs:   make(chan job, 16),
		quit:   make(chan struct{}),
	}
	go g.worker()
	return g
}

// Submit queues one submission and blocks until the relay acknowledges it.
// Queue position is fixed at call time, so callers that finished their
// preparation work out of order are still transmitted in request order.
func (g *Gateway) Submit(ctx context.Context, recipient common.Address, payload []byte) error {
	j := job{ctx: ctx, recipient: recipient, payload: payload, done: make(chan error, 1)}

	select {
	case g.jobs <- j:
	case <-g.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSubmission, err)
		}
		return nil
	case <-g.quit:
		// The worker exits without draining the queue; a caller still
		// waiting here would otherwise block forever.
		return ErrClosed
	case <-ctx.Done():
		// The job stays queued and is skipped by the worker; abandoning it
		// here must not reorder later submissions.
		return ctx.Err()
	}
}

// Subscribe registers for events addressed to recipient, optionally
// narrowed to a single sender. A nil sender is a wildcard. The wait for
// the relay's registration acknowledgment is bounded by ctx.
func (g *Gateway) Subscribe(ctx context.Context, sender *common.Address, recipient common.Address, ch chan<- relay.Event) (relay.Subscription, error) {
	return g.relay.Subscribe(ctx, relay.Filter{Sender: sender, Recipient: &recipient}, ch)
}

// Close stops the submission worker. In-flight submissions fail with
// ErrClosed on the caller side.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() { close(g.quit) })
}

func (g *Gateway) worker() {
	for {
		select {
		case <-g.quit:
			return
		case j := <-g.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			j.done <- g.relay.Submit(j.ctx, j.recipient, j.payload)
		}
	}
}
