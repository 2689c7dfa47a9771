package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rudransh-shrivastava/peer-dial/internal/envelope"
)

// Request is a remotely-initiated negotiation attempt surfaced to the
// application. The remote descriptor is available before any network side
// effect; nothing happens until Accept or Reject, and exactly one of them
// takes effect.
type Request struct {
	facade     *Facade
	peer       common.Address
	descriptor envelope.Descriptor
	candidates []envelope.Candidate

	mu       sync.Mutex
	resolved bool
}

// Peer returns the initiator's address, as authenticated by the relay.
func (r *Request) Peer() common.Address {
	return r.peer
}

// Descriptor returns the decrypted remote descriptor.
func (r *Request) Descriptor() envelope.Descriptor {
	return r.descriptor
}

// Candidates returns the initiator's candidate bundle.
func (r *Request) Candidates() []envelope.Candidate {
	return r.candidates
}

// Reject abandons the attempt without any side effect. No negative
// acknowledgment goes out; the initiator sees its own timeout, and the
// public log never learns the request was even seen.
func (r *Request) Reject() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return ErrRequestResolved
	}
	r.resolved = true
	r.facade.logger.Infof("Rejected negotiation request from %s", r.peer.Hex())
	return nil
}

// Accept answers the attempt: the engine takes the remote bundle, produces
// the local answer bundle, and exactly one response envelope goes out.
// Accept then waits, bounded by the attempt timeout, for the channel to
// become usable; on success the channel is also dispatched to the
// facade's channel handler.
func (r *Request) Accept(ctx context.Context) (*Channel, error) {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return nil, ErrRequestResolved
	}
	r.resolved = true
	r.mu.Unlock()

	f := r.facade

	sealKey, err := f.directory.SealKey(r.peer)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// Answering role; blocks until the local candidate bundle is complete.
	neg, err := f.engine.Answer(ctx, r.descriptor, r.candidates)
	if err != nil {
		return nil, fmt.Errorf("engine answer: %w", err)
	}

	env := envelope.Envelope{
		Kind:       envelope.KindResponse,
		Descriptor: neg.Descriptor(),
		Candidates: neg.Candidates(),
	}
	sealed, err := f.codec.Seal(env, sealKey)
	if err != nil {
		neg.Close()
		return nil, fmt.Errorf("sealing response: %w", err)
	}

	if err := f.gateway.Submit(ctx, r.peer, sealed); err != nil {
		neg.Close()
		return nil, err
	}
	f.logger.Infof("Negotiation response sent to %s", r.peer.Hex())

	select {
	case data := <-neg.Opened():
		f.logger.Infof("Channel to %s open", r.peer.Hex())
		ch := newChannel(r.peer, data)
		f.dispatchChannel(ch)
		return ch, nil
	case <-ctx.Done():
		// Tear down partial engine state; the initiator times out on its
		// own deadline.
		neg.Close()
		return nil, deadlineError(ctx)
	}
}
