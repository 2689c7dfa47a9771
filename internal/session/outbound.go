package session

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto/ecies"

	"github.com/rudransh-shrivastava/peer-dial/internal/envelope"
	"github.com/rudransh-shrivastava/peer-dial/internal/relay"
)

// outbound is one locally-initiated negotiation attempt. Its lifecycle:
// build the local bundle, submit it as a single request envelope, wait for
// a correlated reply, apply it and wait for the channel to open. Exactly
// one relay submission happens per attempt, and run returns exactly once.
type outbound struct {
	facade  *Facade
	peer    common.Address
	sealKey *ecies.PublicKey
}

func (o *outbound) run(ctx context.Context) (*Channel, error) {
	f := o.facade

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// Offering role; blocks until the candidate bundle is complete.
	neg, err := f.engine.Offer(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine offer: %w", err)
	}

	env := envelope.Envelope{
		Kind:       envelope.KindRequest,
		Descriptor: neg.Descriptor(),
		Candidates: neg.Candidates(),
	}
	sealed, err := f.codec.Seal(env, o.sealKey)
	if err != nil {
		neg.Close()
		return nil, fmt.Errorf("sealing request: %w", err)
	}

	// Register the reply filter before submitting: the relay only delivers
	// events observed at-or-after subscription time, and a fast responder
	// could answer before the submission acknowledgment returns.
	replies := make(chan relay.Event, 8)
	sub, err := f.gateway.Subscribe(ctx, &o.peer, f.identity.Address(), replies)
	if err != nil {
		neg.Close()
		return nil, fmt.Errorf("subscribing for reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := f.gateway.Submit(ctx, o.peer, sealed); err != nil {
		neg.Close()
		return nil, err
	}
	f.logger.Infof("Negotiation request sent to %s", o.peer.Hex())

	for {
		select {
		case ev := <-replies:
			reply, err := f.codec.Open(ev.Payload, f.identity.SealKey())
			if err != nil {
				// An undecodable reply does not consume the attempt; keep
				// waiting for a valid one or the deadline.
				f.logger.Debugf("Ignoring undecodable reply from %s: %v", ev.Sender.Hex(), err)
				continue
			}
			if reply.Kind != envelope.KindResponse {
				continue
			}

			if err := neg.ApplyAnswer(reply.Descriptor, reply.Candidates); err != nil {
				neg.Close()
				return nil, fmt.Errorf("applying answer from %s: %w", o.peer.Hex(), err)
			}
			return o.awaitChannel(ctx, neg)

		case <-ctx.Done():
			neg.Close()
			f.logger.Infof("Negotiation with %s abandoned: %v", o.peer.Hex(), ctx.Err())
			return nil, deadlineError(ctx)
		}
	}
}

// awaitChannel delays the attempt's visible result until the channel is
// actually usable; the descriptor exchange alone resolves nothing.
func (o *outbound) awaitChannel(ctx context.Context, neg Negotiation) (*Channel, error) {
	select {
	case data := <-neg.Opened():
		o.facade.logger.Infof("Channel to %s open", o.peer.Hex())
		return newChannel(o.peer, data), nil
	case <-ctx.Done():
		neg.Close()
		return nil, deadlineError(ctx)
	}
}
