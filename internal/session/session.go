// Package session orchestrates peer-to-peer channel negotiation over a
// public relay log. A Facade owns one identity, a peer directory and a
// single persistent subscription for everything addressed to it; each
// negotiation attempt, outbound or inbound, runs independently with its
// own narrow reply filter and deadline, and failures never escape the
// attempt they belong to.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-dial/internal/envelope"
	"github.com/rudransh-shrivastava/peer-dial/internal/gateway"
	"github.com/rudransh-shrivastava/peer-dial/internal/identity"
	"github.com/rudransh-shrivastava/peer-dial/internal/relay"
)

const defaultTimeout = 60 * time.Second

// Config wires a Facade together. Identity, Directory, Relay and Engine
// are required; Logger and Timeout get defaults.
type Config struct {
	Identity  *identity.Identity
	Directory *identity.Directory
	Relay     relay.Relay
	Engine    Engine
	Logger    *logrus.Logger

	// Timeout bounds each negotiation attempt end to end: reply wait and
	// channel establishment share one deadline.
	Timeout time.Duration
}

// Facade is the public entry point for establishing channels.
type Facade struct {
	identity  *identity.Identity
	directory *identity.Directory
	engine    Engine
	gateway   *gateway.Gateway
	codec     *envelope.Codec
	logger    *logrus.Logger
	timeout   time.Duration

	handlerMu sync.Mutex
	onRequest func(*Request)
	onChannel func(*Channel)

	events    chan relay.Event
	sub       relay.Subscription
	quit      chan struct{}
	closeOnce sync.Once
}

// New validates the configuration and starts the persistent inbound
// listener. Construction fails before any subscription is established
// when the directory is missing: an empty peer set is a configuration
// fault, not a runtime state.
func New(cfg Config) (*Facade, error) {
	if cfg.Identity == nil {
		return nil, errors.New("session: identity is required")
	}
	if cfg.Directory == nil {
		return nil, identity.ErrEmptyDirectory
	}
	if cfg.Relay == nil {
		return nil, errors.New("session: relay is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("session: engine is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	f := &Facade{
		identity:  cfg.Identity,
		directory: cfg.Directory,
		engine:    cfg.Engine,
		gateway:   gateway.New(cfg.Relay, cfg.Logger),
		codec:     envelope.NewCodec(),
		logger:    cfg.Logger,
		timeout:   cfg.Timeout,
		events:    make(chan relay.Event, 32),
		quit:      make(chan struct{}),
	}

	subCtx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	sub, err := f.gateway.Subscribe(subCtx, nil, f.identity.Address(), f.events)
	if err != nil {
		f.gateway.Close()
		return nil, fmt.Errorf("subscribing to inbound envelopes: %w", err)
	}
	f.sub = sub

	go f.listen()
	return f, nil
}

// OnRequest registers the handler invoked for each inbound negotiation
// request. The handler runs on its own goroutine and decides the attempt's
// fate through Request.Accept or Request.Reject.
func (f *Facade) OnRequest(handler func(*Request)) {
	f.handlerMu.Lock()
	f.onRequest = handler
	f.handlerMu.Unlock()
}

// OnChannel registers the handler invoked when an accepted inbound attempt
// produces a usable channel. Outbound channels are returned by Initiate
// instead.
func (f *Facade) OnChannel(handler func(*Channel)) {
	f.handlerMu.Lock()
	f.onChannel = handler
	f.handlerMu.Unlock()
}

// Initiate negotiates a channel to peer. It fails fast with
// identity.ErrUnknownPeer when the directory has no entry, before any
// relay submission. Concurrent calls for the same peer race as
// independent attempts; each carries its own reply filter and timer.
func (f *Facade) Initiate(ctx context.Context, peer common.Address) (*Channel, error) {
	select {
	case <-f.quit:
		return nil, ErrFacadeClosed
	default:
	}

	sealKey, err := f.directory.SealKey(peer)
	if err != nil {
		return nil, err
	}

	out := &outbound{facade: f, peer: peer, sealKey: sealKey}
	return out.run(ctx)
}

// Address returns the local identity's account address.
func (f *Facade) Address() common.Address {
	return f.identity.Address()
}

// Close stops the listener and the submission queue. Attempts already in
// flight fail on their own deadlines.
func (f *Facade) Close() error {
	f.closeOnce.Do(func() {
		close(f.quit)
		f.sub.Unsubscribe()
		f.gateway.Close()
	})
	return nil
}

// listen drains the persistent subscription. Request envelopes spawn
// inbound attempts; response envelopes are claimed by the per-attempt
// filters, so the persistent listener skips them.
func (f *Facade) listen() {
	for {
		select {
		case <-f.quit:
			return
		case ev := <-f.events:
			env, err := f.codec.Open(ev.Payload, f.identity.SealKey())
			switch {
			case errors.Is(err, envelope.ErrDecrypt):
				// Not encrypted for us: expected noise on a shared log.
				f.logger.Debugf("Skipping event %d: not addressed to us", ev.Seq)
				continue
			case errors.Is(err, envelope.ErrMalformed):
				f.logger.Warnf("Skipping corrupt envelope from %s: %v", ev.Sender.Hex(), err)
				continue
			case err != nil:
				f.logger.Warnf("Skipping undecodable envelope from %s: %v", ev.Sender.Hex(), err)
				continue
			}

			if env.Kind != envelope.KindRequest {
				continue
			}

			f.handlerMu.Lock()
			handler := f.onRequest
			f.handlerMu.Unlock()
			if handler == nil {
				f.logger.Warnf("Dropping request from %s: no request handler registered", ev.Sender.Hex())
				continue
			}

			f.logger.Infof("Negotiation request from %s", ev.Sender.Hex())
			req := &Request{
				facade:     f,
				peer:       ev.Sender,
				descriptor: env.Descriptor,
				candidates: env.Candidates,
			}
			go handler(req)
		}
	}
}

func (f *Facade) dispatchChannel(ch *Channel) {
	f.handlerMu.Lock()
	handler := f.onChannel
	f.handlerMu.Unlock()
	if handler == nil {
		return
	}
	go handler(ch)
}

// deadlineError maps a context failure to the attempt-level error: an
// expired deadline is a negotiation timeout, anything else propagates.
func deadlineError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrNegotiationTimeout
	}
	return ctx.Err()
}
