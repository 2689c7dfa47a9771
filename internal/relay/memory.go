package relay

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// MemoryRelay is an in-process event log. Multiple parties share one
// MemoryRelay and obtain per-identity handles through Endpoint, mirroring
// how each ledger account gets its own signer on a shared chain.
type MemoryRelay struct {
	mu   sync.Mutex
	seq  uint64
	feed event.Feed
}

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{}
}

// Endpoint returns a Relay handle whose submissions are stamped with
// sender, the way a chain stamps events with the transaction signer.
func (r *MemoryRelay) Endpoint(sender common.Address) Relay {
	return &memoryEndpoint{relay: r, sender: sender}
}

func (r *MemoryRelay) submit(sender, recipient common.Address, payload []byte) error {
	if recipient == (common.Address{}) {
		return ErrNullRecipient
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	r.mu.Lock()
	r.seq++
	ev := Event{
		Seq:       r.seq,
		Sender:    sender,
		Recipient: recipient,
		Payload:   append([]byte(nil), payload...),
	}
	r.mu.Unlock()

	r.feed.Send(ev)
	return nil
}

func (r *MemoryRelay) subscribe(filter Filter, ch chan<- Event) (Subscription, error) {
	internal := make(chan Event, 16)
	feedSub := r.feed.Subscribe(internal)

	sub := &memorySubscription{feedSub: feedSub, quit: make(chan struct{})}
	go func() {
		for {
			select {
			case <-sub.quit:
				return
			case ev := <-internal:
				if !filter.Match(ev) {
					continue
				}
				select {
				case ch <- ev:
				case <-sub.quit:
					return
				}
			}
		}
	}()
	return sub, nil
}

type memoryEndpoint struct {
	relay  *MemoryRelay
	sender common.Address
}

func (e *memoryEndpoint) Submit(ctx context.Context, recipient common.Address, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.relay.submit(e.sender, recipient, payload)
}

func (e *memoryEndpoint) Subscribe(ctx context.Context, filter Filter, ch chan<- Event) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.relay.subscribe(filter, ch)
}

type memorySubscription struct {
	feedSub event.Subscription
	quit    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) Unsubscribe() {
	s.once.Do(func() {
		s.feedSub.Unsubscribe()
		close(s.quit)
	})
}
