package session

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rudransh-shrivastava/peer-dial/internal/envelope"
	"github.com/rudransh-shrivastava/peer-dial/internal/relay"
)

// fakeEngine delegates to test-provided functions so each test can script
// the engine's behavior.
type fakeEngine struct {
	offer  func(ctx context.Context) (Negotiation, error)
	answer func(ctx context.Context, remote envelope.Descriptor, candidates []envelope.Candidate) (Negotiation, error)
}

func (e *fakeEngine) Offer(ctx context.Context) (Negotiation, error) {
	return e.offer(ctx)
}

func (e *fakeEngine) Answer(ctx context.Context, remote envelope.Descriptor, candidates []envelope.Candidate) (Negotiation, error) {
	return e.answer(ctx, remote, candidates)
}

type fakeNegotiation struct {
	desc   envelope.Descriptor
	cands  []envelope.Candidate
	opened chan DataChannel

	mu      sync.Mutex
	applied []envelope.Descriptor
	closed  bool

	// onApply, when set, runs inside ApplyAnswer after recording; tests
	// use it to deliver the paired data channel.
	onApply func()
}

func newFakeNegotiation(format string) *fakeNegotiation {
	return &fakeNegotiation{
		desc:   envelope.Descriptor{Format: format, Body: "v=0 " + format},
		cands:  []envelope.Candidate{{Candidate: "candidate:1 1 udp 1 10.0.0.1 9 typ host", SDPMid: "0"}},
		opened: make(chan DataChannel, 1),
	}
}

func (n *fakeNegotiation) Descriptor() envelope.Descriptor {
	return n.desc
}

func (n *fakeNegotiation) Candidates() []envelope.Candidate {
	return n.cands
}

func (n *fakeNegotiation) ApplyAnswer(remote envelope.Descriptor, candidates []envelope.Candidate) error {
	n.mu.Lock()
	n.applied = append(n.applied, remote)
	onApply := n.onApply
	n.mu.Unlock()
	if onApply != nil {
		onApply()
	}
	return nil
}

func (n *fakeNegotiation) Opened() <-chan DataChannel {
	return n.opened
}

func (n *fakeNegotiation) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

func (n *fakeNegotiation) wasClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *fakeNegotiation) appliedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.applied)
}

// fakePipe returns two linked data channels: what one side sends, the
// other receives.
func fakePipe() (DataChannel, DataChannel) {
	a := &fakeDataChannel{recv: make(chan []byte, 16)}
	b := &fakeDataChannel{recv: make(chan []byte, 16)}
	a.peer, b.peer = b, a
	return a, b
}

type fakeDataChannel struct {
	peer *fakeDataChannel
	recv chan []byte

	once sync.Once
}

func (c *fakeDataChannel) Send(payload []byte) error {
	c.peer.recv <- payload
	return nil
}

func (c *fakeDataChannel) Recv() <-chan []byte {
	return c.recv
}

func (c *fakeDataChannel) Close() error {
	c.once.Do(func() { close(c.recv) })
	return nil
}

// spyRelay counts submissions passing through to the wrapped endpoint.
type spyRelay struct {
	relay.Relay

	mu      sync.Mutex
	submits int
}

func (s *spyRelay) Submit(ctx context.Context, recipient common.Address, payload []byte) error {
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	return s.Relay.Submit(ctx, recipient, payload)
}

func (s *spyRelay) submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}
