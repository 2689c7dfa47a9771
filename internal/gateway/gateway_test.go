package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rudransh-shrivastava/peer-dial/internal/relay"
)

var (
	addrBob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	addrCarol = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// blockingRelay records submission order and holds each submission until
// the test releases it.
type blockingRelay struct {
	mu      sync.Mutex
	order   [][]byte
	started chan []byte
	release chan struct{}
}

func newBlockingRelay() *blockingRelay {
	return &blockingRelay{
		started: make(chan []byte, 16),
		release: make(chan struct{}, 16),
	}
}

func (r *blockingRelay) Submit(ctx context.Context, recipient common.Address, payload []byte) error {
	r.started <- payload
	<-r.release

	r.mu.Lock()
	r.order = append(r.order, payload)
	r.mu.Unlock()
	return nil
}

func (r *blockingRelay) Subscribe(ctx context.Context, filter relay.Filter, ch chan<- relay.Event) (relay.Subscription, error) {
	return nopSubscription{}, nil
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

type failingRelay struct{}

func (failingRelay) Submit(ctx context.Context, recipient common.Address, payload []byte) error {
	return errors.New("chain unreachable")
}

func (failingRelay) Subscribe(ctx context.Context, filter relay.Filter, ch chan<- relay.Event) (relay.Subscription, error) {
	return nopSubscription{}, nil
}

func TestSubmitFIFO(t *testing.T) {
	rel := newBlockingRelay()
	gw := New(rel, nil)
	defer gw.Close()

	ctx := context.Background()
	first := make(chan error, 1)
	second := make(chan error, 1)

	go func() { first <- gw.Submit(ctx, addrBob, []byte("first")) }()

	// Wait until the first submission is in flight before queueing the
	// second, then verify the second does not start early.
	select {
	case p := <-rel.started:
		if string(p) != "first" {
			t.Fatalf("expected first submission in flight, got %q", p)
		}
	case <-time.After(time.Second):
		t.Fatal("first submission never reached the relay")
	}

	go func() { second <- gw.Submit(ctx, addrBob, []byte("second")) }()

	select {
	case p := <-rel.started:
		t.Fatalf("second submission %q started before the first was accepted", p)
	case <-time.After(50 * time.Millisecond):
	}

	rel.release <- struct{}{}
	rel.release <- struct{}{}

	if err := <-first; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second submission failed: %v", err)
	}

	rel.mu.Lock()
	defer rel.mu.Unlock()
	if len(rel.order) != 2 || string(rel.order[0]) != "first" || string(rel.order[1]) != "second" {
		t.Errorf("submissions out of order: %q", rel.order)
	}
}

func TestSubmitErrorWrapped(t *testing.T) {
	gw := New(failingRelay{}, nil)
	defer gw.Close()

	err := gw.Submit(context.Background(), addrBob, []byte("doomed"))
	if !errors.Is(err, ErrSubmission) {
		t.Errorf("expected ErrSubmission, got %v", err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	gw := New(newBlockingRelay(), nil)
	gw.Close()

	err := gw.Submit(context.Background(), addrBob, []byte("late"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestQueuedSubmissionFailsOnClose(t *testing.T) {
	rel := newBlockingRelay()
	gw := New(rel, nil)

	// Occupy the worker so the next submission sits in the queue.
	busy := make(chan error, 1)
	go func() { busy <- gw.Submit(context.Background(), addrBob, []byte("busy")) }()
	<-rel.started

	// This submission has no deadline; only Close can release it.
	queued := make(chan error, 1)
	go func() { queued <- gw.Submit(context.Background(), addrBob, []byte("queued")) }()
	time.Sleep(50 * time.Millisecond)

	gw.Close()

	select {
	case err := <-queued:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued submission never returned after Close")
	}

	select {
	case err := <-busy:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed for the in-flight caller, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight submission never returned after Close")
	}

	// Unblock the relay call still held by the worker goroutine.
	rel.release <- struct{}{}
}

func TestAbandonedSubmissionDoesNotReorder(t *testing.T) {
	rel := newBlockingRelay()
	gw := New(rel, nil)
	defer gw.Close()

	// Occupy the worker.
	go func() { _ = gw.Submit(context.Background(), addrBob, []byte("busy")) }()
	<-rel.started

	// Queue a submission whose context dies while it waits.
	cancelled, cancel := context.WithCancel(context.Background())
	queued := make(chan error, 1)
	go func() { queued <- gw.Submit(cancelled, addrCarol, []byte("abandoned")) }()
	cancel()

	if err := <-queued; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// A later live submission still goes through, and the abandoned one
	// never reaches the relay.
	live := make(chan error, 1)
	go func() { live <- gw.Submit(context.Background(), addrBob, []byte("live")) }()

	rel.release <- struct{}{}

	select {
	case p := <-rel.started:
		if string(p) != "live" {
			t.Fatalf("expected live submission, relay saw %q", p)
		}
	case <-time.After(time.Second):
		t.Fatal("live submission never reached the relay")
	}
	rel.release <- struct{}{}

	if err := <-live; err != nil {
		t.Fatalf("live submission failed: %v", err)
	}
}
