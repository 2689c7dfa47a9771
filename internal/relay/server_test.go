package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func setupServer(t *testing.T) (*Server, context.CancelFunc) {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Addr:   "127.0.0.1:0",
		DBPath: ":memory:",
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown()
	})
	return srv, cancel
}

func dialClient(t *testing.T, srv *Server, sender common.Address) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, srv.Addr(), sender, testLogger())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServerSubmitAndDeliver(t *testing.T) {
	srv, _ := setupServer(t)
	alice := dialClient(t, srv, addrAlice)
	bob := dialClient(t, srv, addrBob)

	events := make(chan Event, 4)
	sub, err := bob.Subscribe(context.Background(), Filter{Recipient: &addrBob}, events)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := alice.Submit(ctx, addrBob, []byte("over tcp")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Sender != addrAlice {
			t.Errorf("expected sender %s, got %s", addrAlice.Hex(), ev.Sender.Hex())
		}
		if string(ev.Payload) != "over tcp" {
			t.Errorf("payload mismatch: %q", ev.Payload)
		}
		if ev.Seq != 1 {
			t.Errorf("expected seq 1 on a fresh log, got %d", ev.Seq)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	if n, err := srv.log.Count(); err != nil || n != 1 {
		t.Errorf("expected 1 persisted event, got %d (err %v)", n, err)
	}
}

func TestServerRejectsInvalidSubmissions(t *testing.T) {
	srv, _ := setupServer(t)
	alice := dialClient(t, srv, addrAlice)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := alice.Submit(ctx, common.Address{}, []byte("hi")); !errors.Is(err, ErrNullRecipient) {
		t.Errorf("expected ErrNullRecipient, got %v", err)
	}
	if err := alice.Submit(ctx, addrBob, nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}

	if n, err := srv.log.Count(); err != nil || n != 0 {
		t.Errorf("rejected submissions must not be persisted, log has %d (err %v)", n, err)
	}
}

func TestServerSenderFilter(t *testing.T) {
	srv, _ := setupServer(t)
	alice := dialClient(t, srv, addrAlice)
	carol := dialClient(t, srv, addrCarol)
	bob := dialClient(t, srv, addrBob)

	events := make(chan Event, 4)
	sub, err := bob.Subscribe(context.Background(), Filter{Sender: &addrAlice, Recipient: &addrBob}, events)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := carol.Submit(ctx, addrBob, []byte("carol noise")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := alice.Submit(ctx, addrBob, []byte("alice signal")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case ev := <-events:
		if string(ev.Payload) != "alice signal" {
			t.Errorf("sender filter leaked payload %q", ev.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("matching event was not delivered")
	}
}

func TestServerSubmissionOrdering(t *testing.T) {
	srv, _ := setupServer(t)
	alice := dialClient(t, srv, addrAlice)
	bob := dialClient(t, srv, addrBob)

	events := make(chan Event, 8)
	sub, err := bob.Subscribe(context.Background(), Filter{Recipient: &addrBob}, events)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payloads := []string{"first", "second", "third"}
	for _, p := range payloads {
		if err := alice.Submit(ctx, addrBob, []byte(p)); err != nil {
			t.Fatalf("Submit %q failed: %v", p, err)
		}
	}

	for i, want := range payloads {
		select {
		case ev := <-events:
			if string(ev.Payload) != want {
				t.Errorf("event %d: expected %q, got %q", i, want, ev.Payload)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("event %d was not delivered", i)
		}
	}
}

func TestServerUnsubscribeStopsDelivery(t *testing.T) {
	srv, _ := setupServer(t)
	alice := dialClient(t, srv, addrAlice)
	bob := dialClient(t, srv, addrBob)

	events := make(chan Event, 4)
	sub, err := bob.Subscribe(context.Background(), Filter{Recipient: &addrBob}, events)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := alice.Submit(ctx, addrBob, []byte("late")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case ev := <-events:
		t.Errorf("received event after unsubscribe: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
