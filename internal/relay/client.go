package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Client is a TCP Relay implementation backed by a relay server. A read
// loop routes acknowledgments to the pending request that issued them and
// streamed events to the local subscription channels.
type Client struct {
	conn   net.Conn
	codec  *Codec
	logger *logrus.Logger
	sender common.Address

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Message
	subs    map[uint64]chan<- Event

	quit      chan struct{}
	closeOnce sync.Once
}

var _ Relay = (*Client)(nil)

// Dial connects to a relay server and registers sender as the address this
// connection submits as.
func Dial(ctx context.Context, addr string, sender common.Address, log *logrus.Logger) (*Client, error) {
	if log == nil {
		log = logrus.New()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing relay %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		codec:   NewCodec(conn),
		logger:  log,
		sender:  sender,
		pending: make(map[uint64]chan Message),
		subs:    make(map[uint64]chan<- Event),
		quit:    make(chan struct{}),
	}
	if err := c.send(&Hello{Sender: sender}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registering sender: %w", err)
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.conn.Close()
	})
	return nil
}

func (c *Client) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.codec.Encode(msg)
}

// Submit appends one record to the log and blocks until the server
// acknowledges it.
func (c *Client) Submit(ctx context.Context, recipient common.Address, payload []byte) error {
	id, reply := c.register()
	defer c.unregister(id)

	if err := c.send(&Submit{ID: id, Recipient: recipient, Payload: payload}); err != nil {
		return fmt.Errorf("sending submission: %w", err)
	}

	select {
	case msg := <-reply:
		switch m := msg.(type) {
		case *SubmitAck:
			return nil
		case *ErrorMsg:
			return submitError(m)
		default:
			return fmt.Errorf("unexpected reply %s to submission", msg.Type())
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrClosed
	}
}

// Subscribe registers a server-side filter and routes its events to ch.
// The wait for the server's acknowledgment is bounded by ctx.
func (c *Client) Subscribe(ctx context.Context, filter Filter, ch chan<- Event) (Subscription, error) {
	id, reply := c.register()
	defer c.unregister(id)

	c.mu.Lock()
	c.nextID++
	subID := c.nextID
	c.subs[subID] = ch
	c.mu.Unlock()

	req := &Subscribe{ID: id, SubID: subID, Recipient: common.Address{}}
	if filter.Recipient != nil {
		req.Recipient = *filter.Recipient
	}
	if filter.Sender != nil {
		req.HasSender = true
		req.Sender = *filter.Sender
	}

	if err := c.send(req); err != nil {
		c.dropSub(subID)
		return nil, fmt.Errorf("sending subscription: %w", err)
	}

	select {
	case msg := <-reply:
		if em, ok := msg.(*ErrorMsg); ok {
			c.dropSub(subID)
			return nil, fmt.Errorf("relay rejected subscription: %s", em.Message)
		}
		return &clientSubscription{client: c, subID: subID}, nil
	case <-ctx.Done():
		c.dropSub(subID)
		return nil, ctx.Err()
	case <-c.quit:
		c.dropSub(subID)
		return nil, ErrClosed
	}
}

func (c *Client) register() (uint64, chan Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	reply := make(chan Message, 1)
	c.pending[id] = reply
	return id, reply
}

func (c *Client) unregister(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) dropSub(subID uint64) {
	c.mu.Lock()
	delete(c.subs, subID)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for {
		msg, err := c.codec.Decode()
		if err != nil {
			select {
			case <-c.quit:
			default:
				c.logger.Debugf("Relay connection read failed: %v", err)
				c.Close()
			}
			return
		}

		switch m := msg.(type) {
		case *SubmitAck:
			c.routeReply(m.ID, m)
		case *SubscribeAck:
			c.routeReply(m.ID, m)
		case *ErrorMsg:
			c.routeReply(m.ID, m)
		case *EventMsg:
			c.routeEvent(m)
		default:
			c.logger.Warnf("Unhandled message type %s from relay", msg.Type())
		}
	}
}

func (c *Client) routeReply(id uint64, msg Message) {
	c.mu.Lock()
	reply, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		c.logger.Debugf("Reply for unknown request %d", id)
		return
	}
	select {
	case reply <- msg:
	default:
	}
}

func (c *Client) routeEvent(m *EventMsg) {
	c.mu.Lock()
	ch, ok := c.subs[m.SubID]
	c.mu.Unlock()
	if !ok {
		// Events may still stream briefly after a local unsubscribe.
		return
	}
	ev := Event{Seq: m.Seq, Sender: m.Sender, Recipient: m.Recipient, Payload: m.Payload}
	select {
	case ch <- ev:
	case <-c.quit:
	}
}

func submitError(m *ErrorMsg) error {
	switch m.Code {
	case ErrCodeNullRecipient:
		return ErrNullRecipient
	case ErrCodeEmptyPayload:
		return ErrEmptyPayload
	default:
		return errors.New("relay rejected submission: " + m.Message)
	}
}

type clientSubscription struct {
	client *Client
	subID  uint64
	once   sync.Once
}

func (s *clientSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.dropSub(s.subID)
		if err := s.client.send(&Unsubscribe{SubID: s.subID}); err != nil {
			s.client.logger.Debugf("Failed to send unsubscribe: %v", err)
		}
	})
}
