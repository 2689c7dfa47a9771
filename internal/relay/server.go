package relay

import (
	"context"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// ServerConfig configures the reference relay server.
type ServerConfig struct {
	Addr   string // TCP listen address, ":0" for an ephemeral port
	DBPath string // sqlite path for the event log, ":memory:" for ephemeral
	Logger *logrus.Logger
}

// Server is the reference relay daemon: a TCP front end over an
// append-only event log. Every accepted submission is persisted, assigned
// a sequence number, and fanned out to all matching live subscriptions.
type Server struct {
	config   ServerConfig
	logger   *logrus.Logger
	log      *EventLog
	listener net.Listener

	mu    sync.Mutex
	conns map[*serverConn]struct{}

	quit      chan struct{}
	closeOnce sync.Once
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "relay.sqlite3"
	}

	eventLog, err := OpenEventLog(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:   cfg,
		logger:   cfg.Logger,
		log:      eventLog,
		listener: listener,
		conns:    make(map[*serverConn]struct{}),
		quit:     make(chan struct{}),
	}, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start accepts connections until ctx is cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Infof("Relay server listening on %s", s.Addr())

	go func() {
		select {
		case <-ctx.Done():
		case <-s.quit:
		}
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.quit:
				return nil
			default:
			}
			s.logger.Errorf("Failed to accept connection: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Shutdown() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.listener.Close()

		s.mu.Lock()
		for conn := range s.conns {
			conn.conn.Close()
		}
		s.mu.Unlock()
	})
	return nil
}

type serverConn struct {
	conn    net.Conn
	codec   *Codec
	writeMu sync.Mutex

	sender    common.Address
	hasSender bool

	// Live server-side filters on this connection, keyed by the
	// client-chosen subscription ID.
	subMu sync.Mutex
	subs  map[uint64]Filter
}

func (c *serverConn) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.codec.Encode(msg)
}

func (s *Server) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.logger.Infof("Client connected: %s", remote)

	sc := &serverConn{
		conn:  conn,
		codec: NewCodec(conn),
		subs:  make(map[uint64]Filter),
	}
	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
		conn.Close()
		s.logger.Infof("Client disconnected: %s", remote)
	}()

	for {
		msg, err := sc.codec.Decode()
		if err != nil {
			select {
			case <-s.quit:
			default:
				s.logger.Debugf("Read from %s failed: %v", remote, err)
			}
			return
		}
		s.handleMessage(sc, msg)
	}
}

func (s *Server) handleMessage(sc *serverConn, msg Message) {
	switch m := msg.(type) {
	case *Hello:
		sc.sender = m.Sender
		sc.hasSender = true
		s.logger.Debugf("Registered sender %s", m.Sender.Hex())

	case *Submit:
		s.handleSubmit(sc, m)

	case *Subscribe:
		sc.subMu.Lock()
		filter := Filter{Recipient: addrPtr(m.Recipient)}
		if m.HasSender {
			filter.Sender = addrPtr(m.Sender)
		}
		sc.subs[m.SubID] = filter
		sc.subMu.Unlock()
		if err := sc.send(&SubscribeAck{ID: m.ID, SubID: m.SubID}); err != nil {
			s.logger.Warnf("Failed to ack subscription: %v", err)
		}

	case *Unsubscribe:
		sc.subMu.Lock()
		delete(sc.subs, m.SubID)
		sc.subMu.Unlock()

	default:
		s.logger.Warnf("Unhandled message type %s", msg.Type())
	}
}

func (s *Server) handleSubmit(sc *serverConn, m *Submit) {
	reject := func(code ErrorCode, text string) {
		if err := sc.send(&ErrorMsg{ID: m.ID, Code: code, Message: text}); err != nil {
			s.logger.Warnf("Failed to send rejection: %v", err)
		}
	}

	if !sc.hasSender {
		reject(ErrCodeNoHello, "no sender registered on this connection")
		return
	}
	if m.Recipient == (common.Address{}) {
		reject(ErrCodeNullRecipient, "null recipient")
		return
	}
	if len(m.Payload) == 0 {
		reject(ErrCodeEmptyPayload, "empty payload")
		return
	}

	seq, err := s.log.Append(sc.sender, m.Recipient, m.Payload)
	if err != nil {
		s.logger.Errorf("Failed to append event: %v", err)
		reject(ErrCodeInternal, "event log write failed")
		return
	}

	ev := Event{Seq: seq, Sender: sc.sender, Recipient: m.Recipient, Payload: m.Payload}
	s.broadcast(ev)

	if err := sc.send(&SubmitAck{ID: m.ID, Seq: seq}); err != nil {
		s.logger.Warnf("Failed to ack submission: %v", err)
	}
}

// broadcast fans one accepted event out to every matching subscription on
// every connection, the submitter's own included.
func (s *Server) broadcast(ev Event) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.subMu.Lock()
		for subID, filter := range conn.subs {
			if !filter.Match(ev) {
				continue
			}
			msg := &EventMsg{
				SubID:     subID,
				Seq:       ev.Seq,
				Sender:    ev.Sender,
				Recipient: ev.Recipient,
				Payload:   ev.Payload,
			}
			if err := conn.send(msg); err != nil {
				s.logger.Warnf("Failed to deliver event %d: %v", ev.Seq, err)
			}
		}
		conn.subMu.Unlock()
	}
}

func addrPtr(addr common.Address) *common.Address {
	return &addr
}
