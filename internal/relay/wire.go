package relay

import "github.com/ethereum/go-ethereum/common"

// Wire messages for the TCP relay protocol. A connection starts with a
// Hello registering the client's sender address; after that requests and
// streamed events are multiplexed freely in both directions.

type MessageType uint8

const (
	MsgHello MessageType = iota + 1
	MsgSubmit
	MsgSubmitAck
	MsgSubscribe
	MsgSubscribeAck
	MsgUnsubscribe
	MsgEvent
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "Hello"
	case MsgSubmit:
		return "Submit"
	case MsgSubmitAck:
		return "SubmitAck"
	case MsgSubscribe:
		return "Subscribe"
	case MsgSubscribeAck:
		return "SubscribeAck"
	case MsgUnsubscribe:
		return "Unsubscribe"
	case MsgEvent:
		return "Event"
	case MsgError:
		return "Error"
	default:
		return "Unknown"
	}
}

type Message interface {
	Type() MessageType
}

// Hello registers the connection's sender address. The reference server
// trusts it the way a chain trusts a transaction signature; a real ledger
// backend would derive the sender from the signed transaction instead.
type Hello struct {
	Sender common.Address
}

func (Hello) Type() MessageType { return MsgHello }

// Submit appends one record to the log. ID correlates the SubmitAck or
// Error reply.
type Submit struct {
	ID        uint64
	Recipient common.Address
	Payload   []byte
}

func (Submit) Type() MessageType { return MsgSubmit }

// SubmitAck confirms a submission and carries its log sequence number.
type SubmitAck struct {
	ID  uint64
	Seq uint64
}

func (SubmitAck) Type() MessageType { return MsgSubmitAck }

// Subscribe registers a server-side filter. SubID names the registration
// for Unsubscribe and for routing Event messages.
type Subscribe struct {
	ID        uint64
	SubID     uint64
	HasSender bool
	Sender    common.Address
	Recipient common.Address
}

func (Subscribe) Type() MessageType { return MsgSubscribe }

type SubscribeAck struct {
	ID    uint64
	SubID uint64
}

func (SubscribeAck) Type() MessageType { return MsgSubscribeAck }

type Unsubscribe struct {
	SubID uint64
}

func (Unsubscribe) Type() MessageType { return MsgUnsubscribe }

// EventMsg streams one matching log record to a subscriber.
type EventMsg struct {
	SubID     uint64
	Seq       uint64
	Sender    common.Address
	Recipient common.Address
	Payload   []byte
}

func (EventMsg) Type() MessageType { return MsgEvent }

type ErrorCode uint8

const (
	ErrCodeInternal ErrorCode = iota
	ErrCodeNullRecipient
	ErrCodeEmptyPayload
	ErrCodeNoHello
)

// ErrorMsg rejects the request identified by ID.
type ErrorMsg struct {
	ID      uint64
	Code    ErrorCode
	Message string
}

func (ErrorMsg) Type() MessageType { return MsgError }
