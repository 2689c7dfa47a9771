package session

import (
	"context"

	"github.com/rudransh-shrivastava/peer-dial/internal/envelope"
)

// Engine abstracts the local real-time transport engine. Implementations
// create negotiation roles, gather connectivity candidates and report when
// a data channel becomes usable; everything heavy (connectivity checks,
// transport security, multiplexing) lives behind it.
type Engine interface {
	// Offer creates a locally-initiated negotiation. It blocks until
	// candidate gathering completes, bounded by ctx, so the returned
	// negotiation always carries a complete candidate bundle.
	Offer(ctx context.Context) (Negotiation, error)

	// Answer creates a negotiation for a remotely-initiated attempt from
	// the given remote descriptor and candidate bundle. Like Offer it
	// blocks until local candidate gathering completes.
	Answer(ctx context.Context, remote envelope.Descriptor, candidates []envelope.Candidate) (Negotiation, error)
}

// Negotiation is one live engine-side attempt. Engine errors are fatal to
// the attempt; the owner must Close on every failure path to tear down
// partial engine state.
type Negotiation interface {
	// Descriptor returns the complete local descriptor.
	Descriptor() envelope.Descriptor

	// Candidates returns the complete local candidate bundle.
	Candidates() []envelope.Candidate

	// ApplyAnswer installs the remote answer on an offering negotiation.
	ApplyAnswer(remote envelope.Descriptor, candidates []envelope.Candidate) error

	// Opened delivers the data channel once it is usable end to end.
	Opened() <-chan DataChannel

	// Close tears down the negotiation and any channel it produced.
	Close() error
}

// DataChannel is the bidirectional data path produced by a completed
// negotiation.
type DataChannel interface {
	Send(payload []byte) error
	Recv() <-chan []byte
	Close() error
}
