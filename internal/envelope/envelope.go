// Package envelope defines the wire unit exchanged through the relay.
//
// An envelope is serialized to canonical JSON, encrypted whole for the
// recipient, and transmitted as opaque bytes. The relay only ever sees
// the ciphertext. Each envelope carries a complete candidate bundle, so
// every negotiation direction produces exactly one relay submission.
package envelope

// Kind tags an envelope with its role in a negotiation.
type Kind string

const (
	// KindRequest opens a negotiation: the initiator's descriptor plus its
	// full candidate bundle.
	KindRequest Kind = "request"

	// KindResponse answers a request: the responder's descriptor plus its
	// full candidate bundle.
	KindResponse Kind = "response"
)

// Descriptor is a connection-parameter document produced by the transport
// engine in either the offer or answer role.
type Descriptor struct {
	Format string `json:"format"`
	Body   string `json:"body"`
}

// Candidate is one discovered network path proposal.
type Candidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// Envelope is the session-establishment message exchanged through the relay.
type Envelope struct {
	Kind       Kind        `json:"kind"`
	Descriptor Descriptor  `json:"descriptor"`
	Candidates []Candidate `json:"candidates"`
}
