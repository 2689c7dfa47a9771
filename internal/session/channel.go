package session

import "github.com/ethereum/go-ethereum/common"

// Channel is an established encrypted data path to one peer. It owns the
// underlying engine channel; closing it tears the engine state down.
type Channel struct {
	peer common.Address
	data DataChannel
}

func newChannel(peer common.Address, data DataChannel) *Channel {
	return &Channel{peer: peer, data: data}
}

// Peer returns the remote party's address.
func (c *Channel) Peer() common.Address {
	return c.peer
}

// Send transmits one payload to the peer.
func (c *Channel) Send(payload []byte) error {
	return c.data.Send(payload)
}

// Recv returns the stream of inbound payloads. The channel is closed when
// the data path goes away.
func (c *Channel) Recv() <-chan []byte {
	return c.data.Recv()
}

// Close shuts the data path down.
func (c *Channel) Close() error {
	return c.data.Close()
}
