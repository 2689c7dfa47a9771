package relay

import (
	"encoding/gob"
	"io"
)

func init() {
	gob.Register(&Hello{})
	gob.Register(&Submit{})
	gob.Register(&SubmitAck{})
	gob.Register(&Subscribe{})
	gob.Register(&SubscribeAck{})
	gob.Register(&Unsubscribe{})
	gob.Register(&EventMsg{})
	gob.Register(&ErrorMsg{})
}

// Codec carries wire messages over one connection as a single continuous
// gob stream. Both halves are persistent for the connection's lifetime:
// gob transmits each type descriptor once per stream and buffers
// read-ahead inside the decoder, so a per-message decoder would lose any
// message that arrived in the same segment as the previous one.
type Codec struct {
	enc *gob.Encoder
	dec *gob.Decoder
}

func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		enc: gob.NewEncoder(rw),
		dec: gob.NewDecoder(rw),
	}
}

func (c *Codec) Encode(msg Message) error {
	return c.enc.Encode(&msg)
}

func (c *Codec) Decode() (Message, error) {
	var msg Message
	if err := c.dec.Decode(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}
