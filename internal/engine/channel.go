package engine

import (
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

const recvBuffer = 64

// dataChannel adapts a pion data channel to the session's data path. It
// holds the owning PeerConnection so closing the channel tears the whole
// transport down.
type dataChannel struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	logger *logrus.Logger

	recv      chan []byte
	closeOnce sync.Once
}

func newDataChannel(pc *webrtc.PeerConnection, dc *webrtc.DataChannel, log *logrus.Logger) *dataChannel {
	c := &dataChannel{
		pc:     pc,
		dc:     dc,
		logger: log,
		recv:   make(chan []byte, recvBuffer),
	}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.recv <- msg.Data
	})
	dc.OnError(func(err error) {
		log.Errorf("Data channel error: %v", err)
	})
	dc.OnClose(func() {
		log.Debugf("Data channel '%s'-'%d' closed", dc.Label(), dc.ID())
		c.closeOnce.Do(func() { close(c.recv) })
	})

	return c
}

func (c *dataChannel) Send(payload []byte) error {
	return c.dc.Send(payload)
}

func (c *dataChannel) Recv() <-chan []byte {
	return c.recv
}

func (c *dataChannel) Close() error {
	if err := c.dc.Close(); err != nil {
		return err
	}
	return c.pc.Close()
}
