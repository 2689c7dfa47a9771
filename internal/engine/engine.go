// Package engine implements channel negotiation on pion's WebRTC stack.
// It deliberately speaks vanilla ICE: both roles block until candidate
// gathering completes, so every descriptor leaving the engine already
// carries the full candidate bundle and each attempt costs exactly one
// outbound envelope.
package engine

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-dial/internal/envelope"
	"github.com/rudransh-shrivastava/peer-dial/internal/session"
)

var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

const channelProtocol = "peer-dial"

// Config holds the engine's tunables. Zero values select the default
// STUN servers and a default logger.
type Config struct {
	STUNServers []string
	Logger      *logrus.Logger
}

// WebRTC creates peer connections and data channels through pion. It is
// safe for concurrent use; each negotiation owns its own PeerConnection.
type WebRTC struct {
	config webrtc.Configuration
	logger *logrus.Logger
}

func New(cfg Config) *WebRTC {
	servers := cfg.STUNServers
	if len(servers) == 0 {
		servers = defaultSTUNServers
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	return &WebRTC{
		config: webrtc.Configuration{
			ICEServers:         []webrtc.ICEServer{{URLs: servers}},
			ICETransportPolicy: webrtc.ICETransportPolicyAll,
		},
		logger: log,
	}
}

// Offer creates the initiating side of a negotiation. The returned
// negotiation carries the complete offer descriptor and candidate bundle.
func (e *WebRTC) Offer(ctx context.Context) (session.Negotiation, error) {
	pc, err := webrtc.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	neg := newNegotiation(pc, e.logger)

	ordered := true
	protocol := channelProtocol
	dc, err := pc.CreateDataChannel("data", &webrtc.DataChannelInit{
		Ordered:  &ordered,
		Protocol: &protocol,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("creating data channel: %w", err)
	}
	neg.watchChannel(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("creating offer: %w", err)
	}
	if err := neg.gatherLocal(ctx, offer); err != nil {
		pc.Close()
		return nil, err
	}
	return neg, nil
}

// Answer creates the responding side from a remote offer. It installs the
// remote bundle first, then gathers the local answer bundle.
func (e *WebRTC) Answer(ctx context.Context, remote envelope.Descriptor, candidates []envelope.Candidate) (session.Negotiation, error) {
	pc, err := webrtc.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	neg := newNegotiation(pc, e.logger)

	// The initiator opens the channel; we only wait for it.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		neg.watchChannel(dc)
	})

	if err := neg.applyRemote(remote, candidates); err != nil {
		pc.Close()
		return nil, err
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("creating answer: %w", err)
	}
	if err := neg.gatherLocal(ctx, answer); err != nil {
		pc.Close()
		return nil, err
	}
	return neg, nil
}

func toSessionDescription(desc envelope.Descriptor) (webrtc.SessionDescription, error) {
	sdpType := webrtc.NewSDPType(desc.Format)
	if sdpType == webrtc.SDPType(webrtc.Unknown) {
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported descriptor format %q", desc.Format)
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: desc.Body}, nil
}

func toCandidateInit(c envelope.Candidate) webrtc.ICECandidateInit {
	mid := c.SDPMid
	index := c.SDPMLineIndex
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}
}
