package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-dial/internal/envelope"
	"github.com/rudransh-shrivastava/peer-dial/internal/session"
)

// negotiation owns one PeerConnection for the lifetime of one attempt.
type negotiation struct {
	pc     *webrtc.PeerConnection
	logger *logrus.Logger

	mu         sync.Mutex
	candidates []envelope.Candidate

	opened   chan session.DataChannel
	openOnce sync.Once
}

func newNegotiation(pc *webrtc.PeerConnection, log *logrus.Logger) *negotiation {
	n := &negotiation{
		pc:     pc,
		logger: log,
		opened: make(chan session.DataChannel, 1),
	}

	pc.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			// Gathering finished.
			return
		}
		init := ice.ToJSON()
		cand := envelope.Candidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			cand.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			cand.SDPMLineIndex = *init.SDPMLineIndex
		}
		n.mu.Lock()
		n.candidates = append(n.candidates, cand)
		n.mu.Unlock()
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debugf("Peer connection state changed: %s", s.String())
	})

	return n
}

// gatherLocal installs local as the local description and blocks until
// candidate gathering completes or ctx expires.
func (n *negotiation) gatherLocal(ctx context.Context, local webrtc.SessionDescription) error {
	gatherComplete := webrtc.GatheringCompletePromise(n.pc)
	if err := n.pc.SetLocalDescription(local); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	select {
	case <-gatherComplete:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gathering candidates: %w", ctx.Err())
	}
}

// applyRemote installs the remote descriptor and candidate bundle.
func (n *negotiation) applyRemote(remote envelope.Descriptor, candidates []envelope.Candidate) error {
	desc, err := toSessionDescription(remote)
	if err != nil {
		return err
	}
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	for _, cand := range candidates {
		if err := n.pc.AddICECandidate(toCandidateInit(cand)); err != nil {
			return fmt.Errorf("adding remote candidate: %w", err)
		}
	}
	return nil
}

// watchChannel delivers dc through Opened once the transport reports it
// usable.
func (n *negotiation) watchChannel(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		n.openOnce.Do(func() {
			n.logger.Debugf("Data channel '%s'-'%d' open", dc.Label(), dc.ID())
			n.opened <- newDataChannel(n.pc, dc, n.logger)
		})
	})
}

func (n *negotiation) Descriptor() envelope.Descriptor {
	local := n.pc.LocalDescription()
	if local == nil {
		return envelope.Descriptor{}
	}
	return envelope.Descriptor{Format: local.Type.String(), Body: local.SDP}
}

func (n *negotiation) Candidates() []envelope.Candidate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]envelope.Candidate(nil), n.candidates...)
}

func (n *negotiation) ApplyAnswer(remote envelope.Descriptor, candidates []envelope.Candidate) error {
	return n.applyRemote(remote, candidates)
}

func (n *negotiation) Opened() <-chan session.DataChannel {
	return n.opened
}

func (n *negotiation) Close() error {
	return n.pc.Close()
}
