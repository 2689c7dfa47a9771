package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-dial/internal/engine"
	"github.com/rudransh-shrivastava/peer-dial/internal/identity"
	"github.com/rudransh-shrivastava/peer-dial/internal/relay"
	"github.com/rudransh-shrivastava/peer-dial/internal/session"
)

// loadPeers reads the peer directory file: a JSON object mapping account
// addresses to hex-encoded public seal keys.
func loadPeers(path string) (*identity.Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading peer directory: %w", err)
	}
	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing peer directory: %w", err)
	}

	peers := make(map[common.Address]*ecies.PublicKey, len(entries))
	for addr, encoded := range entries {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid peer address %q", addr)
		}
		key, err := identity.DecodePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", addr, err)
		}
		peers[common.HexToAddress(addr)] = key
	}
	return identity.NewDirectory(peers)
}

// newFacade assembles the full stack from the persistent flags: keystore
// identity, peer directory, relay connection and WebRTC engine. The caller
// owns both returned closers.
func newFacade(ctx context.Context, log *logrus.Logger) (*session.Facade, *relay.Client, error) {
	id, err := identity.Load(keystorePath)
	if err != nil {
		return nil, nil, err
	}
	dir, err := loadPeers(peersPath)
	if err != nil {
		return nil, nil, err
	}
	client, err := relay.Dial(ctx, relayAddr, id.Address(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to relay %s: %w", relayAddr, err)
	}

	facade, err := session.New(session.Config{
		Identity:  id,
		Directory: dir,
		Relay:     client,
		Engine:    engine.New(engine.Config{Logger: log}),
		Logger:    log,
		Timeout:   timeout,
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return facade, client, nil
}
