package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rudransh-shrivastava/peer-dial/internal/identity"
)

func writePeersFile(t *testing.T, entries map[string]string) string {
	t.Helper()
	raw, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "peers.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestLoadPeers(t *testing.T) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	path := writePeersFile(t, map[string]string{
		id.Address().Hex(): identity.EncodePublicKey(id.PublicSealKey()),
	})

	dir, err := loadPeers(path)
	if err != nil {
		t.Fatalf("loadPeers failed: %v", err)
	}
	if dir.Len() != 1 {
		t.Errorf("directory has %d peers, want 1", dir.Len())
	}
	if _, err := dir.SealKey(id.Address()); err != nil {
		t.Errorf("SealKey failed for listed peer: %v", err)
	}
}

func TestLoadPeersInvalidAddress(t *testing.T) {
	path := writePeersFile(t, map[string]string{"not-an-address": "04deadbeef"})
	if _, err := loadPeers(path); err == nil {
		t.Fatal("expected loadPeers to reject an invalid address")
	}
}

func TestLoadPeersInvalidKey(t *testing.T) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	path := writePeersFile(t, map[string]string{id.Address().Hex(): "zz"})
	if _, err := loadPeers(path); err == nil {
		t.Fatal("expected loadPeers to reject an invalid seal key")
	}
}

func TestLoadPeersMissingFile(t *testing.T) {
	if _, err := loadPeers(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected loadPeers to fail for a missing file")
	}
}
