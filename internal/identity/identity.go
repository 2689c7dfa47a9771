package identity

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// Identity couples a ledger account with a long-lived encryption keypair.
// The account key determines the address the relay observes as the event
// sender; the seal key is used only for envelope confidentiality and never
// for ledger authentication.
type Identity struct {
	account common.Address
	seal    *ecies.PrivateKey
}

// Generate creates a fresh identity: a random account key (immediately
// reduced to its address) and an independent encryption keypair.
func Generate() (*Identity, error) {
	accountKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating account key: %w", err)
	}
	sealKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating seal key: %w", err)
	}
	return &Identity{
		account: crypto.PubkeyToAddress(accountKey.PublicKey),
		seal:    ecies.ImportECDSA(sealKey),
	}, nil
}

// Address returns the ledger account address identifying this party.
func (id *Identity) Address() common.Address {
	return id.account
}

// SealKey returns the private half of the encryption keypair.
func (id *Identity) SealKey() *ecies.PrivateKey {
	return id.seal
}

// PublicSealKey returns the key peers use to encrypt envelopes for this
// identity. Share it out of band together with the address.
func (id *Identity) PublicSealKey() *ecies.PublicKey {
	return &id.seal.PublicKey
}

// keystore is the on-disk form of an identity. The keys are stored in the
// clear; the keystore is a demo convenience, not a vault.
type keystore struct {
	Address string `json:"address"`
	SealKey string `json:"sealKey"`
}

// Save writes the identity to path as JSON.
func (id *Identity) Save(path string) error {
	blob, err := json.MarshalIndent(keystore{
		Address: id.account.Hex(),
		SealKey: hex.EncodeToString(crypto.FromECDSA(id.seal.ExportECDSA())),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0600)
}

// Load reads an identity previously written by Save.
func Load(path string) (*Identity, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystore
	if err := json.Unmarshal(blob, &ks); err != nil {
		return nil, fmt.Errorf("parsing keystore %s: %w", path, err)
	}
	if !common.IsHexAddress(ks.Address) {
		return nil, fmt.Errorf("keystore %s: invalid address %q", path, ks.Address)
	}
	raw, err := hex.DecodeString(ks.SealKey)
	if err != nil {
		return nil, fmt.Errorf("keystore %s: decoding seal key: %w", path, err)
	}
	sealKey, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("keystore %s: parsing seal key: %w", path, err)
	}
	return &Identity{
		account: common.HexToAddress(ks.Address),
		seal:    ecies.ImportECDSA(sealKey),
	}, nil
}

// EncodePublicKey renders a seal public key as hex for configuration files.
func EncodePublicKey(pub *ecies.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(pub.ExportECDSA()))
}

// DecodePublicKey parses a hex seal public key produced by EncodePublicKey.
func DecodePublicKey(encoded string) (*ecies.PublicKey, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return ecies.ImportECDSAPublic(pub), nil
}

var (
	// ErrEmptyDirectory is returned when a directory is constructed with no
	// peers. An empty directory is a configuration fault, not a runtime state.
	ErrEmptyDirectory = errors.New("peer directory must not be empty")

	// ErrUnknownPeer is returned when an address has no directory entry.
	ErrUnknownPeer = errors.New("peer not found in directory")
)

// Directory maps peer addresses to their seal public keys. It is immutable
// after construction; key distribution happens out of band.
type Directory struct {
	peers map[common.Address]*ecies.PublicKey
}

// NewDirectory copies peers into a new directory. At least one entry is
// required.
func NewDirectory(peers map[common.Address]*ecies.PublicKey) (*Directory, error) {
	if len(peers) == 0 {
		return nil, ErrEmptyDirectory
	}
	copied := make(map[common.Address]*ecies.PublicKey, len(peers))
	for addr, pub := range peers {
		if pub == nil {
			return nil, fmt.Errorf("directory entry %s has no public key", addr.Hex())
		}
		copied[addr] = pub
	}
	return &Directory{peers: copied}, nil
}

// SealKey returns the encryption public key for the given peer.
func (d *Directory) SealKey(peer common.Address) (*ecies.PublicKey, error) {
	pub, ok := d.peers[peer]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, peer.Hex())
	}
	return pub, nil
}

// Addresses lists the peers known to the directory.
func (d *Directory) Addresses() []common.Address {
	addrs := make([]common.Address, 0, len(d.peers))
	for addr := range d.peers {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Len reports the number of directory entries.
func (d *Directory) Len() int {
	return len(d.peers)
}
