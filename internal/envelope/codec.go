package envelope

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto/ecies"
)

var (
	// ErrDecrypt means the ciphertext was not produced for this private key
	// or is structurally invalid. On a shared public log this is expected
	// noise: the message was simply not for us.
	ErrDecrypt = errors.New("envelope not decryptable with this key")

	// ErrMalformed means decryption succeeded but the plaintext is not a
	// well-formed envelope. Unlike ErrDecrypt this is worth reporting.
	ErrMalformed = errors.New("malformed envelope plaintext")
)

// Codec seals envelopes for a recipient and opens inbound ciphertexts.
// It is stateless and safe for concurrent use.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// Seal serializes env to canonical JSON and encrypts it for the recipient.
func (c *Codec) Seal(env Envelope, recipient *ecies.PublicKey) ([]byte, error) {
	plaintext, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serializing envelope: %w", err)
	}
	ciphertext, err := ecies.Encrypt(rand.Reader, recipient, plaintext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypting envelope: %w", err)
	}
	return ciphertext, nil
}

// Open decrypts raw with own and parses the plaintext back into an envelope.
func (c *Codec) Open(raw []byte, own *ecies.PrivateKey) (Envelope, error) {
	plaintext, err := own.Decrypt(raw, nil, nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	var env Envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate(env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}

func validate(env Envelope) error {
	switch env.Kind {
	case KindRequest, KindResponse:
	default:
		return fmt.Errorf("unknown kind %q", env.Kind)
	}
	if env.Descriptor.Format == "" || env.Descriptor.Body == "" {
		return errors.New("incomplete descriptor")
	}
	return nil
}
