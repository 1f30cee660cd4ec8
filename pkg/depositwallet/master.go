package depositwallet

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const (
	// SeedLength is the length of an ed25519 private seed.
	SeedLength = ed25519.SeedSize
	// SigningMaterialLength is the length of an exported ed25519 secret key,
	// the 32-byte seed followed by the 32-byte public key.
	SigningMaterialLength = ed25519.PrivateKeySize
)

// MasterKey is the custody keypair every deposit key is derived from and
// every deposit is swept to. It is immutable once built.
type MasterKey struct {
	key solana.PrivateKey
}

// NewMasterKey parses the master secret. Both the base58 form exported by
// wallets and the JSON byte array written by solana-keygen are accepted.
func NewMasterKey(secret string) (*MasterKey, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) <= 0 {
		return nil, ErrNullMasterSecret
	}

	var raw []byte
	if strings.HasPrefix(secret, "[") {
		buf, err := parseJSONByteArray(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfiguration, err)
		}
		raw = buf
	} else {
		buf, err := solana.PrivateKeyFromBase58(secret)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: master secret is not valid base58", ErrConfiguration,
			)
		}
		raw = buf
	}

	if len(raw) != SigningMaterialLength {
		return nil, fmt.Errorf(
			"%w: master secret must be %d bytes long, got %d",
			ErrConfiguration, SigningMaterialLength, len(raw),
		)
	}

	key := ed25519.NewKeyFromSeed(raw[:SeedLength])
	if !bytes.Equal(key[SeedLength:], raw[SeedLength:]) {
		return nil, ErrMasterKeyMismatch
	}

	return &MasterKey{solana.PrivateKey(key)}, nil
}

// LoadMasterKey returns the master key from the given secret or, if empty,
// from the content of the given file.
func LoadMasterKey(secret, path string) (*MasterKey, error) {
	if len(secret) <= 0 && len(path) > 0 {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: unable to read master key file: %s", ErrConfiguration, err,
			)
		}
		secret = string(buf)
	}
	return NewMasterKey(secret)
}

// PublicAddress returns the base58 encoded public key of the master key.
func (m *MasterKey) PublicAddress() string {
	return m.key.PublicKey().String()
}

func (m *MasterKey) seed() []byte {
	seed := make([]byte, SeedLength)
	copy(seed, m.key[:SeedLength])
	return seed
}
