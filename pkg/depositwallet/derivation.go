package depositwallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

const derivationPrefix = "deposit_"

// DerivedKeyPair is the one-time keypair of a deposit address. The signing
// material is a secret and must be stored by the caller accordingly.
type DerivedKeyPair struct {
	Address         string
	SigningMaterial []byte
	Index           uint64
}

// PrivateKey returns the signing material as a solana private key.
func (k DerivedKeyPair) PrivateKey() solana.PrivateKey {
	return solana.PrivateKey(k.SigningMaterial)
}

// EncodedKey returns the base64 tagged encoding of the signing material.
func (k DerivedKeyPair) EncodedKey() EncodedKey {
	return NewBase64Key(k.SigningMaterial)
}

// KeyDerivation derives deposit keypairs out of a master key. Each child
// seed is HMAC-SHA256(masterSeed, "deposit_<index>"), therefore deriving
// is a pure function of the master key and the index and a child key does
// not reveal anything about the master nor about its siblings.
type KeyDerivation struct {
	master *MasterKey
}

// NewKeyDerivation returns a KeyDerivation bound to the given master key.
func NewKeyDerivation(master *MasterKey) (*KeyDerivation, error) {
	if master == nil {
		return nil, ErrNullMasterSecret
	}
	return &KeyDerivation{master}, nil
}

// Derive returns the keypair for the given derivation index.
func (d *KeyDerivation) Derive(index uint64) (*DerivedKeyPair, error) {
	mac := hmac.New(sha256.New, d.master.seed())
	mac.Write([]byte(derivationPrefix + strconv.FormatUint(index, 10)))
	seed := mac.Sum(nil)

	key, err := keyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("%w for index %d: %s", ErrDerivation, index, err)
	}

	return &DerivedKeyPair{
		Address:         key.PublicKey().String(),
		SigningMaterial: []byte(key),
		Index:           index,
	}, nil
}

// DeriveDepositAddressWithKey returns the deposit address for the given
// index along with its base64 encoded 64-byte secret key.
func (d *KeyDerivation) DeriveDepositAddressWithKey(
	index uint64,
) (address string, privateKey string, err error) {
	keyPair, err := d.Derive(index)
	if err != nil {
		return "", "", err
	}
	return keyPair.Address,
		base64.StdEncoding.EncodeToString(keyPair.SigningMaterial), nil
}

// MasterPublicAddress returns the address funds are swept to.
func (d *KeyDerivation) MasterPublicAddress() string {
	return d.master.PublicAddress()
}

func keyFromSeed(seed []byte) (solana.PrivateKey, error) {
	if len(seed) != SeedLength {
		return nil, fmt.Errorf(
			"seed must be %d bytes long, got %d", SeedLength, len(seed),
		)
	}
	key := solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
	if _, err := solana.PublicKeyFromBase58(key.PublicKey().String()); err != nil {
		return nil, err
	}
	return key, nil
}
