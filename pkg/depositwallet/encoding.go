package depositwallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// KeyEncoding discriminates how a stored key is encoded.
type KeyEncoding string

const (
	// KeyEncodingBase64 is the standard base64 of the 64-byte secret.
	KeyEncodingBase64 KeyEncoding = "base64"
	// KeyEncodingJSONArray is the solana-keygen JSON byte array.
	KeyEncodingJSONArray KeyEncoding = "json-array"
	// KeyEncodingEncrypted is a base64 key sealed with a passphrase.
	KeyEncodingEncrypted KeyEncoding = "encrypted"
)

// EncodedKey is signing material tagged with its encoding, so that it can
// be decoded without guessing.
type EncodedKey struct {
	Encoding KeyEncoding `json:"encoding"`
	Data     string      `json:"data"`
}

// NewBase64Key encodes the given signing material.
func NewBase64Key(material []byte) EncodedKey {
	return EncodedKey{
		Encoding: KeyEncodingBase64,
		Data:     base64.StdEncoding.EncodeToString(material),
	}
}

// SniffEncodedKey tags an untagged key. Anything that looks like a JSON
// array literal is considered a byte array, everything else base64.
func SniffEncodedKey(key string) EncodedKey {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "[") {
		return EncodedKey{KeyEncodingJSONArray, key}
	}
	return EncodedKey{KeyEncodingBase64, key}
}

// IsEncrypted returns whether the key must be opened before decoding.
func (k EncodedKey) IsEncrypted() bool {
	return k.Encoding == KeyEncodingEncrypted
}

// Decode returns the private key. The signing material must be exactly
// SigningMaterialLength bytes and its public half must match its seed.
func (k EncodedKey) Decode() (solana.PrivateKey, error) {
	var raw []byte
	switch k.Encoding {
	case KeyEncodingBase64:
		buf, err := base64.StdEncoding.DecodeString(strings.TrimSpace(k.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64: %s", ErrKeyFormat, err)
		}
		raw = buf
	case KeyEncodingJSONArray:
		buf, err := parseJSONByteArray(k.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrKeyFormat, err)
		}
		raw = buf
	case KeyEncodingEncrypted:
		return nil, ErrKeyEncrypted
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrKeyFormat, k.Encoding)
	}

	if len(raw) != SigningMaterialLength {
		return nil, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrKeyFormat, SigningMaterialLength, len(raw),
		)
	}
	key := ed25519.NewKeyFromSeed(raw[:SeedLength])
	if !bytes.Equal(key[SeedLength:], raw[SeedLength:]) {
		return nil, fmt.Errorf(
			"%w: public key does not match the secret seed", ErrKeyFormat,
		)
	}
	return solana.PrivateKey(key), nil
}

func parseJSONByteArray(str string) ([]byte, error) {
	var values []int
	if err := json.Unmarshal([]byte(str), &values); err != nil {
		return nil, fmt.Errorf("invalid JSON byte array: %s", err)
	}
	buf := make([]byte, 0, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("value at position %d is not a byte", i)
		}
		buf = append(buf, byte(v))
	}
	return buf, nil
}
