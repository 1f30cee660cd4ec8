package depositwallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/scrypt"
)

const saltLength = 32

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText  string
	Passphrase string
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Encrypt encrypts (with AES-256-GCM) a plaintext with a key stretched out
// of the provided passphrase. A fresh random salt is generated for every
// call and appended to the cyphertext.
func Encrypt(opts EncryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	key, salt, err := DeriveKey([]byte(opts.Passphrase), nil)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", err
	}

	cyphertext := gcm.Seal(nonce, nonce, []byte(opts.PlainText), nil)
	cyphertext = append(cyphertext, salt...)

	return base64.StdEncoding.EncodeToString(cyphertext), nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	CypherText string
	Passphrase string
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	if _, err := base64.StdEncoding.DecodeString(o.CypherText); err != nil {
		return ErrInvalidCypherText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt decrypts a cyphertext produced by Encrypt.
func Decrypt(opts DecryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	data, _ := base64.StdEncoding.DecodeString(opts.CypherText)
	if len(data) <= saltLength {
		return "", ErrInvalidCypherText
	}
	salt, data := data[len(data)-saltLength:], data[:len(data)-saltLength]

	key, _, err := DeriveKey([]byte(opts.Passphrase), salt)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrInvalidCypherText
	}
	nonce, text := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, text, nil)
	if err != nil {
		return "", ErrInvalidPassphrase
	}
	return string(plaintext), nil
}

// DeriveKey derives a 32 byte array key from a custom passhprase. A random
// salt is generated if none is given.
func DeriveKey(passphrase, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	// 2^15 is the interactive-login cost recommended by the scrypt paper,
	// keys are opened on every sweep.
	key, err := scrypt.Key(passphrase, salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}

// SealKey encrypts the given key with the passphrase. The key is decoded
// first so that only valid signing material gets sealed.
func SealKey(key EncodedKey, passphrase string) (EncodedKey, error) {
	privateKey, err := key.Decode()
	if err != nil {
		return EncodedKey{}, err
	}
	plain := NewBase64Key(privateKey)

	cypher, err := Encrypt(EncryptOpts{
		PlainText:  plain.Data,
		Passphrase: passphrase,
	})
	if err != nil {
		return EncodedKey{}, err
	}
	return EncodedKey{KeyEncodingEncrypted, cypher}, nil
}

// OpenKey reverts SealKey. Keys that are not encrypted are returned as is.
func OpenKey(key EncodedKey, passphrase string) (EncodedKey, error) {
	if !key.IsEncrypted() {
		return key, nil
	}
	plain, err := Decrypt(DecryptOpts{
		CypherText: key.Data,
		Passphrase: passphrase,
	})
	if err != nil {
		return EncodedKey{}, err
	}
	return EncodedKey{KeyEncodingBase64, plain}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
