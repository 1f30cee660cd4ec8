package depositwallet

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when the master secret is missing,
	// malformed or of the wrong length.
	ErrConfiguration = errors.New("invalid master key configuration")
	// ErrNullMasterSecret ...
	ErrNullMasterSecret = fmt.Errorf("%w: master secret is missing", ErrConfiguration)
	// ErrMasterKeyMismatch ...
	ErrMasterKeyMismatch = fmt.Errorf(
		"%w: public key does not match the secret seed", ErrConfiguration,
	)
	// ErrDerivation is returned if a child key pair cannot be built out of a
	// derived seed.
	ErrDerivation = errors.New("failed to derive deposit key pair")
	// ErrKeyFormat is returned when signing material is not a recognizable
	// encoding or has not the expected length.
	ErrKeyFormat = errors.New("invalid signing material format")
	// ErrKeyEncrypted is returned when attempting to decode a sealed key
	// without opening it first.
	ErrKeyEncrypted = fmt.Errorf("%w: key is encrypted", ErrKeyFormat)

	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrInvalidPassphrase ...
	ErrInvalidPassphrase = errors.New("passphrase is not valid")
)
