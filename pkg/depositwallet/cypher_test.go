package depositwallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcard-network/depositd/pkg/depositwallet"
)

func TestEncryptDecrypt(t *testing.T) {
	plaintext := "super secret message"
	passphrase := "supersecurekey"

	cyphertext, err := depositwallet.Encrypt(depositwallet.EncryptOpts{
		PlainText:  plaintext,
		Passphrase: passphrase,
	})
	require.NoError(t, err)

	revealedtext, err := depositwallet.Decrypt(depositwallet.DecryptOpts{
		CypherText: cyphertext,
		Passphrase: passphrase,
	})
	require.NoError(t, err)
	assert.Equal(t, plaintext, revealedtext)

	_, err = depositwallet.Decrypt(depositwallet.DecryptOpts{
		CypherText: cyphertext,
		Passphrase: "wrongpassphrase",
	})
	assert.Equal(t, depositwallet.ErrInvalidPassphrase, err)
}

func TestFailingEncrypt(t *testing.T) {
	tests := []struct {
		opts depositwallet.EncryptOpts
		err  error
	}{
		{
			opts: depositwallet.EncryptOpts{
				PlainText:  "",
				Passphrase: "supersecurekey",
			},
			err: depositwallet.ErrNullPlainText,
		},
		{
			opts: depositwallet.EncryptOpts{
				PlainText:  "super secret message",
				Passphrase: "",
			},
			err: depositwallet.ErrNullPassphrase,
		},
	}
	for _, tt := range tests {
		_, err := depositwallet.Encrypt(tt.opts)
		assert.Equal(t, tt.err, err)
	}
}

func TestFailingDecrypt(t *testing.T) {
	tests := []struct {
		opts depositwallet.DecryptOpts
		err  error
	}{
		{
			opts: depositwallet.DecryptOpts{
				CypherText: "",
				Passphrase: "supersecurekey",
			},
			err: depositwallet.ErrNullCypherText,
		},
		{
			opts: depositwallet.DecryptOpts{
				CypherText: "not base64!",
				Passphrase: "supersecurekey",
			},
			err: depositwallet.ErrInvalidCypherText,
		},
		{
			opts: depositwallet.DecryptOpts{
				CypherText: "AAAA",
				Passphrase: "supersecurekey",
			},
			err: depositwallet.ErrInvalidCypherText,
		},
		{
			opts: depositwallet.DecryptOpts{
				CypherText: "AAAA",
				Passphrase: "",
			},
			err: depositwallet.ErrNullPassphrase,
		},
	}
	for _, tt := range tests {
		_, err := depositwallet.Decrypt(tt.opts)
		assert.Equal(t, tt.err, err)
	}
}

func TestSealOpenKey(t *testing.T) {
	_, key := testMasterKey(t)
	passphrase := "Sup3rS3cr3tP4ssw0rd!"

	plain := depositwallet.NewBase64Key(key)
	sealed, err := depositwallet.SealKey(plain, passphrase)
	require.NoError(t, err)
	require.True(t, sealed.IsEncrypted())
	require.NotContains(t, sealed.Data, plain.Data)

	_, err = sealed.Decode()
	require.ErrorIs(t, err, depositwallet.ErrKeyEncrypted)

	opened, err := depositwallet.OpenKey(sealed, passphrase)
	require.NoError(t, err)
	require.Equal(t, plain, opened)

	_, err = depositwallet.OpenKey(sealed, "wrong")
	require.ErrorIs(t, err, depositwallet.ErrInvalidPassphrase)

	same, err := depositwallet.OpenKey(plain, passphrase)
	require.NoError(t, err)
	require.Equal(t, plain, same)

	_, err = depositwallet.SealKey(depositwallet.SniffEncodedKey("[1]"), passphrase)
	require.ErrorIs(t, err, depositwallet.ErrKeyFormat)
}
