package depositwallet_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vcard-network/depositd/pkg/depositwallet"
)

func TestSniffEncodedKey(t *testing.T) {
	tests := []struct {
		key      string
		expected depositwallet.KeyEncoding
	}{
		{"[1,2,3]", depositwallet.KeyEncodingJSONArray},
		{"  [1,2,3]", depositwallet.KeyEncodingJSONArray},
		{"AQID", depositwallet.KeyEncodingBase64},
		{"", depositwallet.KeyEncodingBase64},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, depositwallet.SniffEncodedKey(tt.key).Encoding)
	}
}

func TestDecodeKey(t *testing.T) {
	_, key := testMasterKey(t)
	jsonKey, err := json.Marshal(toInts(key))
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		for _, encoded := range []string{
			base64.StdEncoding.EncodeToString(key),
			string(jsonKey),
		} {
			decoded, err := depositwallet.SniffEncodedKey(encoded).Decode()
			require.NoError(t, err)
			require.Equal(t, key, decoded)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			key  depositwallet.EncodedKey
		}{
			{"short base64", depositwallet.NewBase64Key(key[:32])},
			{"bad base64", depositwallet.EncodedKey{
				Encoding: depositwallet.KeyEncodingBase64, Data: "not base64!",
			}},
			{"short array", depositwallet.SniffEncodedKey("[1,2,3]")},
			{"bad array", depositwallet.SniffEncodedKey("[1,2,")},
			{"unknown encoding", depositwallet.EncodedKey{
				Encoding: "hex", Data: "00",
			}},
			{"encrypted", depositwallet.EncodedKey{
				Encoding: depositwallet.KeyEncodingEncrypted, Data: "AAAA",
			}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				decoded, err := tt.key.Decode()
				require.ErrorIs(t, err, depositwallet.ErrKeyFormat)
				require.Nil(t, decoded)
			})
		}
	})
}
