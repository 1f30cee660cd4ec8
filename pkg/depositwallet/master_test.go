package depositwallet_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vcard-network/depositd/pkg/depositwallet"
)

func TestLoadMasterKey(t *testing.T) {
	_, key := testMasterKey(t)

	jsonKey, err := json.Marshal(toInts(key))
	require.NoError(t, err)

	keyFile := filepath.Join(t.TempDir(), "master.json")
	require.NoError(t, os.WriteFile(keyFile, append(jsonKey, '\n'), 0600))

	t.Run("from file", func(t *testing.T) {
		master, err := depositwallet.LoadMasterKey("", keyFile)
		require.NoError(t, err)
		require.Equal(t, key.PublicKey().String(), master.PublicAddress())
	})

	t.Run("secret takes precedence", func(t *testing.T) {
		master, err := depositwallet.LoadMasterKey(key.String(), "/does/not/exist")
		require.NoError(t, err)
		require.Equal(t, key.PublicKey().String(), master.PublicAddress())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := depositwallet.LoadMasterKey(
			"", filepath.Join(t.TempDir(), "missing.json"),
		)
		require.ErrorIs(t, err, depositwallet.ErrConfiguration)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := depositwallet.LoadMasterKey("", "")
		require.ErrorIs(t, err, depositwallet.ErrNullMasterSecret)
	})
}
