package httpinterface

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thanhpk/randstr"
)

// APITokenFile is the name of the file holding the bearer token of the API.
const APITokenFile = "api.token"

// LoadOrCreateAPIToken returns the token stored in datadir, generating and
// storing a new one at first start.
func LoadOrCreateAPIToken(datadir string) (string, error) {
	path := filepath.Join(datadir, APITokenFile)

	buf, err := os.ReadFile(path)
	if err == nil {
		token := strings.TrimSpace(string(buf))
		if len(token) <= 0 {
			return "", fmt.Errorf("api token file %s is empty", path)
		}
		return token, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read api token: %w", err)
	}

	token := randstr.Hex(32)
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return "", fmt.Errorf("failed to write api token: %w", err)
	}
	return token, nil
}
