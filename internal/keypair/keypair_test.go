package keypair

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRoundTrips(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	raw := make([]int, len(priv))
	for i, b := range priv {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte(priv), []byte(loaded))
	assert.Equal(t, []byte(pub), loaded.PublicKey().Bytes())
}

func TestLoadRejectsWrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestShortDisplayTruncates(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	key := solana.PublicKeyFromBytes(pub)
	display := ShortDisplay(key)
	assert.LessOrEqual(t, len(display), 11)
}
