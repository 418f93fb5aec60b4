// Package keypair loads read-only JSON keypair files (raw secret key
// byte arrays, the solana-keygen convention) and provides a short
// base58 display form for logging, grounded on spec.md §6's keypair
// format note.
package keypair

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Load reads a JSON array of raw secret key bytes from path and returns
// the decoded private key.
func Load(path string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keypair: failed to read %s: %w", path, err)
	}
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("keypair: failed to parse %s as a JSON byte array: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair: %s has %d bytes, want %d", path, len(raw), ed25519.PrivateKeySize)
	}
	return solana.PrivateKey(raw), nil
}

// ShortDisplay renders the first 8 characters of a pubkey's base58
// encoding, for compact log lines.
func ShortDisplay(pk solana.PublicKey) string {
	enc := base58.Encode(pk[:])
	if len(enc) <= 8 {
		return enc
	}
	return enc[:8] + "..."
}
