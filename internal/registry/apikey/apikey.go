// Package apikey issues and verifies client API keys.
//
// A key has the form nxs_<key id>_<secret>: the 12 hex character key id is
// stored in clear for lookup, and only a bcrypt hash of the whole key is kept.
package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "nexushq/pkg/domain-errors"
)

const (
	Prefix      = "nxs_"
	keyIDLength = 12
	secretBytes = 32
)

// DefaultCost is the bcrypt cost used for new keys.
const DefaultCost = bcrypt.DefaultCost

// Issued is a freshly generated key. Key is shown to the caller exactly once.
type Issued struct {
	Key   string
	KeyID string
	Hash  string
}

// Generate creates a new key and its bcrypt hash.
func Generate(cost int) (Issued, error) {
	idBuf := make([]byte, keyIDLength/2)
	if _, err := rand.Read(idBuf); err != nil {
		return Issued{}, fmt.Errorf("could not generate key id: %w", err)
	}
	secretBuf := make([]byte, secretBytes)
	if _, err := rand.Read(secretBuf); err != nil {
		return Issued{}, fmt.Errorf("could not generate key secret: %w", err)
	}
	keyID := hex.EncodeToString(idBuf)
	key := Prefix + keyID + "_" + base64.RawURLEncoding.EncodeToString(secretBuf)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return Issued{}, fmt.Errorf("could not hash key: %w", err)
	}
	return Issued{Key: key, KeyID: keyID, Hash: string(hash)}, nil
}

// Parse extracts the key id from a presented key.
func Parse(key string) (string, error) {
	rest, ok := strings.CutPrefix(key, Prefix)
	if !ok || len(rest) < keyIDLength+2 || rest[keyIDLength] != '_' {
		return "", dErrors.New(dErrors.CodeUnauthenticated, "malformed API key")
	}
	keyID := rest[:keyIDLength]
	if _, err := hex.DecodeString(keyID); err != nil {
		return "", dErrors.New(dErrors.CodeUnauthenticated, "malformed API key")
	}
	return keyID, nil
}

// Verify checks a presented key against a stored hash.
func Verify(key, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthenticated, "invalid API key")
		}
		return fmt.Errorf("could not verify key: %w", err)
	}
	return nil
}
