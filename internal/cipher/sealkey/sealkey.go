// Package sealkey resolves the 16-byte AES-128 key used for
// deterministic property encryption. In the original enclave design the
// key never left hardware; a plain Go process has no SGX seal to lean
// on, so this package falls back to the OS credential store.
package sealkey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name the key is stored under in the
	// OS keychain.
	KeyringService = "encrypted-graph-proxy"

	// KeyringUser is the account name the key is stored under.
	KeyringUser = "seal-key"

	// KeySize is the AES-128 key length in bytes.
	KeySize = 16
)

// Resolve returns the 16-byte seal key, checking envVar first (set by
// tests and reproducible deployments), then the OS keychain, generating
// and persisting a fresh random key on first run if neither is set.
func Resolve(envVar string) ([KeySize]byte, error) {
	var key [KeySize]byte

	if envVar != "" {
		if raw := os.Getenv(envVar); raw != "" {
			decoded, err := hex.DecodeString(raw)
			if err != nil {
				return key, fmt.Errorf("sealkey: %s is not valid hex: %w", envVar, err)
			}
			if len(decoded) != KeySize {
				return key, fmt.Errorf("sealkey: %s must decode to %d bytes, got %d", envVar, KeySize, len(decoded))
			}
			copy(key[:], decoded)
			slog.Default().With("component", "sealkey").Info("seal key loaded from environment", "var", envVar)
			return key, nil
		}
	}

	stored, err := keyring.Get(KeyringService, KeyringUser)
	if err == nil {
		decoded, decErr := hex.DecodeString(stored)
		if decErr != nil || len(decoded) != KeySize {
			return key, fmt.Errorf("sealkey: stored keychain entry is corrupt")
		}
		copy(key[:], decoded)
		slog.Default().With("component", "sealkey").Info("seal key loaded from OS keychain")
		return key, nil
	}
	if err != keyring.ErrNotFound {
		return key, fmt.Errorf("sealkey: failed to read OS keychain: %w", err)
	}

	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("sealkey: failed to generate key: %w", err)
	}
	if err := keyring.Set(KeyringService, KeyringUser, hex.EncodeToString(key[:])); err != nil {
		return key, fmt.Errorf("sealkey: failed to persist generated key to OS keychain: %w", err)
	}

	slog.Default().With("component", "sealkey").Info("generated and stored new seal key", "service", KeyringService)
	return key, nil
}
