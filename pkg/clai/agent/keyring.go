// Package agent – keyring.go provides credential storage using the
// operating system's native keyring (Linux: Secret Service/GNOME Keyring,
// macOS: Keychain, Windows: Credential Manager).
//
// Priority for resolving the API key:
//  1. Encrypted vault (.clai.vault — AES-256-GCM + Argon2id, master password)
//  2. OS keyring (encrypted by the OS, requires user session)
//  3. Environment variable / .env file (handled by the config loader)
//  4. config.yaml value (least secure — plaintext on disk)
package agent

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "clai"

	// keyringAPIKey is the key name for the LLM API key.
	keyringAPIKey = "api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__clai_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// StoreAPIKey saves the LLM API key in the OS keyring.
func StoreAPIKey(apiKey string) error {
	if err := StoreKeyring(keyringAPIKey, apiKey); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	return nil
}

// ResolveAPIKey resolves the API key using the priority chain:
// vault → keyring → env/config (already merged by the loader).
// Updates the config in-place with the resolved value.
// If a vault exists but is locked, it prompts for the master password.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	vault := NewVault(VaultFile)
	if vault.Exists() {
		if !vault.IsUnlocked() {
			password, err := ReadPassword("Vault password: ")
			if err != nil {
				logger.Warn("failed to read vault password", "error", err)
			} else if err := vault.Unlock(password); err != nil {
				logger.Warn("failed to unlock vault", "error", err)
			}
		}

		if vault.IsUnlocked() {
			if val, err := vault.Get(keyringAPIKey); err == nil && val != "" {
				cfg.API.APIKey = val
				logger.Debug("API key loaded from encrypted vault")
				vault.Lock()
				return
			}
			vault.Lock()
		}
	}

	if val := GetKeyring(keyringAPIKey); val != "" {
		cfg.API.APIKey = val
		logger.Debug("API key loaded from OS keyring")
		return
	}

	if cfg.API.APIKey != "" && !IsEnvReference(cfg.API.APIKey) {
		logger.Debug("API key loaded from config/env")
		return
	}

	logger.Warn("no API key found. Set one with: clai config set-key")
}
