// Package agent – vault.go provides encrypted credential storage using
// AES-256-GCM with Argon2id key derivation. Secrets live in a local file
// (.clai.vault) that is unreadable without the master password. The master
// password is never stored — only a derived key is held in memory while the
// vault is unlocked.
package agent

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/term"
)

const (
	// VaultFile is the default vault file name.
	VaultFile = ".clai.vault"

	// Argon2id parameters (OWASP recommended).
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	argonKeyLen  = 32 // AES-256

	// saltLen is the length of the random salt for Argon2.
	saltLen = 16
)

// VaultEntry holds one encrypted secret.
type VaultEntry struct {
	Nonce      string `json:"nonce"`      // base64-encoded AES-GCM nonce
	Ciphertext string `json:"ciphertext"` // base64-encoded encrypted data
}

// VaultData is the on-disk format of the vault.
type VaultData struct {
	Version int                   `json:"version"`
	Salt    string                `json:"salt"` // base64-encoded Argon2 salt
	Entries map[string]VaultEntry `json:"entries"`
}

// Vault provides encrypted secret storage backed by a local file.
type Vault struct {
	path       string
	data       *VaultData
	derivedKey []byte // 32-byte AES key, only in memory while unlocked
	mu         sync.RWMutex
}

// NewVault creates a vault instance pointing to the given file path.
// The vault is not yet unlocked — call Unlock() or Create() first.
func NewVault(path string) *Vault {
	return &Vault{path: path}
}

// Exists returns true if the vault file exists on disk.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// IsUnlocked returns true if the vault has been unlocked with a password.
func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.derivedKey != nil
}

// Create initializes a new vault with the given master password.
// Returns an error if the vault file already exists.
func (v *Vault) Create(password string) error {
	if v.Exists() {
		return fmt.Errorf("vault already exists at %s", v.path)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.derivedKey = deriveKey(password, salt)
	v.data = &VaultData{
		Version: 1,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Entries: make(map[string]VaultEntry),
	}

	return v.saveLocked()
}

// Unlock loads the vault file and derives the key from the password.
// A wrong password surfaces on the first Get as a decryption failure.
func (v *Vault) Unlock(password string) error {
	raw, err := os.ReadFile(v.path)
	if err != nil {
		return fmt.Errorf("reading vault: %w", err)
	}

	var data VaultData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing vault: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(data.Salt)
	if err != nil {
		return fmt.Errorf("decoding vault salt: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = &data
	v.derivedKey = deriveKey(password, salt)
	return nil
}

// Lock wipes the derived key from memory.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.derivedKey {
		v.derivedKey[i] = 0
	}
	v.derivedKey = nil
}

// Set encrypts and stores a secret under the given name.
func (v *Vault) Set(name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.derivedKey == nil {
		return fmt.Errorf("vault is locked")
	}

	nonce, ciphertext, err := encrypt(v.derivedKey, []byte(value))
	if err != nil {
		return fmt.Errorf("encrypting secret: %w", err)
	}

	v.data.Entries[name] = VaultEntry{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return v.saveLocked()
}

// Get decrypts and returns a secret. A wrong master password shows up here
// as an authentication failure.
func (v *Vault) Get(name string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.derivedKey == nil {
		return "", fmt.Errorf("vault is locked")
	}

	entry, ok := v.data.Entries[name]
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}

	nonce, err := base64.StdEncoding.DecodeString(entry.Nonce)
	if err != nil {
		return "", fmt.Errorf("decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(entry.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	plaintext, err := decrypt(v.derivedKey, nonce, ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypting secret (wrong password?): %w", err)
	}
	return string(plaintext), nil
}

// saveLocked writes the vault to disk. Caller must hold the write lock.
func (v *Vault) saveLocked() error {
	data, err := json.MarshalIndent(v.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling vault: %w", err)
	}
	if err := os.WriteFile(v.path, data, 0o600); err != nil {
		return fmt.Errorf("writing vault: %w", err)
	}
	return nil
}

// deriveKey derives the AES key from a password and salt via Argon2id.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// encrypt seals plaintext with AES-256-GCM under a fresh random nonce.
func encrypt(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

// decrypt opens an AES-256-GCM ciphertext.
func decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// ReadPassword reads a password from the terminal without echoing.
// Falls back to an error when stdin is not a terminal.
func ReadPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Print(prompt)
	password, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}
