package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrConfiguration = errors.New("vault: encryption key, salt or pepper not configured")
	ErrEmptyInput    = errors.New("vault: empty input")
	ErrDecrypt       = errors.New("vault: ciphertext corrupt or key mismatch")
)

const keyDerivationRounds = 4096

// Vault holds the server-side secrets for credential storage.
//
// Two distinct email representations, never to be confused:
// - LookupHash is deterministic (same email, same digest) so login can search
//   by hash without ever storing plaintext.
// - Encrypt is randomized (fresh nonce per call) and reversible; used only
//   when the address must be displayed or mailed.
type Vault struct {
	lookupPepper string
	aead         cipher.AEAD
}

func New(encryptionKey, encryptionSalt, lookupPepper string) (*Vault, error) {
	if strings.TrimSpace(encryptionKey) == "" ||
		strings.TrimSpace(encryptionSalt) == "" ||
		strings.TrimSpace(lookupPepper) == "" {
		return nil, ErrConfiguration
	}

	derived := pbkdf2.Key([]byte(encryptionKey), []byte(encryptionSalt), keyDerivationRounds, 32, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Vault{lookupPepper: lookupPepper, aead: aead}, nil
}

// LookupHash returns the deterministic search digest for an email address.
// Normalization (trim + lower-case) happens here so every caller agrees on
// what "the same address" means.
func (v *Vault) LookupHash(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", ErrEmptyInput
	}
	sum := sha256.Sum256([]byte(normalized + v.lookupPepper))
	return hex.EncodeToString(sum[:]), nil
}

// Encrypt seals the email with AES-256-GCM under a fresh random nonce.
// Two calls on the same input produce different ciphertexts.
func (v *Vault) Encrypt(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", ErrEmptyInput
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(normalized), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if strings.TrimSpace(ciphertext) == "" {
		return "", ErrEmptyInput
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < v.aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// HashPassword hashes a plain password string.
func (v *Vault) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plain password with a stored bcrypt hash.
func (v *Vault) VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
