package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	keyLength  = 32
	iterations = 100_000
)

// ErrDecryptionFailed is returned for any undecryptable blob: wrong key,
// tampered ciphertext, or malformed input. Callers must not distinguish causes.
var ErrDecryptionFailed = errors.New("vault: decryption failed")

// Vault provides authenticated encryption for stored secrets.
// The master key is never used as a cipher key directly; each blob derives its
// own key from a random salt via PBKDF2-SHA512.
type Vault struct {
	masterKey []byte
	logger    arbor.ILogger
}

// NewVault creates a vault bound to the master secret
func NewVault(masterKey string, logger arbor.ILogger) (*Vault, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("vault: master key is required")
	}
	return &Vault{
		masterKey: []byte(masterKey),
		logger:    logger,
	}, nil
}

func (v *Vault) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(v.masterKey, salt, iterations, keyLength, sha512.New)
}

// Encrypt seals plaintext into a self-contained base64 blob:
// base64(salt || iv || tag || ciphertext). Empty plaintext encrypts to "".
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: failed to generate salt: %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("vault: failed to generate iv: %w", err)
	}

	aead, err := v.newAEAD(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the auth tag after the ciphertext; the blob stores it in
	// front to stay compatible with the salt|iv|tag|ciphertext layout.
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	blob := make([]byte, 0, saltLength+ivLength+tagLength+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Empty input decrypts to "".
// Any failure surfaces as ErrDecryptionFailed; there is never a silently
// wrong plaintext.
func (v *Vault) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecryptionFailed)
	}
	if len(raw) < saltLength+ivLength+tagLength {
		return "", fmt.Errorf("%w: truncated blob", ErrDecryptionFailed)
	}

	salt := raw[:saltLength]
	iv := raw[saltLength : saltLength+ivLength]
	tag := raw[saltLength+ivLength : saltLength+ivLength+tagLength]
	ciphertext := raw[saltLength+ivLength+tagLength:]

	aead, err := v.newAEAD(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		if v.logger != nil {
			v.logger.Warn().Msg("Credential blob failed authentication")
		}
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

func (v *Vault) newAEAD(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create GCM: %w", err)
	}
	return aead, nil
}
