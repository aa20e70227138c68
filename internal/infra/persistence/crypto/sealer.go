// Package crypto seals stored account passwords with AES-GCM under a scrypt-derived key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/coachpo/riftpilot/errs"
)

const (
	sealedPrefix = "v1:"
	keyLength    = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// DefaultSalt is used when the configuration leaves the salt empty.
const DefaultSalt = "riftpilot.accounts.v1"

// Sealer encrypts and decrypts secrets at rest.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES-256 key from secret and salt.
func NewSealer(secret, salt string) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errs.New("crypto", errs.CodeInvalid, errs.WithMessage("sealing secret required"))
	}
	if salt == "" {
		salt = DefaultSalt
	}
	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns "v1:" followed by base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the version prefix or with a bad tag are rejected.
func (s *Sealer) Open(sealed string) (string, error) {
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", errs.New("crypto", errs.CodeDecode, errs.WithMessage("unknown sealed format"))
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errs.New("crypto", errs.CodeDecode, errs.WithMessage("sealed value not base64"), errs.WithCause(err))
	}
	size := s.aead.NonceSize()
	if len(raw) < size+s.aead.Overhead() {
		return "", errs.New("crypto", errs.CodeDecode, errs.WithMessage("sealed value truncated"))
	}
	plain, err := s.aead.Open(nil, raw[:size], raw[size:], nil)
	if err != nil {
		return "", errs.New("crypto", errs.CodeDecode, errs.WithMessage("sealed value rejected"), errs.WithCause(err))
	}
	return string(plain), nil
}
