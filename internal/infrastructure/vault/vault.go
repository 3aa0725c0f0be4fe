// Package vault encrypts connector credentials at rest.
//
// Every Encrypt call draws a fresh salt and IV, derives a per-call AES-256 key
// from the master secret with PBKDF2-SHA256, and seals the plaintext with
// AES-GCM. The stored blob is base64(salt || iv || tag || ciphertext).
//
// Losing the master secret makes every stored credential unrecoverable.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/storeshift/backend/internal/domain/migration"
)

const (
	saltSize  = 16
	ivSize    = 12
	tagSize   = 16
	keySize   = 32
	masterLen = 32

	// DefaultIterations is the PBKDF2 work factor
	DefaultIterations = 100_000
)

var errBlobTooShort = errors.New("vault: ciphertext blob too short")

// Vault seals and opens credential blobs
type Vault struct {
	master     []byte
	iterations int
	generated  string
	rand       io.Reader
}

// Option configures a Vault
type Option func(*Vault)

// WithIterations overrides the PBKDF2 iteration count. Values below the
// default are ignored.
func WithIterations(n int) Option {
	return func(v *Vault) {
		if n >= DefaultIterations {
			v.iterations = n
		}
	}
}

// New creates a vault around masterKey. When masterKey is empty a random
// key is generated; Generated returns it so the operator can persist it.
func New(masterKey string, opts ...Option) (*Vault, error) {
	v := &Vault{
		iterations: DefaultIterations,
		rand:       rand.Reader,
	}
	for _, opt := range opts {
		opt(v)
	}

	if masterKey == "" {
		buf := make([]byte, masterLen)
		if _, err := io.ReadFull(v.rand, buf); err != nil {
			return nil, fmt.Errorf("vault: generate master key: %w", err)
		}
		masterKey = hex.EncodeToString(buf)
		v.generated = masterKey
	}
	v.master = []byte(masterKey)
	return v, nil
}

// Generated returns the master key created by New, or "" when one was supplied
func (v *Vault) Generated() string {
	return v.generated
}

// Encrypt seals plaintext into a base64 blob
func (v *Vault) Encrypt(plaintext string) (string, error) {
	buf := make([]byte, saltSize+ivSize)
	if _, err := io.ReadFull(v.rand, buf); err != nil {
		return "", fmt.Errorf("vault: read random: %w", err)
	}
	salt, iv := buf[:saltSize], buf[saltSize:]

	gcm, err := v.cipher(salt)
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	// Seal appends the tag after the ciphertext; the blob stores it first.
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, saltSize+ivSize+tagSize+len(ct))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure, including a tag
// mismatch, is a *migration.DecryptionError.
func (v *Vault) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", &migration.DecryptionError{Err: err}
	}
	if len(raw) < saltSize+ivSize+tagSize {
		return "", &migration.DecryptionError{Err: errBlobTooShort}
	}
	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+ivSize]
	tag := raw[saltSize+ivSize : saltSize+ivSize+tagSize]
	ct := raw[saltSize+ivSize+tagSize:]

	gcm, err := v.cipher(salt)
	if err != nil {
		return "", &migration.DecryptionError{Err: err}
	}
	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", &migration.DecryptionError{Err: err}
	}
	return string(plain), nil
}

// SealAuth encrypts the JSON form of auth
func (v *Vault) SealAuth(auth migration.Auth) (string, error) {
	data, err := json.Marshal(auth)
	if err != nil {
		return "", fmt.Errorf("vault: encode auth: %w", err)
	}
	return v.Encrypt(string(data))
}

// OpenAuth decrypts a blob produced by SealAuth
func (v *Vault) OpenAuth(blob string) (migration.Auth, error) {
	var auth migration.Auth
	if blob == "" {
		return auth, nil
	}
	plain, err := v.Decrypt(blob)
	if err != nil {
		return auth, err
	}
	if err := json.Unmarshal([]byte(plain), &auth); err != nil {
		return auth, &migration.DecryptionError{Err: err}
	}
	return auth, nil
}

func (v *Vault) cipher(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.master, salt, v.iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
