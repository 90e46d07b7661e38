// Package tokencrypt implements the TokenCodec port with AES-256-GCM and a
// per-blob PBKDF2-derived key.
package tokencrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

const (
	saltSize = 64
	ivSize   = 12
	tagSize  = 16
	keySize  = 32

	// Iterations is the PBKDF2 work factor applied to every blob.
	Iterations = 100_000

	headerSize = saltSize + ivSize + tagSize
)

// ErrEmptySecret is returned by NewCodec when no process secret is configured.
var ErrEmptySecret = errors.New("encryption secret is empty: set LOCALPULSE_SECRET_KEY")

// Compile-time interface satisfaction check.
var _ driven.TokenCodec = (*Codec)(nil)

// Codec encrypts tokens into blobs laid out as salt || iv || tag || ciphertext.
// A fresh salt and IV are drawn for every call, and the AES key is derived
// from the process secret and that salt, so a blob is self-contained given
// the secret and useless without it.
type Codec struct {
	secret     []byte
	iterations int
	rand       io.Reader
}

// NewCodec creates a Codec bound to the process-wide secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{
		secret:     []byte(secret),
		iterations: Iterations,
		rand:       rand.Reader,
	}, nil
}

// Encrypt seals plaintext into a new blob.
func (c *Codec) Encrypt(plaintext string) ([]byte, error) {
	header := make([]byte, saltSize+ivSize, headerSize+len(plaintext))
	if _, err := io.ReadFull(c.rand, header); err != nil {
		return nil, fmt.Errorf("rand salt/iv: %w", err)
	}
	salt, iv := header[:saltSize], header[saltSize:saltSize+ivSize]

	gcm, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	// Seal returns ciphertext || tag; the blob stores the tag first.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	blob := append(header, tag...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt. Any truncation or modified byte
// yields model.ErrDecryptionFailed.
func (c *Codec) Decrypt(blob []byte) (string, error) {
	if len(blob) < headerSize {
		return "", fmt.Errorf("%w: blob too short (%d bytes)", model.ErrDecryptionFailed, len(blob))
	}

	salt := blob[:saltSize]
	iv := blob[saltSize : saltSize+ivSize]
	tag := blob[saltSize+ivSize : headerSize]
	ciphertext := blob[headerSize:]

	gcm, err := c.aead(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrDecryptionFailed, err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.secret, salt, c.iterations, keySize, sha512.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
