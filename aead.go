package cose

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// Encrypter seals a plaintext into an authenticated ciphertext under a
// content encryption key, used to produce the ciphertext field of
// COSE_Encrypt0 and COSE_Encrypt messages.
type Encrypter interface {
	// Algorithm returns the content encryption algorithm associated with
	// the key.
	Algorithm() Algorithm

	// NonceSize returns the size in bytes of the nonce expected by Encrypt.
	NonceSize() int

	// Encrypt seals plaintext, authenticating additionalData, and returns
	// the ciphertext. nonce must be exactly NonceSize bytes and MUST NOT
	// be reused for the same key.
	Encrypt(nonce, plaintext, additionalData []byte) ([]byte, error)
}

// Decrypter opens a ciphertext produced by an Encrypter using the same
// content encryption key.
type Decrypter interface {
	// Algorithm returns the content encryption algorithm associated with
	// the key.
	Algorithm() Algorithm

	// NonceSize returns the size in bytes of the nonce expected by Decrypt.
	NonceSize() int

	// Decrypt opens ciphertext, verifying additionalData, and returns the
	// plaintext. It returns ErrDecryption if authentication fails.
	Decrypt(nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewEncrypter returns an Encrypter for the given AEAD content encryption
// algorithm and key. Only the AES-GCM family registered by RFC 9053 is
// supported directly; other AEAD algorithms require an external Encrypter
// implementation.
func NewEncrypter(alg Algorithm, key []byte) (Encrypter, error) {
	aead, err := newAESGCM(alg, key)
	if err != nil {
		return nil, err
	}
	return &aesGCMCipher{alg: alg, aead: aead}, nil
}

// NewDecrypter returns a Decrypter for the given AEAD content encryption
// algorithm and key. Only the AES-GCM family registered by RFC 9053 is
// supported directly; other AEAD algorithms require an external Decrypter
// implementation.
func NewDecrypter(alg Algorithm, key []byte) (Decrypter, error) {
	aead, err := newAESGCM(alg, key)
	if err != nil {
		return nil, err
	}
	return &aesGCMCipher{alg: alg, aead: aead}, nil
}

func aesGCMKeySize(alg Algorithm) (int, error) {
	switch alg {
	case AlgorithmA128GCM:
		return 16, nil
	case AlgorithmA192GCM:
		return 24, nil
	case AlgorithmA256GCM:
		return 32, nil
	default:
		return 0, ErrAlgorithmNotSupported
	}
}

func newAESGCM(alg Algorithm, key []byte) (cipher.AEAD, error) {
	size, err := aesGCMKeySize(alg)
	if err != nil {
		return nil, err
	}
	if len(key) != size {
		return nil, errors.New("cose: invalid AES-GCM key length")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

type aesGCMCipher struct {
	alg  Algorithm
	aead cipher.AEAD
}

func (c *aesGCMCipher) Algorithm() Algorithm {
	return c.alg
}

func (c *aesGCMCipher) NonceSize() int {
	return c.aead.NonceSize()
}

func (c *aesGCMCipher) Encrypt(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, errors.New("cose: invalid nonce length")
	}
	return c.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

func (c *aesGCMCipher) Decrypt(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, errors.New("cose: invalid nonce length")
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// generateCEK returns a random content encryption key sized for alg.
func generateCEK(alg Algorithm) ([]byte, error) {
	size, err := aesGCMKeySize(alg)
	if err != nil {
		return nil, err
	}
	cek := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, cek); err != nil {
		return nil, err
	}
	return cek, nil
}

// generateNonce returns a random nonce sized for the given Encrypter.
func generateNonce(enc Encrypter) ([]byte, error) {
	nonce := make([]byte, enc.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}
