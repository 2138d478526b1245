package cose

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
)

// aesKWDefaultIV is the 64-bit integrity check value prefixed to the wrapped
// key by RFC 3394.
var aesKWDefaultIV = [8]byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

// KeyWrapper wraps a content encryption key under a key encryption key, as
// used by the AES Key Wrap recipient algorithms (RFC 3394 / RFC 9053
// section 8.4) and by the AES-KW stage of ECDH-ES/SS + AxxxKW.
type KeyWrapper interface {
	// Algorithm returns the key wrap algorithm associated with the key
	// encryption key.
	Algorithm() Algorithm

	// WrapKey wraps cek, returning the wrapped key.
	WrapKey(cek []byte) ([]byte, error)
}

// KeyUnwrapper reverses a KeyWrapper.
type KeyUnwrapper interface {
	// Algorithm returns the key wrap algorithm associated with the key
	// encryption key.
	Algorithm() Algorithm

	// UnwrapKey unwraps wrapped, returning the content encryption key.
	UnwrapKey(wrapped []byte) ([]byte, error)
}

// NewKeyWrapper returns a KeyWrapper for the given AES Key Wrap algorithm
// and key encryption key.
func NewKeyWrapper(alg Algorithm, kek []byte) (KeyWrapper, error) {
	block, err := aesKWCipher(alg, kek)
	if err != nil {
		return nil, err
	}
	return &aesKW{alg: alg, block: block}, nil
}

// NewKeyUnwrapper returns a KeyUnwrapper for the given AES Key Wrap
// algorithm and key encryption key.
func NewKeyUnwrapper(alg Algorithm, kek []byte) (KeyUnwrapper, error) {
	block, err := aesKWCipher(alg, kek)
	if err != nil {
		return nil, err
	}
	return &aesKW{alg: alg, block: block}, nil
}

func aesKWKeySize(alg Algorithm) (int, error) {
	switch alg {
	case AlgorithmA128KW:
		return 16, nil
	case AlgorithmA192KW:
		return 24, nil
	case AlgorithmA256KW:
		return 32, nil
	default:
		return 0, ErrAlgorithmNotSupported
	}
}

func aesKWCipher(alg Algorithm, kek []byte) (cipher.Block, error) {
	size, err := aesKWKeySize(alg)
	if err != nil {
		return nil, err
	}
	if len(kek) != size {
		return nil, errors.New("cose: invalid AES-KW key encryption key length")
	}
	return aes.NewCipher(kek)
}

type aesKW struct {
	alg   Algorithm
	block cipher.Block
}

func (w *aesKW) Algorithm() Algorithm {
	return w.alg
}

// WrapKey implements the RFC 3394 key wrap algorithm.
func (w *aesKW) WrapKey(cek []byte) ([]byte, error) {
	if len(cek) < 16 || len(cek)%8 != 0 {
		return nil, errors.New("cose: key to wrap must be a multiple of 64 bits, at least 128 bits")
	}
	n := len(cek) / 8

	r := make([][8]byte, n)
	for i := range r {
		copy(r[i][:], cek[i*8:(i+1)*8])
	}

	var a [8]byte
	copy(a[:], aesKWDefaultIV[:])

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			w.block.Encrypt(buf, buf)

			t := uint64(n*j + i)
			var tBytes [8]byte
			binary.BigEndian.PutUint64(tBytes[:], t)
			for k := range a {
				a[k] = buf[k] ^ tBytes[k]
			}
			copy(r[i-1][:], buf[8:])
		}
	}

	out := make([]byte, 0, 8+len(cek))
	out = append(out, a[:]...)
	for _, block := range r {
		out = append(out, block[:]...)
	}
	return out, nil
}

// UnwrapKey implements the RFC 3394 key unwrap algorithm.
func (w *aesKW) UnwrapKey(wrapped []byte) ([]byte, error) {
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, errors.New("cose: wrapped key must be a multiple of 64 bits, at least 192 bits")
	}
	n := len(wrapped)/8 - 1

	var a [8]byte
	copy(a[:], wrapped[:8])

	r := make([][8]byte, n)
	for i := range r {
		copy(r[i][:], wrapped[8+i*8:8+(i+1)*8])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tBytes [8]byte
			binary.BigEndian.PutUint64(tBytes[:], t)
			var xored [8]byte
			for k := range a {
				xored[k] = a[k] ^ tBytes[k]
			}

			copy(buf[:8], xored[:])
			copy(buf[8:], r[i-1][:])
			w.block.Decrypt(buf, buf)

			copy(a[:], buf[:8])
			copy(r[i-1][:], buf[8:])
		}
	}

	if a != aesKWDefaultIV {
		return nil, errors.New("cose: AES key unwrap integrity check failed")
	}

	out := make([]byte, 0, n*8)
	for _, block := range r {
		out = append(out, block[:]...)
	}
	return out, nil
}
