package cose

import (
	"crypto"
	"fmt"
	"hash"
	"sync"
)

// Algorithms supported by this library.
//
// When using an algorithm which requires hashing,
// make sure the associated hash function is linked to the binary.
const (
	// RSASSA-PSS w/ SHA-256 by RFC 8230.
	// Requires an available crypto.SHA256.
	AlgorithmPS256 Algorithm = -37

	// RSASSA-PSS w/ SHA-384 by RFC 8230.
	// Requires an available crypto.SHA384.
	AlgorithmPS384 Algorithm = -38

	// RSASSA-PSS w/ SHA-512 by RFC 8230.
	// Requires an available crypto.SHA512.
	AlgorithmPS512 Algorithm = -39

	// ECDSA w/ SHA-256 by RFC 8152.
	// Requires an available crypto.SHA256.
	AlgorithmES256 Algorithm = -7

	// ECDSA w/ SHA-384 by RFC 8152.
	// Requires an available crypto.SHA384.
	AlgorithmES384 Algorithm = -35

	// ECDSA w/ SHA-512 by RFC 8152.
	// Requires an available crypto.SHA512.
	AlgorithmES512 Algorithm = -36

	// PureEdDSA by RFC 8152.
	//
	// Deprecated: use AlgorithmEdDSA instead, which has
	// the same value but with a more accurate name.
	AlgorithmEd25519 Algorithm = -8

	// PureEdDSA by RFC 8152.
	AlgorithmEdDSA Algorithm = -8

	// HMAC w/ SHA-256
	AlgorithmHMAC256_256 Algorithm = 5

	// HMAC w/ SHA-384
	AlgorithmHMAC384_384 Algorithm = 6

	// HMAC w/ SHA-512
	AlgorithmHMAC512_512 Algorithm = 7

	// Reserved value.
	AlgorithmReserved Algorithm = 0

	// AES-GCM mode w/ 128-bit key, 128-bit tag.
	AlgorithmA128GCM Algorithm = 1

	// AES-GCM mode w/ 192-bit key, 128-bit tag.
	AlgorithmA192GCM Algorithm = 2

	// AES-GCM mode w/ 256-bit key, 128-bit tag.
	AlgorithmA256GCM Algorithm = 3

	// Direct use of a shared CEK, no key wrapping performed.
	AlgorithmDirect Algorithm = -6

	// Direct key agreement, HKDF-SHA-256.
	AlgorithmDirectHKDFSHA256 Algorithm = -10

	// Direct key agreement, HKDF-SHA-512.
	AlgorithmDirectHKDFSHA512 Algorithm = -11

	// AES Key Wrap w/ 128-bit key.
	AlgorithmA128KW Algorithm = -3

	// AES Key Wrap w/ 192-bit key.
	AlgorithmA192KW Algorithm = -4

	// AES Key Wrap w/ 256-bit key.
	AlgorithmA256KW Algorithm = -5

	// ECDH ES w/ HKDF - generate key directly, SHA-256.
	AlgorithmECDHES_HKDF256 Algorithm = -25

	// ECDH ES w/ HKDF - generate key directly, SHA-512.
	AlgorithmECDHES_HKDF512 Algorithm = -26

	// ECDH SS w/ HKDF - generate key directly, SHA-256.
	AlgorithmECDHSS_HKDF256 Algorithm = -27

	// ECDH SS w/ HKDF - generate key directly, SHA-512.
	AlgorithmECDHSS_HKDF512 Algorithm = -28

	// ECDH ES w/ HKDF-SHA-256 and AES Key Wrap w/ 128-bit key.
	AlgorithmECDHES_A128KW Algorithm = -29

	// ECDH ES w/ HKDF-SHA-256 and AES Key Wrap w/ 192-bit key.
	AlgorithmECDHES_A192KW Algorithm = -30

	// ECDH ES w/ HKDF-SHA-256 and AES Key Wrap w/ 256-bit key.
	AlgorithmECDHES_A256KW Algorithm = -31

	// ECDH SS w/ HKDF-SHA-256 and AES Key Wrap w/ 128-bit key.
	AlgorithmECDHSS_A128KW Algorithm = -32

	// ECDH SS w/ HKDF-SHA-256 and AES Key Wrap w/ 192-bit key.
	AlgorithmECDHSS_A192KW Algorithm = -33

	// ECDH SS w/ HKDF-SHA-256 and AES Key Wrap w/ 256-bit key.
	AlgorithmECDHSS_A256KW Algorithm = -34
)

// HPKE algorithm identifiers from the COSE-HPKE draft. The value is
// provisional, drawn from the private-use range, pending IANA assignment.
//
// Reference: https://www.ietf.org/archive/id/draft-ietf-cose-hpke-07.html
const (
	// HPKE base mode with DHKEM(X25519, HKDF-SHA256), HKDF-SHA256 and
	// AES-128-GCM, used as a key encryption algorithm.
	AlgorithmHPKEBase Algorithm = -1 - 35000
)

// Algorithms known, but not supported by this library.
//
// Signers and Verifiers requiring the algorithms below are not
// directly supported by this library. They need to be provided
// as an external [cose.Signer] or [cose.Verifier] implementation.
//
// An example use case where RS256 is allowed and used is in
// WebAuthn: https://www.w3.org/TR/webauthn-2/#sctn-sample-registration.
const (
	// RSASSA-PKCS1-v1_5 using SHA-256 by RFC 8812.
	AlgorithmRS256 Algorithm = -257

	// RSASSA-PKCS1-v1_5 using SHA-384 by RFC 8812.
	AlgorithmRS384 Algorithm = -258

	// RSASSA-PKCS1-v1_5 using SHA-512 by RFC 8812.
	AlgorithmRS512 Algorithm = -259

	// HMAC w/ SHA-256 truncated to 64 bits
	AlgorithmHMAC256_64 Algorithm = 4

	// AES-MAC 128-bit key, 64-bit tag
	AlgorithmAESMAC128_64 Algorithm = 14

	// AES-MAC 256-bit key, 64-bit tag
	AlgorithmAESMAC256_64 Algorithm = 15

	// AES-MAC 128-bit key, 128-bit tag
	AlgorithmAESMAC128_128 Algorithm = 25

	// AES-MAC 256-bit key, 128-bit tag
	AlgorithmAESMAC256_128 Algorithm = 26
)

// Algorithm represents an IANA algorithm entry in the COSE Algorithms registry.
//
// # See Also
//
// COSE Algorithms: https://www.iana.org/assignments/cose/cose.xhtml#algorithms
//
// RFC 8152 16.4: https://datatracker.ietf.org/doc/html/rfc8152#section-16.4
type Algorithm int64

// String returns the name of the algorithm
func (a Algorithm) String() string {
	switch a {
	case AlgorithmPS256:
		return "PS256"
	case AlgorithmPS384:
		return "PS384"
	case AlgorithmPS512:
		return "PS512"
	case AlgorithmRS256:
		return "RS256"
	case AlgorithmRS384:
		return "RS384"
	case AlgorithmRS512:
		return "RS512"
	case AlgorithmES256:
		return "ES256"
	case AlgorithmES384:
		return "ES384"
	case AlgorithmES512:
		return "ES512"
	case AlgorithmEdDSA:
		// As stated in RFC 8152 8.2, only the pure EdDSA version is used for
		// COSE.
		return "EdDSA"
	case AlgorithmHMAC256_64:
		return "HMAC256/64"
	case AlgorithmHMAC256_256:
		return "HMAC256/256"
	case AlgorithmHMAC384_384:
		return "HMAC384/384"
	case AlgorithmHMAC512_512:
		return "HMAC512/512"
	case AlgorithmAESMAC128_64:
		return "AESMAC128/64"
	case AlgorithmAESMAC256_64:
		return "AESMAC256/64"
	case AlgorithmAESMAC128_128:
		return "AESMAC128/128"
	case AlgorithmAESMAC256_128:
		return "AESMAC256/128"
	case AlgorithmA128GCM:
		return "A128GCM"
	case AlgorithmA192GCM:
		return "A192GCM"
	case AlgorithmA256GCM:
		return "A256GCM"
	case AlgorithmDirect:
		return "direct"
	case AlgorithmDirectHKDFSHA256:
		return "direct+HKDF-SHA-256"
	case AlgorithmDirectHKDFSHA512:
		return "direct+HKDF-SHA-512"
	case AlgorithmA128KW:
		return "A128KW"
	case AlgorithmA192KW:
		return "A192KW"
	case AlgorithmA256KW:
		return "A256KW"
	case AlgorithmECDHES_HKDF256:
		return "ECDH-ES+HKDF-256"
	case AlgorithmECDHES_HKDF512:
		return "ECDH-ES+HKDF-512"
	case AlgorithmECDHSS_HKDF256:
		return "ECDH-SS+HKDF-256"
	case AlgorithmECDHSS_HKDF512:
		return "ECDH-SS+HKDF-512"
	case AlgorithmECDHES_A128KW:
		return "ECDH-ES+A128KW"
	case AlgorithmECDHES_A192KW:
		return "ECDH-ES+A192KW"
	case AlgorithmECDHES_A256KW:
		return "ECDH-ES+A256KW"
	case AlgorithmECDHSS_A128KW:
		return "ECDH-SS+A128KW"
	case AlgorithmECDHSS_A192KW:
		return "ECDH-SS+A192KW"
	case AlgorithmECDHSS_A256KW:
		return "ECDH-SS+A256KW"
	case AlgorithmHPKEBase:
		return "HPKE-Base"
	default:
		extMu.RLock()
		defer extMu.RUnlock()
		if ext, ok := extAlgorithms[a]; ok {
			return ext.Name
		}
		return fmt.Sprintf("unknown algorithm value %d", a)
	}
}

// known reports whether a is one of the algorithms this library registers
// constants for. The Reserved value 0 is deliberately excluded.
func (a Algorithm) known() bool {
	switch a {
	case AlgorithmPS256, AlgorithmPS384, AlgorithmPS512,
		AlgorithmRS256, AlgorithmRS384, AlgorithmRS512,
		AlgorithmES256, AlgorithmES384, AlgorithmES512,
		AlgorithmEdDSA,
		AlgorithmHMAC256_64, AlgorithmHMAC256_256,
		AlgorithmHMAC384_384, AlgorithmHMAC512_512,
		AlgorithmAESMAC128_64, AlgorithmAESMAC256_64,
		AlgorithmAESMAC128_128, AlgorithmAESMAC256_128,
		AlgorithmA128GCM, AlgorithmA192GCM, AlgorithmA256GCM,
		AlgorithmDirect,
		AlgorithmDirectHKDFSHA256, AlgorithmDirectHKDFSHA512,
		AlgorithmA128KW, AlgorithmA192KW, AlgorithmA256KW,
		AlgorithmECDHES_HKDF256, AlgorithmECDHES_HKDF512,
		AlgorithmECDHSS_HKDF256, AlgorithmECDHSS_HKDF512,
		AlgorithmECDHES_A128KW, AlgorithmECDHES_A192KW, AlgorithmECDHES_A256KW,
		AlgorithmECDHSS_A128KW, AlgorithmECDHSS_A192KW, AlgorithmECDHSS_A256KW,
		AlgorithmHPKEBase:
		return true
	default:
		return false
	}
}

// extAlgorithm describes an extended algorithm registered by the
// application via RegisterAlgorithm.
type extAlgorithm struct {
	// Name of the algorithm.
	Name string

	// Hash is the hash algorithm associated with the algorithm. If
	// HashFunc is present, Hash is ignored. If HashFunc is absent and
	// Hash is set to 0, no hash is used.
	Hash crypto.Hash

	// HashFunc is the hash algorithm associated with the algorithm,
	// preferred when the hash is not one of the golang built-in crypto
	// hashes. For regular scenarios, use Hash instead.
	HashFunc func() hash.Hash
}

var (
	extMu         sync.RWMutex
	extAlgorithms map[Algorithm]extAlgorithm
)

// RegisterAlgorithm provides extensibility for the COSE library to support
// private algorithms or algorithms not yet registered in IANA. The existing
// algorithms cannot be re-registered. The parameter `hash` is the hash
// algorithm associated with the algorithm. If hashFunc is present, hash is
// ignored. If hashFunc is absent and hash is set to 0, no hash is used for
// this algorithm. The parameter `hashFunc` is preferred in the case that
// the hash algorithm is not supported by the golang built-in crypto hashes.
// It is safe for concurrent use.
func RegisterAlgorithm(alg Algorithm, name string, hash crypto.Hash, hashFunc func() hash.Hash) error {
	if alg.known() {
		return ErrAlgorithmRegistered
	}
	extMu.Lock()
	defer extMu.Unlock()
	if _, ok := extAlgorithms[alg]; ok {
		return ErrAlgorithmRegistered
	}
	if extAlgorithms == nil {
		extAlgorithms = make(map[Algorithm]extAlgorithm)
	}
	extAlgorithms[alg] = extAlgorithm{
		Name:     name,
		Hash:     hash,
		HashFunc: hashFunc,
	}
	return nil
}

// hashFunc returns the hash associated with the algorithm supported by this
// library.
func (a Algorithm) hashFunc() crypto.Hash {
	switch a {
	case AlgorithmPS256, AlgorithmES256, AlgorithmAESMAC256_64,
		AlgorithmHMAC256_256:
		return crypto.SHA256
	case AlgorithmPS384, AlgorithmES384, AlgorithmHMAC384_384:
		return crypto.SHA384
	case AlgorithmPS512, AlgorithmES512, AlgorithmHMAC512_512:
		return crypto.SHA512
	default:
		return 0
	}
}

// computeHash computes the digest using the hash specified in the
// algorithm. Algorithms with no associated hash, such as EdDSA, return
// data unchanged for the signing primitive to consume whole.
func (a Algorithm) computeHash(data []byte) ([]byte, error) {
	if h := a.hashFunc(); h != 0 {
		return computeHash(h, data)
	}
	if a.known() {
		return data, nil
	}
	extMu.RLock()
	ext, ok := extAlgorithms[a]
	extMu.RUnlock()
	if !ok {
		return nil, ErrUnknownAlgorithm
	}
	if ext.HashFunc != nil {
		hh := ext.HashFunc()
		if _, err := hh.Write(data); err != nil {
			return nil, err
		}
		return hh.Sum(nil), nil
	}
	if ext.Hash == 0 {
		return data, nil
	}
	return computeHash(ext.Hash, data)
}

// computeHash computes the digest using the given hash.
func computeHash(h crypto.Hash, data []byte) ([]byte, error) {
	if !h.Available() {
		return nil, ErrUnavailableHashFunc
	}
	hh := h.New()
	if _, err := hh.Write(data); err != nil {
		return nil, err
	}
	return hh.Sum(nil), nil
}
