package cose

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/hkdf"
)

// ecdhAlgorithmParams resolves the HKDF hash and, for the composed
// AES-KW variants, the key wrap algorithm associated with an ECDH-ES/SS
// algorithm identifier. hashAlg is returned as one of the HMAC algorithm
// constants purely to reuse Algorithm.hashFunc's hash lookup table; no
// HMAC is computed.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9053#section-5.2
func ecdhAlgorithmParams(alg Algorithm) (hashAlg Algorithm, wrapAlg Algorithm, err error) {
	switch alg {
	case AlgorithmECDHES_HKDF256:
		return AlgorithmHMAC256_256, AlgorithmReserved, nil
	case AlgorithmECDHES_HKDF512:
		return AlgorithmHMAC512_512, AlgorithmReserved, nil
	case AlgorithmECDHSS_HKDF256:
		return AlgorithmHMAC256_256, AlgorithmReserved, nil
	case AlgorithmECDHSS_HKDF512:
		return AlgorithmHMAC512_512, AlgorithmReserved, nil
	case AlgorithmECDHES_A128KW:
		return AlgorithmHMAC256_256, AlgorithmA128KW, nil
	case AlgorithmECDHES_A192KW:
		return AlgorithmHMAC256_256, AlgorithmA192KW, nil
	case AlgorithmECDHES_A256KW:
		return AlgorithmHMAC256_256, AlgorithmA256KW, nil
	case AlgorithmECDHSS_A128KW:
		return AlgorithmHMAC256_256, AlgorithmA128KW, nil
	case AlgorithmECDHSS_A192KW:
		return AlgorithmHMAC256_256, AlgorithmA192KW, nil
	case AlgorithmECDHSS_A256KW:
		return AlgorithmHMAC256_256, AlgorithmA256KW, nil
	default:
		return AlgorithmReserved, AlgorithmReserved, ErrAlgorithmNotSupported
	}
}

// ecdhKeyLength returns the number of derived key bytes needed for alg,
// either the wrap algorithm's key size or, for the direct HKDF variants,
// contentKeyLength (the size of the content encryption key itself).
func ecdhKeyLength(wrapAlg Algorithm, contentKeyLength int) (int, error) {
	if wrapAlg == AlgorithmReserved {
		return contentKeyLength, nil
	}
	return aesKWKeySize(wrapAlg)
}

// ecdhStaticECDHKey converts the EC2 static key material of k to a
// crypto/ecdh key pair (public-only if k carries no private coordinate).
func ecdhStaticECDHKey(k *Key) (*ecdh.PublicKey, *ecdh.PrivateKey, error) {
	if k == nil {
		return nil, nil, errors.New("cose: no recipient static key")
	}
	crv, _, _, d := k.EC2()
	if crv == CurveReserved {
		return nil, nil, errInvalidCurve
	}
	if len(d) > 0 {
		priv, err := k.PrivateKey()
		if err != nil {
			return nil, nil, err
		}
		ePriv, err := priv.(*ecdsa.PrivateKey).ECDH()
		if err != nil {
			return nil, nil, err
		}
		return ePriv.PublicKey(), ePriv, nil
	}

	pub, err := k.PublicKey()
	if err != nil {
		return nil, nil, err
	}
	ePub, err := pub.(*ecdsa.PublicKey).ECDH()
	if err != nil {
		return nil, nil, err
	}
	return ePub, nil, nil
}

// ecdhCurveToElliptic maps a crypto/ecdh.Curve back to its crypto/elliptic
// equivalent, needed to rebuild an *ecdsa.PublicKey from raw ECDH point
// bytes so it can be wrapped in a COSE_Key via NewKeyFromPublic.
func ecdhCurveToElliptic(curve ecdh.Curve) (elliptic.Curve, error) {
	switch curve {
	case ecdh.P256():
		return elliptic.P256(), nil
	case ecdh.P384():
		return elliptic.P384(), nil
	case ecdh.P521():
		return elliptic.P521(), nil
	default:
		return nil, errInvalidCurve
	}
}

// ecdhPublicKeyToECDSA converts a crypto/ecdh.PublicKey to the
// *ecdsa.PublicKey shape NewKeyFromPublic expects.
func ecdhPublicKeyToECDSA(pub *ecdh.PublicKey) (*ecdsa.PublicKey, error) {
	curve, err := ecdhCurveToElliptic(pub.Curve())
	if err != nil {
		return nil, err
	}
	x, y := elliptic.Unmarshal(curve, pub.Bytes())
	if x == nil {
		return nil, errors.New("cose: invalid ECDH public key point")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// buildKDFContext constructs the COSE_KDF_Context structure used as HKDF
// "info" input, binding the derived key to the algorithm and key length.
// partyUNonce and partyVNonce carry the optional PartyU/PartyV nonce
// fields of PartyInfo (RFC 9053 section 5.2); either may be nil when the
// corresponding nonce is not in use.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9053#section-5.2
func buildKDFContext(alg Algorithm, keyLength int, protected cbor.RawMessage, partyUNonce, partyVNonce []byte) ([]byte, error) {
	partyUInfo := []any{nil, kdfNonce(partyUNonce), nil}
	partyVInfo := []any{nil, kdfNonce(partyVNonce), nil}
	suppPubInfo := []any{keyLength * 8, []byte(protected)}
	kdfContext := []any{
		int64(alg),
		partyUInfo,
		partyVInfo,
		suppPubInfo,
	}
	return encMode.Marshal(kdfContext)
}

// kdfNonce returns nonce as an any suitable for a PartyInfo slot: a CBOR
// null when absent rather than an ambiguous zero-length byte string.
func kdfNonce(nonce []byte) any {
	if len(nonce) == 0 {
		return nil
	}
	return []byte(nonce)
}

// headerNonceOrDefault returns the byte string stored under label in
// unprotected if present, otherwise fallback. Used to prefer a PartyInfo
// nonce carried in a recipient's headers over one configured out of band.
func headerNonceOrDefault(unprotected UnprotectedHeader, label int64, fallback []byte) []byte {
	if v, ok := unprotected[label]; ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return fallback
}

func deriveECDHKey(hashAlg Algorithm, sharedSecret, salt, context []byte, keyLength int) ([]byte, error) {
	h := hashAlg.hashFunc()
	if !h.Available() {
		return nil, ErrUnavailableHashFunc
	}
	reader := hkdf.New(h.New, sharedSecret, salt, context)
	out := make([]byte, keyLength)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// generateSalt returns a random salt sized to hashAlg's digest output, as
// required by RFC 9053 section 5.2 for the HKDF-Extract step: without a
// random salt, ECDH-SS agreement (which has no ephemeral key to vary the
// shared secret per message) would derive the same KEK for every message
// between the same static-static pair.
func generateSalt(hashAlg Algorithm) ([]byte, error) {
	h := hashAlg.hashFunc()
	if !h.Available() {
		return nil, ErrUnavailableHashFunc
	}
	salt := make([]byte, h.Size())
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// ecdhESSender implements the sender side of an ECDH-ES/SS recipient:
// ephemeral-static (or static-static) key agreement followed by optional
// AES Key Wrap.
type ecdhESSender struct {
	alg              Algorithm
	recipientPub     *ecdh.PublicKey
	senderStaticPriv *ecdh.PrivateKey // only set for ECDH-SS
	contentKeyLength int
	partyUNonce      []byte
	partyVNonce      []byte
	directCEK        []byte
}

// NewECDHESSender returns a RecipientEncrypter performing ECDH-ES/SS key
// agreement against the recipient's static public key, followed by HKDF
// (direct variants) or HKDF + AES Key Wrap (AxxxKW variants).
//
// senderStatic is nil for ephemeral-static (ECDH-ES) agreement, and the
// sender's own static key for static-static (ECDH-SS) agreement.
// contentKeyLength is the length in bytes of the content encryption key,
// used directly as the derived key length for the HKDF-only variants.
// partyUNonce and partyVNonce are optional PartyInfo nonces (RFC 9053
// section 5.2); either may be nil. When set, EncryptKey carries them in
// the recipient's unprotected headers so NewECDHESRecipient can recover
// them without being configured with the same values out of band.
func NewECDHESSender(alg Algorithm, recipientStatic *Key, senderStatic *Key, contentKeyLength int, partyUNonce, partyVNonce []byte) (RecipientEncrypter, error) {
	if _, _, err := ecdhAlgorithmParams(alg); err != nil {
		return nil, err
	}
	recipientPub, _, err := ecdhStaticECDHKey(recipientStatic)
	if err != nil {
		return nil, err
	}

	s := &ecdhESSender{
		alg:              alg,
		recipientPub:     recipientPub,
		contentKeyLength: contentKeyLength,
		partyUNonce:      partyUNonce,
		partyVNonce:      partyVNonce,
	}
	if senderStatic != nil {
		_, senderPriv, err := ecdhStaticECDHKey(senderStatic)
		if err != nil {
			return nil, err
		}
		if senderPriv == nil {
			return nil, errors.New("cose: ECDH-SS requires a private sender static key")
		}
		s.senderStaticPriv = senderPriv
	}
	return s, nil
}

func (s *ecdhESSender) Algorithm() Algorithm {
	return s.alg
}

func (s *ecdhESSender) EncryptKey(cek []byte) ([]byte, UnprotectedHeader, error) {
	hashAlg, wrapAlg, err := ecdhAlgorithmParams(s.alg)
	if err != nil {
		return nil, nil, err
	}
	keyLength, err := ecdhKeyLength(wrapAlg, s.contentKeyLength)
	if err != nil {
		return nil, nil, err
	}

	unprotected := UnprotectedHeader{}

	agreePriv := s.senderStaticPriv
	if agreePriv == nil {
		ephemeralPriv, err := s.recipientPub.Curve().GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		agreePriv = ephemeralPriv

		ecdsaPub, err := ecdhPublicKeyToECDSA(ephemeralPriv.PublicKey())
		if err != nil {
			return nil, nil, err
		}
		ephemeralKey, err := NewKeyFromPublic(ecdsaPub)
		if err != nil {
			return nil, nil, err
		}
		unprotected[HeaderLabelEphemeralKey] = ephemeralKey
	}

	sharedSecret, err := agreePriv.ECDH(s.recipientPub)
	if err != nil {
		return nil, nil, err
	}

	salt, err := generateSalt(hashAlg)
	if err != nil {
		return nil, nil, err
	}
	unprotected[HeaderLabelSalt] = salt
	if len(s.partyUNonce) > 0 {
		unprotected[HeaderLabelPartyUNonce] = s.partyUNonce
	}
	if len(s.partyVNonce) > 0 {
		unprotected[HeaderLabelPartyVNonce] = s.partyVNonce
	}

	protected := ProtectedHeader{}
	protected.SetAlgorithm(s.alg)
	protectedBytes, err := protected.MarshalCBOR()
	if err != nil {
		return nil, nil, err
	}
	context, err := buildKDFContext(s.alg, keyLength, protectedBytes, s.partyUNonce, s.partyVNonce)
	if err != nil {
		return nil, nil, err
	}
	derived, err := deriveECDHKey(hashAlg, sharedSecret, salt, context, keyLength)
	if err != nil {
		return nil, nil, err
	}

	if wrapAlg == AlgorithmReserved {
		// Direct HKDF variant: the derived bytes are the content encryption
		// key, carried implicitly, so the recipient ciphertext is empty and
		// the caller must use derived (not cek) to seal the message body.
		s.directCEK = derived
		return nil, unprotected, nil
	}

	wrapper, err := NewKeyWrapper(wrapAlg, derived)
	if err != nil {
		return nil, nil, err
	}
	wrapped, err := wrapper.WrapKey(cek)
	if err != nil {
		return nil, nil, err
	}
	return wrapped, unprotected, nil
}

// CEK returns the content encryption key derived by the most recent call
// to EncryptKey for a direct (non-key-wrapped) ECDH-ES/SS algorithm.
func (s *ecdhESSender) CEK() []byte {
	return s.directCEK
}

// ecdhESRecipient implements the receiver side of an ECDH-ES/SS recipient.
type ecdhESRecipient struct {
	alg              Algorithm
	staticPriv       *ecdh.PrivateKey
	senderStaticPub  *ecdh.PublicKey // only set for ECDH-SS
	contentKeyLength int
	partyUNonce      []byte
	partyVNonce      []byte
}

// NewECDHESRecipient returns a RecipientDecrypter performing ECDH-ES/SS
// key agreement using the recipient's own static private key.
//
// senderStatic is nil for ephemeral-static (ECDH-ES) agreement, where the
// ephemeral public key travels in the recipient's headers, and the
// sender's static public key for static-static (ECDH-SS) agreement.
// partyUNonce and partyVNonce are the same PartyInfo nonces passed to
// NewECDHESSender, used as a fallback when the recipient's headers don't
// carry them (sender and receiver agreed on them out of band); when the
// headers do carry a nonce, DecryptKey prefers the header value.
func NewECDHESRecipient(alg Algorithm, recipientStatic *Key, senderStatic *Key, contentKeyLength int, partyUNonce, partyVNonce []byte) (RecipientDecrypter, error) {
	if _, _, err := ecdhAlgorithmParams(alg); err != nil {
		return nil, err
	}
	_, staticPriv, err := ecdhStaticECDHKey(recipientStatic)
	if err != nil {
		return nil, err
	}
	if staticPriv == nil {
		return nil, errors.New("cose: ECDH recipient requires a private static key")
	}

	r := &ecdhESRecipient{
		alg:              alg,
		staticPriv:       staticPriv,
		contentKeyLength: contentKeyLength,
		partyUNonce:      partyUNonce,
		partyVNonce:      partyVNonce,
	}
	if senderStatic != nil {
		senderPub, _, err := ecdhStaticECDHKey(senderStatic)
		if err != nil {
			return nil, err
		}
		r.senderStaticPub = senderPub
	}
	return r, nil
}

func (r *ecdhESRecipient) Algorithm() Algorithm {
	return r.alg
}

func (r *ecdhESRecipient) DecryptKey(headers Headers, ciphertext []byte) ([]byte, error) {
	hashAlg, wrapAlg, err := ecdhAlgorithmParams(r.alg)
	if err != nil {
		return nil, err
	}
	keyLength, err := ecdhKeyLength(wrapAlg, r.contentKeyLength)
	if err != nil {
		return nil, err
	}

	peerPub := r.senderStaticPub
	if peerPub == nil {
		v, ok := headers.Unprotected[HeaderLabelEphemeralKey]
		if !ok {
			return nil, fmt.Errorf("%w: missing ephemeral key", ErrRecipientDeclined)
		}
		ephemeralKey, ok := v.(*Key)
		if !ok {
			return nil, ErrRecipientDeclined
		}
		pub, _, err := ecdhStaticECDHKey(ephemeralKey)
		if err != nil {
			return nil, err
		}
		peerPub = pub
	}

	sharedSecret, err := r.staticPriv.ECDH(peerPub)
	if err != nil {
		return nil, err
	}

	saltVal, ok := headers.Unprotected[HeaderLabelSalt]
	if !ok {
		return nil, fmt.Errorf("%w: missing salt", ErrRecipientDeclined)
	}
	salt, ok := saltVal.([]byte)
	if !ok {
		return nil, ErrRecipientDeclined
	}

	partyUNonce := headerNonceOrDefault(headers.Unprotected, HeaderLabelPartyUNonce, r.partyUNonce)
	partyVNonce := headerNonceOrDefault(headers.Unprotected, HeaderLabelPartyVNonce, r.partyVNonce)

	protectedBytes, err := headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	context, err := buildKDFContext(r.alg, keyLength, protectedBytes, partyUNonce, partyVNonce)
	if err != nil {
		return nil, err
	}
	derived, err := deriveECDHKey(hashAlg, sharedSecret, salt, context, keyLength)
	if err != nil {
		return nil, err
	}

	if wrapAlg == AlgorithmReserved {
		return derived, nil
	}
	if len(ciphertext) == 0 {
		return nil, ErrRecipientDeclined
	}
	unwrapper, err := NewKeyUnwrapper(wrapAlg, derived)
	if err != nil {
		return nil, err
	}
	return unwrapper.UnwrapKey(ciphertext)
}
