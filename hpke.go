package cose

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HPKE (RFC 9180) in base mode, single-shot, with the fixed ciphersuite
// DHKEM(X25519, HKDF-SHA256) + HKDF-SHA256 + AES-128-GCM, used as a key
// encryption algorithm per the COSE-HPKE draft: the sender seals the
// content encryption key to the recipient's static X25519 key, and the
// encapsulated KEM share travels in the recipient's unprotected headers
// under HeaderLabelHPKESenderInfo.
//
// References:
//
//	https://datatracker.ietf.org/doc/html/rfc9180
//	https://www.ietf.org/archive/id/draft-ietf-cose-hpke-07.html

// RFC 9180 constants for the supported ciphersuite: Nsecret/Nenc of
// DHKEM(X25519, HKDF-SHA256) and Nk/Nn of AES-128-GCM.
const (
	hpkeNSecret = 32
	hpkeNEnc    = 32
	hpkeNk      = 16
	hpkeNn      = 12
)

var (
	// suite_id = "HPKE" || I2OSP(kem_id, 2) || I2OSP(kdf_id, 2) || I2OSP(aead_id, 2)
	// with KEM 0x0020, KDF 0x0001, AEAD 0x0001.
	hpkeSuiteID = []byte{'H', 'P', 'K', 'E', 0x00, 0x20, 0x00, 0x01, 0x00, 0x01}

	// suite_id = "KEM" || I2OSP(kem_id, 2) for DHKEM(X25519, HKDF-SHA256).
	hpkeKEMSuiteID = []byte{'K', 'E', 'M', 0x00, 0x20}
)

// hpkeLabeledExtract is LabeledExtract of RFC 9180 section 4:
// Extract(salt, "HPKE-v1" || suite_id || label || ikm).
func hpkeLabeledExtract(suiteID, salt []byte, label string, ikm []byte) []byte {
	labeledIKM := make([]byte, 0, 7+len(suiteID)+len(label)+len(ikm))
	labeledIKM = append(labeledIKM, "HPKE-v1"...)
	labeledIKM = append(labeledIKM, suiteID...)
	labeledIKM = append(labeledIKM, label...)
	labeledIKM = append(labeledIKM, ikm...)
	return hkdf.Extract(sha256.New, labeledIKM, salt)
}

// hpkeLabeledExpand is LabeledExpand of RFC 9180 section 4:
// Expand(prk, I2OSP(L, 2) || "HPKE-v1" || suite_id || label || info, L).
func hpkeLabeledExpand(suiteID, prk []byte, label string, info []byte, length int) ([]byte, error) {
	labeledInfo := make([]byte, 0, 2+7+len(suiteID)+len(label)+len(info))
	labeledInfo = append(labeledInfo, byte(length>>8), byte(length))
	labeledInfo = append(labeledInfo, "HPKE-v1"...)
	labeledInfo = append(labeledInfo, suiteID...)
	labeledInfo = append(labeledInfo, label...)
	labeledInfo = append(labeledInfo, info...)
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, labeledInfo), out); err != nil {
		return nil, err
	}
	return out, nil
}

// hpkeExtractAndExpand derives the KEM shared secret from the raw
// Diffie-Hellman output and the kem_context (enc || pkRm).
func hpkeExtractAndExpand(dh, kemContext []byte) ([]byte, error) {
	eaePRK := hpkeLabeledExtract(hpkeKEMSuiteID, nil, "eae_prk", dh)
	return hpkeLabeledExpand(hpkeKEMSuiteID, eaePRK, "shared_secret", kemContext, hpkeNSecret)
}

// hpkeEncap generates an ephemeral X25519 key, performs DH against the
// recipient's static public key, and returns the KEM shared secret
// together with the serialized encapsulated key.
func hpkeEncap(recipientPub *ecdh.PublicKey) (sharedSecret, enc []byte, err error) {
	ephemeral, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	dh, err := ephemeral.ECDH(recipientPub)
	if err != nil {
		return nil, nil, err
	}
	enc = ephemeral.PublicKey().Bytes()

	kemContext := make([]byte, 0, len(enc)+hpkeNEnc)
	kemContext = append(kemContext, enc...)
	kemContext = append(kemContext, recipientPub.Bytes()...)
	sharedSecret, err = hpkeExtractAndExpand(dh, kemContext)
	if err != nil {
		return nil, nil, err
	}
	return sharedSecret, enc, nil
}

// hpkeDecap recovers the KEM shared secret from the encapsulated key
// using the recipient's static private key.
func hpkeDecap(enc []byte, recipientPriv *ecdh.PrivateKey) ([]byte, error) {
	ephemeralPub, err := ecdh.X25519().NewPublicKey(enc)
	if err != nil {
		return nil, err
	}
	dh, err := recipientPriv.ECDH(ephemeralPub)
	if err != nil {
		return nil, err
	}
	kemContext := make([]byte, 0, len(enc)+hpkeNEnc)
	kemContext = append(kemContext, enc...)
	kemContext = append(kemContext, recipientPriv.PublicKey().Bytes()...)
	return hpkeExtractAndExpand(dh, kemContext)
}

// hpkeKeySchedule runs KeySchedule of RFC 9180 section 5.1 in base mode
// (no PSK) and returns the AEAD key and base nonce. With a single-shot
// seal the sequence number is zero, so the base nonce is used directly.
func hpkeKeySchedule(sharedSecret, info []byte) (key, baseNonce []byte, err error) {
	pskIDHash := hpkeLabeledExtract(hpkeSuiteID, nil, "psk_id_hash", nil)
	infoHash := hpkeLabeledExtract(hpkeSuiteID, nil, "info_hash", info)

	context := make([]byte, 0, 1+len(pskIDHash)+len(infoHash))
	context = append(context, 0x00) // mode_base
	context = append(context, pskIDHash...)
	context = append(context, infoHash...)

	secret := hpkeLabeledExtract(hpkeSuiteID, sharedSecret, "secret", nil)
	key, err = hpkeLabeledExpand(hpkeSuiteID, secret, "key", context, hpkeNk)
	if err != nil {
		return nil, nil, err
	}
	baseNonce, err = hpkeLabeledExpand(hpkeSuiteID, secret, "base_nonce", context, hpkeNn)
	if err != nil {
		return nil, nil, err
	}
	return key, baseNonce, nil
}

func hpkeAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// hpkeStaticX25519Key converts the OKP X25519 key material of k to a
// crypto/ecdh key pair (public-only if k carries no private scalar).
func hpkeStaticX25519Key(k *Key) (*ecdh.PublicKey, *ecdh.PrivateKey, error) {
	if k == nil {
		return nil, nil, errors.New("cose: no recipient static key")
	}
	if k.Type != KeyTypeOKP {
		return nil, nil, fmt.Errorf("%w: HPKE requires an OKP X25519 key", ErrInvalidKey)
	}
	crv, x, d := k.OKP()
	if crv != CurveX25519 {
		return nil, nil, errInvalidCurve
	}
	if len(d) > 0 {
		priv, err := ecdh.X25519().NewPrivateKey(d)
		if err != nil {
			return nil, nil, err
		}
		return priv.PublicKey(), priv, nil
	}
	pub, err := ecdh.X25519().NewPublicKey(x)
	if err != nil {
		return nil, nil, err
	}
	return pub, nil, nil
}

// hpkeSender implements the sender side of an HPKE recipient: a fresh
// KEM encapsulation per message, sealing the content encryption key to
// the recipient's static X25519 key.
type hpkeSender struct {
	recipientPub *ecdh.PublicKey
}

// NewHPKESender returns a RecipientEncrypter sealing the content
// encryption key to recipientStatic, an OKP COSE_Key on curve X25519
// holding at least the recipient's public key.
func NewHPKESender(recipientStatic *Key) (RecipientEncrypter, error) {
	recipientPub, _, err := hpkeStaticX25519Key(recipientStatic)
	if err != nil {
		return nil, err
	}
	return &hpkeSender{recipientPub: recipientPub}, nil
}

func (s *hpkeSender) Algorithm() Algorithm {
	return AlgorithmHPKEBase
}

func (s *hpkeSender) EncryptKey(cek []byte) ([]byte, UnprotectedHeader, error) {
	if len(cek) == 0 {
		return nil, nil, errors.New("cose: HPKE recipient requires a content encryption key")
	}
	sharedSecret, enc, err := hpkeEncap(s.recipientPub)
	if err != nil {
		return nil, nil, err
	}

	// The HPKE info parameter is the recipient's protected header bytes,
	// binding the sealed key to the key encryption algorithm. The
	// receiver recomputes it from the headers it actually decoded.
	protected := ProtectedHeader{}
	protected.SetAlgorithm(AlgorithmHPKEBase)
	info, err := protected.MarshalCBOR()
	if err != nil {
		return nil, nil, err
	}

	key, baseNonce, err := hpkeKeySchedule(sharedSecret, info)
	if err != nil {
		return nil, nil, err
	}
	aead, err := hpkeAEAD(key)
	if err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nil, baseNonce, cek, nil)

	unprotected := UnprotectedHeader{
		HeaderLabelHPKESenderInfo: enc,
	}
	return sealed, unprotected, nil
}

// hpkeRecipient implements the receiver side of an HPKE recipient.
type hpkeRecipient struct {
	staticPriv *ecdh.PrivateKey
}

// NewHPKERecipient returns a RecipientDecrypter recovering the content
// encryption key using recipientStatic, an OKP COSE_Key on curve X25519
// holding the recipient's private key.
func NewHPKERecipient(recipientStatic *Key) (RecipientDecrypter, error) {
	_, staticPriv, err := hpkeStaticX25519Key(recipientStatic)
	if err != nil {
		return nil, err
	}
	if staticPriv == nil {
		return nil, errors.New("cose: HPKE recipient requires a private static key")
	}
	return &hpkeRecipient{staticPriv: staticPriv}, nil
}

func (r *hpkeRecipient) Algorithm() Algorithm {
	return AlgorithmHPKEBase
}

func (r *hpkeRecipient) DecryptKey(headers Headers, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, ErrRecipientDeclined
	}
	v, ok := headers.Unprotected[HeaderLabelHPKESenderInfo]
	if !ok {
		return nil, fmt.Errorf("%w: missing encapsulated key", ErrRecipientDeclined)
	}
	enc, ok := v.([]byte)
	if !ok || len(enc) != hpkeNEnc {
		return nil, ErrRecipientDeclined
	}

	sharedSecret, err := hpkeDecap(enc, r.staticPriv)
	if err != nil {
		return nil, err
	}
	info, err := headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	key, baseNonce, err := hpkeKeySchedule(sharedSecret, info)
	if err != nil {
		return nil, err
	}
	aead, err := hpkeAEAD(key)
	if err != nil {
		return nil, err
	}
	cek, err := aead.Open(nil, baseNonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: HPKE open failed", ErrDecryption)
	}
	return cek, nil
}
