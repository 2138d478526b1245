package cose

import (
	"bytes"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// encryptMessage represents a COSE_Encrypt CBOR object:
//
//	COSE_Encrypt = [
//	    Headers,
//	    ciphertext : bstr / nil,
//	    recipients : [+COSE_recipient]
//	]
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-5.1
type encryptMessage struct {
	_           struct{} `cbor:",toarray"`
	Protected   cbor.RawMessage
	Unprotected cbor.RawMessage
	Ciphertext  byteString
	Recipients  []cbor.RawMessage
}

// encryptMessagePrefix represents the fixed prefix of COSE_Encrypt_Tagged.
var encryptMessagePrefix = []byte{
	0xd8, 0x60, // #6.96
	0x84, // array, len 4
}

// EncryptMessage represents a decoded COSE_Encrypt message, an encrypted
// message that distributes its content encryption key to one or more
// recipients via COSE_recipient structures.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-5.1
type EncryptMessage struct {
	Headers    Headers
	External   []byte
	Ciphertext []byte
	Recipients []Recipient
}

// NewEncryptMessage returns an EncryptMessage with headers initialized.
func NewEncryptMessage() *EncryptMessage {
	return &EncryptMessage{
		Headers: Headers{
			Protected:   ProtectedHeader{},
			Unprotected: UnprotectedHeader{},
		},
	}
}

// MarshalCBOR encodes EncryptMessage into a COSE_Encrypt_Tagged object.
func (m *EncryptMessage) MarshalCBOR() ([]byte, error) {
	if m == nil {
		return nil, errors.New("cbor: MarshalCBOR on nil EncryptMessage pointer")
	}
	if len(m.Ciphertext) == 0 {
		return nil, errors.New("cose: missing ciphertext")
	}
	protected, unprotected, err := m.Headers.marshal()
	if err != nil {
		return nil, err
	}

	recipients := make([]cbor.RawMessage, 0, len(m.Recipients))
	for _, rec := range m.Recipients {
		recCBOR, err := rec.MarshalCBOR()
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, recCBOR)
	}

	content := encryptMessage{
		Protected:   protected,
		Unprotected: unprotected,
		Ciphertext:  m.Ciphertext,
		Recipients:  recipients,
	}
	return encMode.Marshal(cbor.Tag{
		Number:  CBORTagEncryptMessage,
		Content: content,
	})
}

// UnmarshalCBOR decodes a COSE_Encrypt_Tagged object into EncryptMessage.
func (m *EncryptMessage) UnmarshalCBOR(data []byte) error {
	if m == nil {
		return errors.New("cbor: UnmarshalCBOR on nil EncryptMessage pointer")
	}
	if !bytes.HasPrefix(data, encryptMessagePrefix) {
		return errors.New("cbor: invalid COSE_Encrypt_Tagged object")
	}

	var raw encryptMessage
	if err := decModeWithTagsForbidden.Unmarshal(data[2:], &raw); err != nil {
		return err
	}
	if len(raw.Ciphertext) == 0 {
		return errors.New("cose: missing ciphertext")
	}

	recipients := make([]Recipient, 0, len(raw.Recipients))
	for _, recipientData := range raw.Recipients {
		rec := Recipient{}
		if err := rec.UnmarshalCBOR(recipientData); err != nil {
			return err
		}
		recipients = append(recipients, rec)
	}

	msg := EncryptMessage{
		Headers: Headers{
			RawProtected:   raw.Protected,
			RawUnprotected: raw.Unprotected,
		},
		Ciphertext: raw.Ciphertext,
		Recipients: recipients,
	}
	if err := msg.Headers.UnmarshalFromRaw(); err != nil {
		return err
	}

	*m = msg
	return nil
}

// directCEKProvider is implemented by RecipientEncrypters that derive the
// content encryption key themselves (direct and ECDH-ES/SS direct HKDF),
// rather than having one assigned to them.
type directCEKProvider interface {
	CEK() []byte
}

// isDirectAgreementAlgorithm reports whether alg distributes the content
// encryption key by direct agreement (no wrapped key travels in the
// COSE_recipient) rather than by key wrap, which matters because
// ecdhESSender implements directCEKProvider for both its direct-HKDF and
// AxxxKW-wrapped modes: only the former may be driven by EncryptKey(nil).
func isDirectAgreementAlgorithm(alg Algorithm) bool {
	switch alg {
	case AlgorithmDirect,
		AlgorithmECDHES_HKDF256, AlgorithmECDHES_HKDF512,
		AlgorithmECDHSS_HKDF256, AlgorithmECDHSS_HKDF512:
		return true
	default:
		return false
	}
}

// Encrypt seals plaintext into an EncryptMessage, distributing the content
// encryption key to each of encrypters via a COSE_recipient.
//
// If exactly one RecipientEncrypter is given and it derives its own
// content encryption key (direct, or ECDH-ES/SS without key wrap), that
// key is used to seal the message. Otherwise a fresh random key sized for
// contentAlg is generated and wrapped for each recipient.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-5.3
func Encrypt(plaintext, external []byte, contentAlg Algorithm, encrypters []RecipientEncrypter) (*EncryptMessage, error) {
	if len(encrypters) == 0 {
		return nil, errors.New("cose: no recipients")
	}

	var cek []byte
	var recipients []Recipient

	if len(encrypters) == 1 && isDirectAgreementAlgorithm(encrypters[0].Algorithm()) {
		if provider, ok := encrypters[0].(directCEKProvider); ok {
			ciphertext, unprotected, err := encrypters[0].EncryptKey(nil)
			if err != nil {
				return nil, err
			}
			cek = provider.CEK()
			if len(cek) == 0 {
				return nil, errors.New("cose: direct recipient produced no content encryption key")
			}
			protected := ProtectedHeader{}
			protected.SetAlgorithm(encrypters[0].Algorithm())
			if unprotected == nil {
				unprotected = UnprotectedHeader{}
			}
			recipients = []Recipient{{
				Headers:    Headers{Protected: protected, Unprotected: unprotected},
				CipherText: ciphertext,
			}}
		}
	}

	if recipients == nil {
		var err error
		cek, err = generateCEK(contentAlg)
		if err != nil {
			return nil, err
		}
		recipients, err = BuildRecipients(cek, encrypters)
		if err != nil {
			return nil, err
		}
	}

	encrypter, err := NewEncrypter(contentAlg, cek)
	if err != nil {
		return nil, err
	}

	msg := NewEncryptMessage()
	msg.External = external
	msg.Recipients = recipients
	msg.Headers.Protected.SetAlgorithm(contentAlg)

	nonce, err := generateNonce(encrypter)
	if err != nil {
		return nil, err
	}
	msg.Headers.Unprotected[HeaderLabelIV] = nonce

	aad, err := msg.encStructure()
	if err != nil {
		return nil, err
	}
	ciphertext, err := encrypter.Encrypt(nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}
	msg.Ciphertext = ciphertext

	return msg, nil
}

// Decrypt recovers the content encryption key from m.Recipients using
// decrypters, then opens the ciphertext, returning the plaintext.
func Decrypt(m *EncryptMessage, decrypters []RecipientDecrypter) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil EncryptMessage")
	}
	if err := m.Headers.Protected.ensureCriticalUnderstood(); err != nil {
		return nil, err
	}
	cek, err := decryptCEK(m.Recipients, decrypters)
	if err != nil {
		return nil, err
	}

	contentAlg, err := m.Headers.Protected.Algorithm()
	if err != nil {
		return nil, err
	}
	decrypter, err := NewDecrypter(contentAlg, cek)
	if err != nil {
		return nil, err
	}

	nonce, err := m.nonce()
	if err != nil {
		return nil, err
	}
	aad, err := m.encStructure()
	if err != nil {
		return nil, err
	}
	return decrypter.Decrypt(nonce, m.Ciphertext, aad)
}

func (m *EncryptMessage) nonce() ([]byte, error) {
	v, ok := m.Headers.Unprotected[HeaderLabelIV]
	if !ok {
		return nil, errors.New("cose: missing IV")
	}
	nonce, ok := v.([]byte)
	if !ok {
		return nil, errors.New("cose: IV has unexpected type")
	}
	return nonce, nil
}

// encStructure constructs Enc_structure for COSE_Encrypt and returns its
// serialized bytes.
//
//	Enc_structure = [
//	    context : "Encrypt",
//	    protected : empty_or_serialized_map,
//	    external_aad : bstr
//	]
func (m *EncryptMessage) encStructure() ([]byte, error) {
	protected, err := m.Headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	protected, err = deterministicBinaryString(protected)
	if err != nil {
		return nil, err
	}
	external := m.External
	if external == nil {
		external = []byte{}
	}
	encStructure := []any{
		"Encrypt",
		protected,
		external,
	}
	return encMode.Marshal(encStructure)
}
