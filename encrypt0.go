package cose

import (
	"bytes"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// encrypt0Message represents a COSE_Encrypt0 CBOR object:
//
//	COSE_Encrypt0 = [
//	    Headers,
//	    ciphertext : bstr / nil,
//	]
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-5.2
type encrypt0Message struct {
	_           struct{} `cbor:",toarray"`
	Protected   cbor.RawMessage
	Unprotected cbor.RawMessage
	Ciphertext  byteString
}

// encrypt0MessagePrefix represents the fixed prefix of COSE_Encrypt0_Tagged.
var encrypt0MessagePrefix = []byte{
	0xd0, // #6.16
	0x83, // array, len 3
}

// Encrypt0Message represents a decoded COSE_Encrypt0 message, a
// single-recipient encrypted message where the content encryption key is
// transported out of band.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-5.2
type Encrypt0Message struct {
	Headers    Headers
	External   []byte
	Ciphertext []byte
}

// NewEncrypt0Message returns an Encrypt0Message with headers initialized.
func NewEncrypt0Message() *Encrypt0Message {
	return &Encrypt0Message{
		Headers: Headers{
			Protected:   ProtectedHeader{},
			Unprotected: UnprotectedHeader{},
		},
	}
}

// MarshalCBOR encodes Encrypt0Message into a COSE_Encrypt0_Tagged object.
// A nil Ciphertext encodes as CBOR null, as required for detached-ciphertext
// mode.
func (m *Encrypt0Message) MarshalCBOR() ([]byte, error) {
	if m == nil {
		return nil, errors.New("cbor: MarshalCBOR on nil Encrypt0Message pointer")
	}
	protected, unprotected, err := m.Headers.marshal()
	if err != nil {
		return nil, err
	}
	content := encrypt0Message{
		Protected:   protected,
		Unprotected: unprotected,
		Ciphertext:  m.Ciphertext,
	}
	return encMode.Marshal(cbor.Tag{
		Number:  CBORTagEncrypt0Message,
		Content: content,
	})
}

// UnmarshalCBOR decodes a COSE_Encrypt0_Tagged object into Encrypt0Message.
func (m *Encrypt0Message) UnmarshalCBOR(data []byte) error {
	if m == nil {
		return errors.New("cbor: UnmarshalCBOR on nil Encrypt0Message pointer")
	}
	if !bytes.HasPrefix(data, encrypt0MessagePrefix) {
		return errors.New("cbor: invalid COSE_Encrypt0_Tagged object")
	}

	var raw encrypt0Message
	if err := decModeWithTagsForbidden.Unmarshal(data[1:], &raw); err != nil {
		return err
	}
	msg := Encrypt0Message{
		Headers: Headers{
			RawProtected:   raw.Protected,
			RawUnprotected: raw.Unprotected,
		},
		Ciphertext: raw.Ciphertext,
	}
	if err := msg.Headers.UnmarshalFromRaw(); err != nil {
		return err
	}

	*m = msg
	return nil
}

// Encrypt seals plaintext using encrypter, storing the IV it generates in
// the unprotected header and the resulting ciphertext on the message.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-5.3
func (m *Encrypt0Message) Encrypt(plaintext []byte, encrypter Encrypter) error {
	ciphertext, err := m.encrypt(plaintext, encrypter)
	if err != nil {
		return err
	}
	m.Ciphertext = ciphertext
	return nil
}

// EncryptDetached seals plaintext using encrypter and returns the ciphertext
// rather than storing it on the message, leaving Ciphertext nil so
// MarshalCBOR encodes the detached-ciphertext form (CBOR null in the
// ciphertext slot). The caller is responsible for transporting the returned
// ciphertext alongside the encoded message.
func (m *Encrypt0Message) EncryptDetached(plaintext []byte, encrypter Encrypter) ([]byte, error) {
	return m.encrypt(plaintext, encrypter)
}

func (m *Encrypt0Message) encrypt(plaintext []byte, encrypter Encrypter) ([]byte, error) {
	if len(m.Ciphertext) > 0 {
		return nil, errors.New("Encrypt0Message already has ciphertext")
	}
	if encrypter == nil {
		return nil, errors.New("no Encrypter")
	}

	eAlg := encrypter.Algorithm()
	if alg, err := m.Headers.Protected.Algorithm(); err != nil {
		if err != ErrAlgorithmNotFound {
			return nil, err
		}
		m.Headers.Protected.SetAlgorithm(eAlg)
	} else if alg != eAlg {
		return nil, ErrAlgorithmMismatch
	}

	nonce, err := generateNonce(encrypter)
	if err != nil {
		return nil, err
	}
	if m.Headers.Unprotected == nil {
		m.Headers.Unprotected = UnprotectedHeader{}
	}
	m.Headers.Unprotected[HeaderLabelIV] = nonce

	aad, err := m.enc0Structure()
	if err != nil {
		return nil, err
	}
	return encrypter.Encrypt(nonce, plaintext, aad)
}

// Decrypt opens the ciphertext on the message using decrypter, returning
// the plaintext on success or ErrDecryption if authentication fails.
func (m *Encrypt0Message) Decrypt(decrypter Decrypter) ([]byte, error) {
	return m.decrypt(nil, decrypter)
}

// DecryptDetached is like Decrypt but with the ciphertext transported
// separately from the Encrypt0Message.
func (m *Encrypt0Message) DecryptDetached(detached []byte, decrypter Decrypter) ([]byte, error) {
	if detached == nil {
		return nil, ErrMissingPayload
	}
	return m.decrypt(detached, decrypter)
}

func (m *Encrypt0Message) decrypt(detached []byte, decrypter Decrypter) ([]byte, error) {
	ciphertext, err := checkPayload(m.Ciphertext, detached)
	if err != nil {
		return nil, err
	}
	if decrypter == nil {
		return nil, errors.New("no Decrypter")
	}
	if err := m.Headers.Protected.ensureCriticalUnderstood(); err != nil {
		return nil, err
	}

	dAlg := decrypter.Algorithm()
	if alg, err := m.Headers.Protected.Algorithm(); err != nil {
		if err != ErrAlgorithmNotFound {
			return nil, err
		}
	} else if alg != dAlg {
		return nil, ErrAlgorithmMismatch
	}

	nonce, err := m.nonce()
	if err != nil {
		return nil, err
	}
	aad, err := m.enc0Structure()
	if err != nil {
		return nil, err
	}
	return decrypter.Decrypt(nonce, ciphertext, aad)
}

func (m *Encrypt0Message) nonce() ([]byte, error) {
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

// enc0Structure constructs Enc_structure for COSE_Encrypt0 and returns its
// serialized bytes.
//
//	Enc_structure = [
//	    context : "Encrypt0",
//	    protected : empty_or_serialized_map,
//	    external_aad : bstr
//	]
func (m *Encrypt0Message) enc0Structure() ([]byte, error) {
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
		"Encrypt0",
		protected,
		external,
	}
	return encMode.Marshal(encStructure)
}
