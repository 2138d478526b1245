package cose

import (
	"bytes"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// sign1Message represents a COSE_Sign1 CBOR object:
//
//   COSE_Sign1 = [
//       Headers,
//       payload : bstr / nil,
//       signature : bstr
//   ]
//
// Reference: https://tools.ietf.org/html/rfc8152#section-4.2
type sign1Message struct {
	_           struct{} `cbor:",toarray"`
	Protected   cbor.RawMessage
	Unprotected cbor.RawMessage
	Payload     byteString
	Signature   byteString
}

// sign1MessagePrefix represents the fixed prefix of COSE_Sign1_Tagged.
var sign1MessagePrefix = []byte{
	0xd2, // #6.18
	0x84, // Array of length 4
}

// Sign1Message represents a decoded COSE_Sign1 message.
//
// Reference: https://tools.ietf.org/html/rfc8152#section-4.2
type Sign1Message struct {
	Headers   Headers
	Payload   []byte
	Signature []byte
}

// NewSign1Message returns a Sign1Message with header initialized.
func NewSign1Message() *Sign1Message {
	return &Sign1Message{
		Headers: Headers{
			Protected:   ProtectedHeader{},
			Unprotected: UnprotectedHeader{},
		},
	}
}

// MarshalCBOR encodes Sign1Message into a COSE_Sign1_Tagged object.
func (m *Sign1Message) MarshalCBOR() ([]byte, error) {
	if m == nil {
		return nil, errors.New("cbor: MarshalCBOR on nil Sign1Message pointer")
	}
	if len(m.Signature) == 0 {
		return nil, ErrEmptySignature
	}
	protected, err := m.Headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	unprotected, err := m.Headers.MarshalUnprotected()
	if err != nil {
		return nil, err
	}
	content := sign1Message{
		Protected:   protected,
		Unprotected: unprotected,
		Payload:     m.Payload,
		Signature:   m.Signature,
	}
	return encMode.Marshal(cbor.Tag{
		Number:  CBORTagSign1Message,
		Content: content,
	})
}

// UnmarshalCBOR decodes a COSE_Sign1_Tagged object into Sign1Message.
func (m *Sign1Message) UnmarshalCBOR(data []byte) error {
	if m == nil {
		return errors.New("cbor: UnmarshalCBOR on nil Sign1Message pointer")
	}

	// fast message check
	if !bytes.HasPrefix(data, sign1MessagePrefix) {
		return errors.New("cbor: invalid COSE_Sign1_Tagged object")
	}

	// decode to sign1Message and parse
	var raw sign1Message
	if err := decMode.Unmarshal(data[1:], &raw); err != nil {
		return err
	}
	if raw.Signature == nil {
		return errors.New("cbor: nil signature")
	}
	if len(raw.Signature) == 0 {
		return ErrEmptySignature
	}
	msg := Sign1Message{
		Headers: Headers{
			RawProtected:   raw.Protected,
			RawUnprotected: raw.Unprotected,
		},
		Payload:   raw.Payload,
		Signature: raw.Signature,
	}
	if err := msg.Headers.UnmarshalFromRaw(); err != nil {
		return err
	}

	*m = msg
	return nil
}

// Sign signs a Sign1Message using the provided Signer, with the payload
// carried inline. The signature is stored in m.Signature.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (m *Sign1Message) Sign(rand io.Reader, external []byte, signer Signer) error {
	if m == nil {
		return errors.New("signing nil Sign1Message")
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	return m.sign(rand, m.Payload, external, signer)
}

// SignDetached is like Sign but with the payload transported separately
// from the Sign1Message, leaving the payload slot nil on the wire.
func (m *Sign1Message) SignDetached(rand io.Reader, detached, external []byte, signer Signer) error {
	if m == nil {
		return errors.New("signing nil Sign1Message")
	}
	if detached == nil {
		return ErrMissingPayload
	}
	if len(m.Payload) > 0 {
		return errors.New("payload set disallowed in detached mode")
	}
	return m.sign(rand, detached, external, signer)
}

func (m *Sign1Message) sign(rand io.Reader, payload, external []byte, signer Signer) error {
	if len(m.Signature) > 0 {
		return errors.New("Sign1Message signature already has signature bytes")
	}
	if signer == nil {
		return errors.New("no Signer")
	}

	// check algorithm if present.
	// `alg` header MUST be present if there is no externally supplied data.
	alg := signer.Algorithm()
	if err := m.Headers.ensureSigningAlgorithm(alg, external); err != nil {
		return err
	}

	// sign the message
	digest, err := m.digestToBeSigned(alg, payload, external)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(rand, digest)
	if err != nil {
		return err
	}

	m.Signature = sig
	return nil
}

// Verify verifies the signature on the Sign1Message, with the payload
// carried inline, returning nil on success or a suitable error if
// verification fails.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (m *Sign1Message) Verify(external []byte, verifier Verifier) error {
	if m == nil {
		return errors.New("verifying nil Sign1Message")
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	return m.verify(m.Payload, external, verifier)
}

// VerifyDetached is like Verify but with the payload transported
// separately from the Sign1Message.
func (m *Sign1Message) VerifyDetached(detached, external []byte, verifier Verifier) error {
	if m == nil {
		return errors.New("verifying nil Sign1Message")
	}
	if detached == nil {
		return ErrMissingPayload
	}
	if len(m.Payload) > 0 {
		return errors.New("payload set disallowed in detached mode")
	}
	return m.verify(detached, external, verifier)
}

func (m *Sign1Message) verify(payload, external []byte, verifier Verifier) error {
	if len(m.Signature) == 0 {
		return ErrEmptySignature
	}
	if verifier == nil {
		return errors.New("no Verifier")
	}
	if err := m.Headers.Protected.ensureCriticalUnderstood(); err != nil {
		return err
	}

	// check algorithm if present.
	// `alg` header MUST be present if there is no externally supplied data.
	alg := verifier.Algorithm()
	if err := m.Headers.ensureVerificationAlgorithm(alg, external); err != nil {
		return err
	}

	// verify the message
	digest, err := m.digestToBeSigned(alg, payload, external)
	if err != nil {
		return err
	}
	return verifier.Verify(digest, m.Signature)
}

// digestToBeSigned constructs Sig_structure, computes ToBeSigned, and returns
// the digest of ToBeSigned.
// If the signing algorithm does not have a hash algorithm associated,
// ToBeSigned is returned instead.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (m *Sign1Message) digestToBeSigned(alg Algorithm, payload, external []byte) ([]byte, error) {
	// create a Sig_structure and populate it with the appropriate fields.
	protected, err := m.Headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	protected, err = deterministicBinaryString(protected)
	if err != nil {
		return nil, err
	}
	if external == nil {
		external = []byte{}
	}
	sigStructure := []interface{}{
		"Signature1", // context
		protected,    // body_protected
		external,     // external_aad
		payload,      // payload
	}

	// create the value ToBeSigned by encoding the Sig_structure to a byte
	// string.
	toBeSigned, err := encMode.Marshal(sigStructure)
	if err != nil {
		return nil, err
	}

	// hash toBeSigned if there is a hash algorithm associated with the signing
	// algorithm.
	return alg.computeHash(toBeSigned)
}

// Sign1 signs payload using the provided Signer and returns the encoded
// COSE_Sign1_Tagged object.
//
// This method is a wrapper of `Sign1Message.Sign()`.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func Sign1(rand io.Reader, signer Signer, headers Headers, payload []byte, external []byte) ([]byte, error) {
	msg := Sign1Message{
		Headers: headers,
		Payload: payload,
	}
	if err := msg.Sign(rand, external, signer); err != nil {
		return nil, err
	}
	return msg.MarshalCBOR()
}

// Verify1 verifies a Sign1Message returning nil on success or a suitable error
// if verification fails.
//
// This method is a wrapper of `Sign1Message.Verify()`.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func Verify1(msg *Sign1Message, external []byte, verifier Verifier) error {
	if msg == nil {
		return errors.New("nil Sign1Message")
	}
	return msg.Verify(external, verifier)
}
