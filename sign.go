package cose

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// signature represents a COSE_Signature CBOR object:
//
//   COSE_Signature =  [
//       Headers,
//       signature : bstr
//   ]
//
// Reference: https://tools.ietf.org/html/rfc8152#section-4.1
type signature struct {
	_           struct{} `cbor:",toarray"`
	Protected   cbor.RawMessage
	Unprotected cbor.RawMessage
	Signature   byteString
}

// Signature represents a decoded COSE_Signature.
//
// Reference: https://tools.ietf.org/html/rfc8152#section-4.1
type Signature struct {
	Headers   Headers
	Signature []byte
}

// NewSignature returns a Signature with header initialized.
func NewSignature() *Signature {
	return &Signature{
		Headers: Headers{
			Protected:   ProtectedHeader{},
			Unprotected: UnprotectedHeader{},
		},
	}
}

// MarshalCBOR encodes Signature into a COSE_Signature object.
func (s *Signature) MarshalCBOR() ([]byte, error) {
	if s == nil {
		return nil, errors.New("cbor: MarshalCBOR on nil Signature pointer")
	}
	if len(s.Signature) == 0 {
		return nil, ErrEmptySignature
	}
	protected, err := s.Headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	unprotected, err := s.Headers.MarshalUnprotected()
	if err != nil {
		return nil, err
	}
	sig := signature{
		Protected:   protected,
		Unprotected: unprotected,
		Signature:   s.Signature,
	}
	return encMode.Marshal(sig)
}

// UnmarshalCBOR decodes a COSE_Signature object into Signature.
func (s *Signature) UnmarshalCBOR(data []byte) error {
	if s == nil {
		return errors.New("cbor: UnmarshalCBOR on nil Signature pointer")
	}

	// decode to signature and parse
	var raw signature
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Signature == nil {
		return errors.New("cbor: nil signature")
	}
	if len(raw.Signature) == 0 {
		return ErrEmptySignature
	}
	sig := Signature{
		Headers: Headers{
			RawProtected:   raw.Protected,
			RawUnprotected: raw.Unprotected,
		},
		Signature: raw.Signature,
	}
	if err := sig.Headers.UnmarshalFromRaw(); err != nil {
		return err
	}

	*s = sig
	return nil
}

// Sign signs a Signature using the provided Signer.
// Signing a COSE_Signature requires the encoded protected header and the
// payload of its parent message.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (s *Signature) Sign(rand io.Reader, signer Signer, protected cbor.RawMessage, payload, external []byte) error {
	if s == nil {
		return errors.New("signing nil Signature")
	}
	if len(s.Signature) > 0 {
		return errors.New("Signature already has signature bytes")
	}
	if signer == nil {
		return errors.New("no Signer")
	}
	if payload == nil {
		return ErrMissingPayload
	}
	if len(protected) == 0 || protected[0]&cborMajorTypeMask != cborMajorTypeByteString {
		return errors.New("invalid body protected headers")
	}

	// check algorithm if present.
	// `alg` header MUST be present if there is no externally supplied data.
	alg := signer.Algorithm()
	if err := s.Headers.ensureSigningAlgorithm(alg, external); err != nil {
		return err
	}

	// sign the message
	digest, err := s.digestToBeSigned(alg, protected, payload, external)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(rand, digest)
	if err != nil {
		return err
	}

	s.Signature = sig
	return nil
}

// Verify verifies the signature, returning nil on success or a suitable error
// if verification fails.
// Verifying a COSE_Signature requires the encoded protected header and the
// payload of its parent message.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (s *Signature) Verify(verifier Verifier, protected cbor.RawMessage, payload, external []byte) error {
	if s == nil {
		return errors.New("verifying nil Signature")
	}
	if len(s.Signature) == 0 {
		return ErrEmptySignature
	}
	if verifier == nil {
		return errors.New("no Verifier")
	}
	if payload == nil {
		return ErrMissingPayload
	}
	if len(protected) == 0 || protected[0]&cborMajorTypeMask != cborMajorTypeByteString {
		return errors.New("invalid body protected headers")
	}

	// check algorithm if present.
	// `alg` header MUST be present if there is no externally supplied data.
	alg := verifier.Algorithm()
	if err := s.Headers.ensureVerificationAlgorithm(alg, external); err != nil {
		return err
	}

	// verify the message
	digest, err := s.digestToBeSigned(alg, protected, payload, external)
	if err != nil {
		return err
	}
	return verifier.Verify(digest, s.Signature)
}

// digestToBeSigned constructs Sig_structure, computes ToBeSigned, and returns
// the digest of ToBeSigned.
// If the signing algorithm does not have a hash algorithm associated,
// ToBeSigned is returned instead.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (s *Signature) digestToBeSigned(alg Algorithm, bodyProtected cbor.RawMessage, payload, external []byte) ([]byte, error) {
	// create a Sig_structure and populate it with the appropriate fields.
	var signProtected cbor.RawMessage
	signProtected, err := s.Headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	if external == nil {
		external = []byte{}
	}
	sigStructure := []interface{}{
		"Signature",   // context
		bodyProtected, // body_protected
		signProtected, // sign_protected
		external,      // external_aad
		payload,       // payload
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

// signMessage represents a COSE_Sign CBOR object:
//
//   COSE_Sign = [
//       Headers,
//       payload : bstr / nil,
//       signatures : [+ COSE_Signature]
//   ]
//
// Reference: https://tools.ietf.org/html/rfc8152#section-4.1
type signMessage struct {
	_           struct{} `cbor:",toarray"`
	Protected   cbor.RawMessage
	Unprotected cbor.RawMessage
	Payload     byteString
	Signatures  []cbor.RawMessage
}

// signMessagePrefix represents the fixed prefix of COSE_Sign_Tagged.
var signMessagePrefix = []byte{
	0xd8, 0x62, // #6.98
	0x84, // Array of length 4
}

// SignMessage represents a decoded COSE_Sign message.
//
// Reference: https://tools.ietf.org/html/rfc8152#section-4.1
type SignMessage struct {
	Headers    Headers
	Payload    []byte
	Signatures []*Signature
}

// NewSignMessage returns a SignMessage with header initialized.
func NewSignMessage() *SignMessage {
	return &SignMessage{
		Headers: Headers{
			Protected:   ProtectedHeader{},
			Unprotected: UnprotectedHeader{},
		},
	}
}

// MarshalCBOR encodes SignMessage into a COSE_Sign_Tagged object.
func (m *SignMessage) MarshalCBOR() ([]byte, error) {
	if m == nil {
		return nil, errors.New("cbor: MarshalCBOR on nil SignMessage pointer")
	}
	if len(m.Signatures) == 0 {
		return nil, ErrNoSignatures
	}
	protected, err := m.Headers.MarshalProtected()
	if err != nil {
		return nil, err
	}
	unprotected, err := m.Headers.MarshalUnprotected()
	if err != nil {
		return nil, err
	}
	signatures := make([]cbor.RawMessage, 0, len(m.Signatures))
	for _, sig := range m.Signatures {
		sigCBOR, err := sig.MarshalCBOR()
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, sigCBOR)
	}
	content := signMessage{
		Protected:   protected,
		Unprotected: unprotected,
		Payload:     m.Payload,
		Signatures:  signatures,
	}
	return encMode.Marshal(cbor.Tag{
		Number:  CBORTagSignMessage,
		Content: content,
	})
}

// UnmarshalCBOR decodes a COSE_Sign_Tagged object into SignMessage.
func (m *SignMessage) UnmarshalCBOR(data []byte) error {
	if m == nil {
		return errors.New("cbor: UnmarshalCBOR on nil SignMessage pointer")
	}

	// fast message check
	if !bytes.HasPrefix(data, signMessagePrefix) {
		return errors.New("cbor: invalid COSE_Sign_Tagged object")
	}

	// decode to signMessage and parse
	var raw signMessage
	if err := decMode.Unmarshal(data[2:], &raw); err != nil {
		return err
	}
	if len(raw.Signatures) == 0 {
		return ErrNoSignatures
	}
	signatures := make([]*Signature, 0, len(raw.Signatures))
	for _, sigCBOR := range raw.Signatures {
		sig := &Signature{}
		if err := sig.UnmarshalCBOR(sigCBOR); err != nil {
			return err
		}
		signatures = append(signatures, sig)
	}
	msg := SignMessage{
		Headers: Headers{
			RawProtected:   raw.Protected,
			RawUnprotected: raw.Unprotected,
		},
		Payload:    raw.Payload,
		Signatures: signatures,
	}
	if err := msg.Headers.UnmarshalFromRaw(); err != nil {
		return err
	}

	*m = msg
	return nil
}

// Sign signs a SignMessage using the provided signers corresponding to the
// signatures, with the payload carried inline.
//
// See `Signature.Sign()` for advanced signing scenarios.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (m *SignMessage) Sign(rand io.Reader, external []byte, signers ...Signer) error {
	if m == nil {
		return errors.New("signing nil SignMessage")
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	return m.sign(rand, m.Payload, external, signers...)
}

// SignDetached is like Sign but with the payload transported separately
// from the SignMessage, leaving the payload slot nil on the wire.
func (m *SignMessage) SignDetached(rand io.Reader, detached, external []byte, signers ...Signer) error {
	if m == nil {
		return errors.New("signing nil SignMessage")
	}
	if detached == nil {
		return ErrMissingPayload
	}
	if len(m.Payload) > 0 {
		return errors.New("payload set disallowed in detached mode")
	}
	return m.sign(rand, detached, external, signers...)
}

func (m *SignMessage) sign(rand io.Reader, payload, external []byte, signers ...Signer) error {
	switch len(m.Signatures) {
	case 0:
		return ErrNoSignatures
	case len(signers):
		// no ops
	default:
		return fmt.Errorf("%d signers for %d signatures", len(signers), len(m.Signatures))
	}

	// populate common parameters
	var protected cbor.RawMessage
	protected, err := m.Headers.MarshalProtected()
	if err != nil {
		return err
	}

	// sign message accordingly
	for i, signature := range m.Signatures {
		if err := signature.Sign(rand, signers[i], protected, payload, external); err != nil {
			return err
		}
	}

	return nil
}

// Verify verifies the signatures on the SignMessage against the corresponding
// verifier, with the payload carried inline, returning nil on success or a
// suitable error if verification fails.
//
// See `Signature.Verify()` for advanced verification scenarios like threshold
// policies.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8152#section-4.4
func (m *SignMessage) Verify(external []byte, verifiers ...Verifier) error {
	if m == nil {
		return errors.New("verifying nil SignMessage")
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	return m.verify(m.Payload, external, verifiers...)
}

// VerifyDetached is like Verify but with the payload transported
// separately from the SignMessage.
func (m *SignMessage) VerifyDetached(detached, external []byte, verifiers ...Verifier) error {
	if m == nil {
		return errors.New("verifying nil SignMessage")
	}
	if detached == nil {
		return ErrMissingPayload
	}
	if len(m.Payload) > 0 {
		return errors.New("payload set disallowed in detached mode")
	}
	return m.verify(detached, external, verifiers...)
}

func (m *SignMessage) verify(payload, external []byte, verifiers ...Verifier) error {
	switch len(m.Signatures) {
	case 0:
		return ErrNoSignatures
	case len(verifiers):
		// no ops
	default:
		return fmt.Errorf("%d verifiers for %d signatures", len(verifiers), len(m.Signatures))
	}
	if err := m.Headers.Protected.ensureCriticalUnderstood(); err != nil {
		return err
	}

	// populate common parameters
	var protected cbor.RawMessage
	protected, err := m.Headers.MarshalProtected()
	if err != nil {
		return err
	}

	// verify message accordingly
	for i, signature := range m.Signatures {
		if err := signature.Headers.Protected.ensureCriticalUnderstood(); err != nil {
			return err
		}
		if err := signature.Verify(verifiers[i], protected, payload, external); err != nil {
			return err
		}
	}
	return nil
}

// SignaturePolicy controls how VerifyWithPolicy decides whether a
// COSE_Sign message, carrying one or more independent signatures, is
// acceptable.
type SignaturePolicy int

const (
	// AnySignatureValid requires only one signature in the message to
	// verify against some candidate verifier; this is the default COSE
	// posture for messages signed by multiple parties where any one
	// party's endorsement is sufficient.
	AnySignatureValid SignaturePolicy = iota

	// AllSignaturesValid requires every signature in the message to
	// verify against some candidate verifier.
	AllSignaturesValid
)

// VerifyWithPolicy verifies a SignMessage against a pool of candidate
// verifiers rather than one verifier per signature, dispatching each
// COSE_Signature to every candidate in turn.
//
// Unlike Verify, the caller does not need to know which verifier matches
// which signature or in what order: for each signature, candidates whose
// Algorithm() does not match the signature's alg header are skipped, and
// a candidate whose cryptographic verification fails is treated the same
// way -- dispatch continues to the next candidate rather than aborting
// the message. A signature with no matching, successfully-verifying
// candidate contributes its last verification error to the final result.
//
// Under AnySignatureValid (the default COSE posture for independently
// signed, multi-party messages) the method succeeds as soon as any one
// signature verifies. Under AllSignaturesValid every signature must find
// a verifying candidate.
func (m *SignMessage) VerifyWithPolicy(policy SignaturePolicy, external []byte, verifiers ...Verifier) error {
	if m == nil {
		return errors.New("verifying nil SignMessage")
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	if len(m.Signatures) == 0 {
		return ErrNoSignatures
	}
	if len(verifiers) == 0 {
		return errors.New("cose: no verifiers provided")
	}
	if err := m.Headers.Protected.ensureCriticalUnderstood(); err != nil {
		return err
	}

	protected, err := m.Headers.MarshalProtected()
	if err != nil {
		return err
	}

	verifiedCount := 0
	lastErr := ErrVerification
	for _, sig := range m.Signatures {
		if err := sig.Headers.Protected.ensureCriticalUnderstood(); err != nil {
			return err
		}

		sigAlg, algErr := sig.Headers.Protected.Algorithm()
		matched := false
		for _, verifier := range verifiers {
			if algErr == nil && sigAlg != verifier.Algorithm() {
				continue // declined: algorithm mismatch
			}
			if err := sig.Verify(verifier, protected, m.Payload, external); err != nil {
				lastErr = err
				continue
			}
			matched = true
			break
		}

		if matched {
			verifiedCount++
			if policy == AnySignatureValid {
				return nil
			}
		} else if policy == AllSignaturesValid {
			return fmt.Errorf("%w: signature has no matching verifier", lastErr)
		}
	}

	if verifiedCount == 0 {
		return lastErr
	}
	return nil
}
