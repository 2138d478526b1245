package cose

import (
	"bytes"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// mac0Message represents a COSE_Mac0 CBOR object:
//
//	COSE_Mac0 = [
//	    Headers,
//	    payload : bstr / nil,
//	    tag : bstr,
//	]
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-6.2
type mac0Message struct {
	_           struct{} `cbor:",toarray"`
	Protected   cbor.RawMessage
	Unprotected cbor.RawMessage
	Payload     byteString
	Tag         byteString
}

// mac0MessagePrefix represents the fixed prefix of COSE_Mac0_Tagged.
var mac0MessagePrefix = []byte{
	0xd1, // #6.17
	0x84, // array, len 4
}

// Mac0Message represents a decoded COSE_Mac0 message, a single-recipient
// MAC where the key used to authenticate is transported out of band.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-6.2
type Mac0Message struct {
	Headers Headers
	Payload []byte
	Tag     []byte
}

// NewMac0Message returns a Mac0Message with headers initialized.
func NewMac0Message() *Mac0Message {
	return &Mac0Message{
		Headers: Headers{
			Protected:   ProtectedHeader{},
			Unprotected: UnprotectedHeader{},
		},
	}
}

// MarshalCBOR encodes Mac0Message into a COSE_Mac0_Tagged object.
func (m *Mac0Message) MarshalCBOR() ([]byte, error) {
	if m == nil {
		return nil, errors.New("cbor: MarshalCBOR on nil Mac0Message pointer")
	}
	if len(m.Tag) == 0 {
		return nil, ErrEmptyTag
	}
	protected, unprotected, err := m.Headers.marshal()
	if err != nil {
		return nil, err
	}
	content := mac0Message{
		Protected:   protected,
		Unprotected: unprotected,
		Payload:     m.Payload,
		Tag:         m.Tag,
	}
	return encMode.Marshal(cbor.Tag{
		Number:  CBORTagMac0Message,
		Content: content,
	})
}

// UnmarshalCBOR decodes a COSE_Mac0_Tagged object into Mac0Message.
func (m *Mac0Message) UnmarshalCBOR(data []byte) error {
	if m == nil {
		return errors.New("cbor: UnmarshalCBOR on nil Mac0Message pointer")
	}
	if !bytes.HasPrefix(data, mac0MessagePrefix) {
		return errors.New("cbor: invalid COSE_Mac0_Tagged object")
	}

	var raw mac0Message
	if err := decModeWithTagsForbidden.Unmarshal(data[1:], &raw); err != nil {
		return err
	}
	if len(raw.Tag) == 0 {
		return ErrEmptyTag
	}
	msg := Mac0Message{
		Headers: Headers{
			RawProtected:   raw.Protected,
			RawUnprotected: raw.Unprotected,
		},
		Payload: raw.Payload,
		Tag:     raw.Tag,
	}
	if err := msg.Headers.UnmarshalFromRaw(); err != nil {
		return err
	}

	*m = msg
	return nil
}

// CreateTag creates the MAC tag for Mac0Message using the provided Tagger,
// with the payload carried inline.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-6.3
func (m *Mac0Message) CreateTag(external []byte, tagger Tagger) error {
	return m.createTag(nil, external, tagger)
}

// CreateTagDetached is like CreateTag but with the payload transported
// separately from the Mac0Message.
func (m *Mac0Message) CreateTagDetached(detached, external []byte, tagger Tagger) error {
	if detached == nil {
		return ErrMissingPayload
	}
	return m.createTag(detached, external, tagger)
}

func (m *Mac0Message) createTag(detached, external []byte, tagger Tagger) error {
	if m == nil {
		return errors.New("create tag on nil Mac0Message")
	}
	if len(m.Tag) > 0 {
		return errors.New("Mac0Message tag already computed")
	}
	if tagger == nil {
		return errors.New("no Tagger")
	}

	payload, err := checkPayload(m.Payload, detached)
	if err != nil {
		return err
	}

	alg := tagger.Algorithm()
	if err := m.Headers.ensureAuthenticationAlgorithm(alg, external); err != nil {
		return err
	}

	toBeAuthenticated, err := m.toBeAuthenticated(payload, external)
	if err != nil {
		return err
	}

	tag, err := tagger.CreateTag(toBeAuthenticated)
	if err != nil {
		return err
	}

	m.Tag = tag
	return nil
}

// AuthenticateTag authenticates the MAC tag on Mac0Message, returning nil on
// success or a suitable error if authentication fails, with the payload
// carried inline.
func (m *Mac0Message) AuthenticateTag(external []byte, authenticator Authenticator) error {
	return m.authenticateTag(nil, external, authenticator)
}

// AuthenticateTagDetached is like AuthenticateTag but with the payload
// transported separately from the Mac0Message.
func (m *Mac0Message) AuthenticateTagDetached(detached, external []byte, authenticator Authenticator) error {
	if detached == nil {
		return ErrMissingPayload
	}
	return m.authenticateTag(detached, external, authenticator)
}

func (m *Mac0Message) authenticateTag(detached, external []byte, authenticator Authenticator) error {
	if m == nil {
		return errors.New("authenticate tag on nil Mac0Message")
	}
	if len(m.Tag) == 0 {
		return ErrEmptyTag
	}
	if authenticator == nil {
		return errors.New("no Authenticator")
	}
	if err := m.Headers.Protected.ensureCriticalUnderstood(); err != nil {
		return err
	}

	payload, err := checkPayload(m.Payload, detached)
	if err != nil {
		return err
	}

	alg := authenticator.Algorithm()
	if err := m.Headers.ensureAuthenticationAlgorithm(alg, external); err != nil {
		return err
	}

	toBeAuthenticated, err := m.toBeAuthenticated(payload, external)
	if err != nil {
		return err
	}

	return authenticator.AuthenticateTag(toBeAuthenticated, m.Tag)
}

// toBeAuthenticated constructs the MAC_structure, computes and returns
// ToBeMaced.
//
//	MAC_structure = [
//	    context : "MAC0",
//	    protected : empty_or_serialized_map,
//	    external_aad : bstr,
//	    payload : bstr
//	]
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-6.3
func (m *Mac0Message) toBeAuthenticated(payload, external []byte) ([]byte, error) {
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

	macStructure := []any{
		"MAC0",
		protected,
		external,
		payload,
	}
	return encMode.Marshal(macStructure)
}
