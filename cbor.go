package cose

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// CBOR Tags for COSE signatures registered in the IANA "CBOR Tags" registry.
//
// Reference: https://www.iana.org/assignments/cbor-tags/cbor-tags.xhtml#tags
const (
	CBORTagSignMessage     = 98
	CBORTagSign1Message    = 18
	CBORTagMacMessage      = 97
	CBORTagMac0Message     = 17
	CBORTagEncryptMessage  = 96
	CBORTagEncrypt0Message = 16
)

// CBOR major type 2 (byte string) masking, used to validate that a raw
// protected header is encoded as a bstr without fully decoding it.
const (
	cborMajorTypeMask       = 0xe0
	cborMajorTypeByteString = 0x40
)

// Pre-configured modes for CBOR encoding and decoding.
var (
	encMode                  cbor.EncMode
	decMode                  cbor.DecMode
	decModeWithTagsForbidden cbor.DecMode
)

func init() {
	var err error

	// init encode mode
	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,        // sort map keys
		IndefLength: cbor.IndefLengthForbidden, // no streaming
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(err)
	}

	// init decode mode
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF, // duplicated key not allowed
		IndefLength: cbor.IndefLengthForbidden, // no streaming
		IntDec:      cbor.IntDecConvertSigned,  // decode CBOR uint/int to Go int64
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(err)
	}
	decOpts.TagsMd = cbor.TagsForbidden
	decModeWithTagsForbidden, err = decOpts.DecMode()
	if err != nil {
		panic(err)
	}
}

// byteString is a []byte that decodes strictly from a CBOR byte string,
// rejecting any other major type, while treating CBOR null as a nil slice.
//
// It exists because encoding/json-style permissive decoding of bstr fields
// (payload, tag, ciphertext) would silently accept malformed messages that
// RFC 9052 defines as invalid.
type byteString []byte

// MarshalCBOR encodes a byteString as a CBOR byte string, or as CBOR null
// when nil.
func (s byteString) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal([]byte(s))
}

// UnmarshalCBOR decodes a CBOR byte string into s. CBOR null decodes to a
// nil byteString; any other non-bstr major type is rejected.
func (s *byteString) UnmarshalCBOR(data []byte) error {
	if s == nil {
		return errors.New("cbor: UnmarshalCBOR on nil byteString pointer")
	}
	if len(data) == 0 {
		return io.EOF
	}
	if data[0] == 0xf6 { // CBOR null
		*s = nil
		return nil
	}
	if data[0]&cborMajorTypeMask != cborMajorTypeByteString {
		return errors.New("cbor: require bstr type")
	}

	var b []byte
	if err := decMode.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		b = []byte{}
	}
	*s = b
	return nil
}

// deterministicBinaryString rewrites the length prefix of a CBOR byte
// string to its shortest possible encoding, as required when building
// to-be-signed/maced/authenticated structures from a protected header that
// may have been decoded from a non-canonical message.
func deterministicBinaryString(data cbor.RawMessage) (cbor.RawMessage, error) {
	if len(data) == 0 {
		return nil, io.EOF
	}
	if data[0]&cborMajorTypeMask != cborMajorTypeByteString {
		return nil, errors.New("cbor: require bstr type")
	}

	additional := data[0] & 0x1f
	var length uint64
	var headerLen int
	switch {
	case additional <= 23:
		length = uint64(additional)
		headerLen = 1
	case additional == 24:
		if len(data) < 2 {
			return nil, io.ErrUnexpectedEOF
		}
		length = uint64(data[1])
		headerLen = 2
	case additional == 25:
		if len(data) < 3 {
			return nil, io.ErrUnexpectedEOF
		}
		length = uint64(data[1])<<8 | uint64(data[2])
		headerLen = 3
	case additional == 26:
		if len(data) < 5 {
			return nil, io.ErrUnexpectedEOF
		}
		length = uint64(data[1])<<24 | uint64(data[2])<<16 | uint64(data[3])<<8 | uint64(data[4])
		headerLen = 5
	case additional == 27:
		if len(data) < 9 {
			return nil, io.ErrUnexpectedEOF
		}
		length = 0
		for i := 1; i <= 8; i++ {
			length = length<<8 | uint64(data[i])
		}
		headerLen = 9
	default:
		return nil, fmt.Errorf("cbor: invalid bstr length encoding: 0x%02x", data[0])
	}
	if uint64(len(data)-headerLen) < length {
		return nil, io.ErrUnexpectedEOF
	}
	content := data[headerLen : uint64(headerLen)+length]

	var header []byte
	switch {
	case length <= 23:
		header = []byte{cborMajorTypeByteString | byte(length)}
	case length <= 0xff:
		header = []byte{cborMajorTypeByteString | 24, byte(length)}
	case length <= 0xffff:
		header = []byte{cborMajorTypeByteString | 25, byte(length >> 8), byte(length)}
	case length <= 0xffffffff:
		header = []byte{
			cborMajorTypeByteString | 26,
			byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length),
		}
	default:
		header = []byte{
			cborMajorTypeByteString | 27,
			byte(length >> 56), byte(length >> 48), byte(length >> 40), byte(length >> 32),
			byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length),
		}
	}

	out := make([]byte, 0, len(header)+len(content))
	out = append(out, header...)
	out = append(out, content...)
	return out, nil
}

// checkPayload reconciles an inline payload with an externally supplied
// detached payload: exactly one of the two must be present.
func checkPayload(payload, detached []byte) ([]byte, error) {
	switch {
	case len(payload) > 0 && len(detached) > 0:
		return nil, errors.New("cbor: payload set disallowed in detached mode")
	case len(payload) == 0 && len(detached) == 0:
		return nil, ErrMissingPayload
	case len(detached) > 0:
		return detached, nil
	default:
		return payload, nil
	}
}
