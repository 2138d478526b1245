package cose

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// algorithmMock is an algorithm value reserved for tests; its magnitude,
// 0x6d6f636b, spells "mock" in ASCII.
const algorithmMock Algorithm = -0x6d6f636b

// mockSigner simulates a remote signer: it knows a fixed set of
// digest/signature pairs and refuses anything else, letting tests assert
// the exact bytes handed to the signing primitive.
type mockSigner struct {
	t       *testing.T
	digests [][]byte
	sigs    [][]byte
}

func newMockSigner(t *testing.T) *mockSigner {
	return &mockSigner{t: t}
}

// setup adds a digest/signature pair to the mock.
func (m *mockSigner) setup(digest, sig []byte) {
	m.digests = append(m.digests, digest)
	m.sigs = append(m.sigs, sig)
}

func (m *mockSigner) Algorithm() Algorithm {
	return algorithmMock
}

func (m *mockSigner) Sign(_ io.Reader, digest []byte) ([]byte, error) {
	for i, d := range m.digests {
		if bytes.Equal(digest, d) {
			return m.sigs[i], nil
		}
	}
	m.t.Errorf("mockSigner: unexpected digest: %v", digest)
	return nil, errors.New("mockSigner: unexpected digest")
}
