package cose

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecryptCEK_WrongKEKFails(t *testing.T) {
	kekA := bytes.Repeat([]byte{0xa1}, 16)
	kekB := bytes.Repeat([]byte{0xb2}, 16)
	cek := bytes.Repeat([]byte{0xc3}, 16)

	encA, _, err := NewKeyWrapRecipient(AlgorithmA128KW, kekA)
	if err != nil {
		t.Fatal(err)
	}
	_, decB, err := NewKeyWrapRecipient(AlgorithmA128KW, kekB)
	if err != nil {
		t.Fatal(err)
	}

	recipients, err := BuildRecipients(cek, []RecipientEncrypter{encA})
	if err != nil {
		t.Fatal(err)
	}

	// decB's KEK doesn't match the one that wrapped the CEK; unwrap must
	// fail, which the recipient dispatch surfaces as a hard decrypt error,
	// not a silent decline, since both sides claim the same algorithm.
	if _, err := decryptCEK(recipients, []RecipientDecrypter{decB}); err == nil {
		t.Fatal("expected unwrap failure with mismatched KEK")
	}
}

func TestDecryptCEK_AlgorithmMismatchDeclines(t *testing.T) {
	kek := bytes.Repeat([]byte{0xd4}, 16)
	key := bytes.Repeat([]byte{0xe5}, 16)

	kwEnc, _, err := NewKeyWrapRecipient(AlgorithmA128KW, kek)
	if err != nil {
		t.Fatal(err)
	}
	_, directDec := NewDirectRecipient(key)

	recipients, err := BuildRecipients(bytes.Repeat([]byte{0xf6}, 16), []RecipientEncrypter{kwEnc})
	if err != nil {
		t.Fatal(err)
	}

	// directDec's algorithm label never matches the recipient's A128KW
	// label, so decryptCEK should skip the pairing entirely and report
	// that every recipient declined, not attempt and fail cryptography.
	_, err = decryptCEK(recipients, []RecipientDecrypter{directDec})
	if !errors.Is(err, ErrRecipientDeclined) {
		t.Fatalf("want ErrRecipientDeclined, got %v", err)
	}
}

func TestDecryptCEK_NoRecipientsOrDecrypters(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 16)
	_, dec := NewDirectRecipient(key)

	if _, err := decryptCEK(nil, []RecipientDecrypter{dec}); err == nil {
		t.Fatal("expected error with no recipients")
	}

	rec, err := BuildRecipients(key, []RecipientEncrypter{directAlwaysEncrypter{key: key}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decryptCEK(rec, nil); err == nil {
		t.Fatal("expected error with no decrypters")
	}
}

// directAlwaysEncrypter is a minimal RecipientEncrypter used only to
// exercise decryptCEK's no-decrypters guard without relying on another
// recipient type's EncryptKey semantics.
type directAlwaysEncrypter struct {
	key []byte
}

func (directAlwaysEncrypter) Algorithm() Algorithm { return AlgorithmDirect }

func (d directAlwaysEncrypter) EncryptKey(cek []byte) ([]byte, UnprotectedHeader, error) {
	return nil, nil, nil
}
