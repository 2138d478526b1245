package cose

import (
	"errors"
	"fmt"
)

// RecipientEncrypter produces the key material and headers of a single
// COSE_recipient, carrying a content encryption key to one recipient of a
// COSE_Encrypt or COSE_Mac message.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-5.1
type RecipientEncrypter interface {
	// Algorithm returns the key distribution algorithm used by this
	// recipient.
	Algorithm() Algorithm

	// EncryptKey distributes cek to the recipient, returning the
	// ciphertext field of the COSE_recipient (empty for direct and
	// direct key agreement algorithms, which carry no ciphertext) and
	// any unprotected header parameters the recipient needs attached,
	// such as an ephemeral public key or key identifier.
	EncryptKey(cek []byte) (ciphertext []byte, unprotected UnprotectedHeader, err error)
}

// RecipientDecrypter recovers a content encryption key from a single
// COSE_recipient.
type RecipientDecrypter interface {
	// Algorithm returns the key distribution algorithm this decrypter
	// handles.
	Algorithm() Algorithm

	// DecryptKey recovers the content encryption key from a
	// COSE_recipient's headers and ciphertext. It returns
	// ErrRecipientDeclined if this decrypter does not apply to the given
	// recipient, allowing the caller to try the next one.
	DecryptKey(headers Headers, ciphertext []byte) ([]byte, error)
}

// BuildRecipients wraps cek for each of the given RecipientEncrypters,
// returning one Recipient per encrypter in the same order.
func BuildRecipients(cek []byte, encs []RecipientEncrypter) ([]Recipient, error) {
	recipients := make([]Recipient, 0, len(encs))
	for _, enc := range encs {
		ciphertext, unprotected, err := enc.EncryptKey(cek)
		if err != nil {
			return nil, err
		}
		if unprotected == nil {
			unprotected = UnprotectedHeader{}
		}
		protected := ProtectedHeader{}
		protected.SetAlgorithm(enc.Algorithm())

		recipients = append(recipients, Recipient{
			Headers: Headers{
				Protected:   protected,
				Unprotected: unprotected,
			},
			CipherText: ciphertext,
		})
	}
	return recipients, nil
}

// decryptCEK attempts to recover the content encryption key carried by one
// of recipients, trying each decrypter against each recipient in order.
// Recipients or decrypters that don't apply to each other are expected to
// return ErrRecipientDeclined, which decryptCEK treats as "try the next
// one" rather than a hard failure; any other error aborts immediately.
func decryptCEK(recipients []Recipient, decrypters []RecipientDecrypter) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, errors.New("cose: no recipients present")
	}
	if len(decrypters) == 0 {
		return nil, errors.New("cose: no RecipientDecrypter provided")
	}

	var declined int
	for _, recipient := range recipients {
		recipientAlg, err := recipient.Headers.Protected.Algorithm()
		for _, decrypter := range decrypters {
			if err == nil && recipientAlg != decrypter.Algorithm() {
				continue
			}
			cek, derr := decrypter.DecryptKey(recipient.Headers, recipient.CipherText)
			if derr == nil {
				return cek, nil
			}
			if errors.Is(derr, ErrRecipientDeclined) {
				declined++
				continue
			}
			return nil, derr
		}
	}
	return nil, fmt.Errorf("%w: no recipient matched (%d declined)", ErrRecipientDeclined, declined)
}
