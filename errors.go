package cose

import "errors"

// Common errors
var (
	ErrAlgorithmMismatch     = errors.New("algorithm mismatch")
	ErrAlgorithmNotFound     = errors.New("algorithm not found")
	ErrAlgorithmNotSupported = errors.New("algorithm not supported")
	ErrAlgorithmRegistered   = errors.New("algorithm registered")
	ErrInvalidAlgorithm      = errors.New("invalid algorithm")
	ErrNoSignatures          = errors.New("no signatures attached")
	ErrUnavailableHashFunc   = errors.New("hash function is not available")
	ErrUnknownAlgorithm      = errors.New("unknown algorithm")
	ErrVerification          = errors.New("verification error")

	// ErrEmptySignature is returned when a signature is empty where a
	// non-empty value is required, e.g. before signing or verifying.
	ErrEmptySignature = errors.New("empty signature")

	// ErrEmptyTag is returned when a MAC tag is empty where a non-empty
	// value is required.
	ErrEmptyTag = errors.New("empty tag")

	// ErrMissingPayload is returned when neither an inline nor a
	// detached payload is available to sign, verify, tag, authenticate,
	// encrypt, or decrypt.
	ErrMissingPayload = errors.New("missing payload")

	// ErrAuthentication is returned by an Authenticator when the
	// computed tag does not match the supplied tag.
	ErrAuthentication = errors.New("authentication error")

	// ErrRecipientDeclined is returned by a RecipientDecrypter when it
	// cannot process a particular COSE_recipient, allowing the caller
	// to move on to the next recipient rather than aborting outright.
	ErrRecipientDeclined = errors.New("recipient declined")

	// ErrDecryption is returned when AEAD decryption fails integrity or
	// confidentiality checks.
	ErrDecryption = errors.New("decryption error")

	// ErrOpNotSupported is returned when a key is used for an operation
	// its key_ops do not list.
	ErrOpNotSupported = errors.New("operation not supported by key")

	// ErrInvalidKey is returned when a COSE_Key is malformed or
	// internally inconsistent.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidPubKey is returned when a public key cannot be derived
	// or validated from a COSE_Key.
	ErrInvalidPubKey = errors.New("invalid public key")

	// ErrInvalidPrivKey is returned when a private key cannot be derived
	// or validated from a COSE_Key.
	ErrInvalidPrivKey = errors.New("invalid private key")

	// ErrNotPrivKey is returned when a private-key operation is
	// attempted on a COSE_Key that only carries public key material.
	ErrNotPrivKey = errors.New("not a private key")

	// ErrEC2NoPub is returned when an EC2 COSE_Key is missing the x/y
	// public coordinates required for the requested operation.
	ErrEC2NoPub = errors.New("EC2 key has no public coordinates")

	// ErrOKPNoPub is returned when an OKP COSE_Key is missing the public
	// key material required for the requested operation.
	ErrOKPNoPub = errors.New("OKP key has no public key")

	// ErrUnknownCriticalParameter is returned when a protected header's
	// crit array names a label this package does not know how to
	// process. It is returned by Verify, AuthenticateTag and Decrypt (and
	// their variants); UnmarshalCBOR does not check crit labels against
	// that set and decodes such a message without this error.
	ErrUnknownCriticalParameter = errors.New("unknown critical parameter")

	// ErrTooManyCriticalParameters is returned when a crit array lists
	// more labels than maxCriticalParameters for its bucket.
	ErrTooManyCriticalParameters = errors.New("too many critical parameters")
)
