package cose

// directRecipient implements the "direct" key distribution method of RFC
// 9053 section 8.5.1, where the content encryption key is the pre-shared
// key itself and the COSE_recipient carries no ciphertext.
type directRecipient struct {
	key []byte
}

// NewDirectRecipient returns a RecipientEncrypter and RecipientDecrypter
// pair using the pre-shared key directly as the content encryption key,
// with no key wrapping performed.
func NewDirectRecipient(key []byte) (RecipientEncrypter, RecipientDecrypter) {
	d := &directRecipient{key: key}
	return d, d
}

func (d *directRecipient) Algorithm() Algorithm {
	return AlgorithmDirect
}

func (d *directRecipient) EncryptKey(cek []byte) ([]byte, UnprotectedHeader, error) {
	return nil, nil, nil
}

func (d *directRecipient) DecryptKey(headers Headers, ciphertext []byte) ([]byte, error) {
	return d.key, nil
}

// CEK returns the content encryption key a direct recipient uses for
// sealing the message itself: the pre-shared key.
func (d *directRecipient) CEK() []byte {
	return d.key
}
