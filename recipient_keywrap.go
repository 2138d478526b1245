package cose

// keyWrapRecipient implements the AES key wrap recipient algorithms of
// RFC 9053 section 8.4, wrapping a randomly generated content encryption
// key under a shared key encryption key.
type keyWrapRecipient struct {
	alg Algorithm
	kek []byte
}

// NewKeyWrapRecipient returns a RecipientEncrypter and RecipientDecrypter
// pair that wraps the content encryption key under kek using the given
// AES Key Wrap algorithm (A128KW, A192KW, or A256KW).
func NewKeyWrapRecipient(alg Algorithm, kek []byte) (RecipientEncrypter, RecipientDecrypter, error) {
	// validate the key encryption key up front so construction fails fast.
	if _, err := aesKWCipher(alg, kek); err != nil {
		return nil, nil, err
	}
	r := &keyWrapRecipient{alg: alg, kek: kek}
	return r, r, nil
}

func (r *keyWrapRecipient) Algorithm() Algorithm {
	return r.alg
}

func (r *keyWrapRecipient) EncryptKey(cek []byte) ([]byte, UnprotectedHeader, error) {
	wrapper, err := NewKeyWrapper(r.alg, r.kek)
	if err != nil {
		return nil, nil, err
	}
	wrapped, err := wrapper.WrapKey(cek)
	if err != nil {
		return nil, nil, err
	}
	return wrapped, nil, nil
}

func (r *keyWrapRecipient) DecryptKey(headers Headers, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, ErrRecipientDeclined
	}
	unwrapper, err := NewKeyUnwrapper(r.alg, r.kek)
	if err != nil {
		return nil, err
	}
	return unwrapper.UnwrapKey(ciphertext)
}
