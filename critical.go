package cose

import "fmt"

// maxCriticalParameters bounds the number of labels a single crit array
// may list. RFC 9052 does not fix a limit, but an unbounded crit array
// lets a hostile message force unbounded work during decode, so a crit
// array naming more than four labels is rejected even when every label
// is in understoodLabels.
const maxCriticalParameters = 4

// understoodLabels is the set of protected header labels this package
// knows how to interpret. A crit array may legitimately name any of
// these; naming anything else means this package cannot honor the
// sender's request that it understand the parameter. The check runs when
// a message is verified, authenticated or decrypted, which then fails
// with ErrUnknownCriticalParameter; UnmarshalCBOR does not check crit
// labels against this set.
//
// Labels added with RegisterCriticalLabel are understood by every
// verification, authentication or decryption that runs after the call.
var understoodLabels = map[int64]struct{}{
	HeaderLabelAlgorithm:   {},
	HeaderLabelCritical:    {},
	HeaderLabelContentType: {},
	HeaderLabelKeyID:       {},
	HeaderLabelIV:          {},
	HeaderLabelPartialIV:   {},
	HeaderLabelCWTClaims:   {},
	HeaderLabelType:        {},
	HeaderLabelX5Bag:       {},
	HeaderLabelX5Chain:     {},
	HeaderLabelX5T:         {},
	HeaderLabelX5U:         {},
}

// RegisterCriticalLabel extends the set of protected header labels this
// package treats as understood, so that a crit array naming label no
// longer causes verification, authentication or decryption to fail with
// ErrUnknownCriticalParameter. It is not safe to call concurrently with
// those operations.
func RegisterCriticalLabel(label int64) {
	understoodLabels[label] = struct{}{}
}

// ensureCriticalUnderstood decodes h's crit parameter, if present, and
// fails unless every labeled parameter is both present in h and a label
// this package understands how to process.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9052#section-3.1
func (h ProtectedHeader) ensureCriticalUnderstood() error {
	labels, err := h.Critical()
	if err != nil {
		return err
	}
	if len(labels) > maxCriticalParameters {
		return fmt.Errorf("%w: %d labels", ErrTooManyCriticalParameters, len(labels))
	}
	for _, label := range labels {
		normalized, ok := normalizeLabel(label)
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownCriticalParameter, label)
		}
		l, ok := normalized.(int64)
		if !ok {
			// string labels are out of scope for this core; a crit entry
			// naming one can never be understood.
			return fmt.Errorf("%w: %v", ErrUnknownCriticalParameter, label)
		}
		if _, ok := understoodLabels[l]; !ok {
			return fmt.Errorf("%w: %v", ErrUnknownCriticalParameter, l)
		}
	}
	return nil
}
