// Package pathguard rejects path strings that are unsafe to use as site resource keys.
//
// Every check runs on the fully decoded and NFC-normalized form of the input, so a
// forbidden pattern cannot hide behind an extra layer of percent-encoding.
package pathguard

import (
	"fmt"
	"net/url"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMaxLen is the longest raw path accepted by Validate.
	DefaultMaxLen = 10000

	// maxDecodePasses bounds the percent-decode fixpoint loop.
	maxDecodePasses = 16
)

type options struct {
	maxLen int
}

// Option configures a validation call
type Option func(*options)

// WithMaxLen overrides DefaultMaxLen.
func WithMaxLen(n int) Option {
	return func(o *options) {
		o.maxLen = n
	}
}

// Validate returns nil if path is safe, a *ValidationError naming the failed rule,
// or a *DecodeError if the percent-encoding is malformed.
func Validate(path string, opts ...Option) error {
	o := &options{maxLen: DefaultMaxLen}
	for _, opt := range opts {
		opt(o)
	}

	if len(path) > o.maxLen {
		return &ValidationError{
			Path:   path,
			Rule:   RuleMaxLength,
			Reason: fmt.Sprintf("longer than %d bytes", o.maxLen),
		}
	}

	normalized, err := Normalize(path)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if rule.Reject(normalized) {
			return &ValidationError{
				Path:       path,
				Normalized: normalized,
				Rule:       rule.Name,
				Reason:     rule.Reason,
			}
		}
	}

	return nil
}

// IsValid is the boolean form of Validate.
func IsValid(path string, opts ...Option) bool {
	return Validate(path, opts...) == nil
}

// Normalize percent-decodes path until it stops changing and returns its NFC form.
func Normalize(path string) (string, error) {
	decoded, err := decodeFixpoint(path)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(decoded), nil
}

func decodeFixpoint(path string) (string, error) {
	current := path
	for pass := 1; ; pass++ {
		next, err := url.PathUnescape(current)
		if err != nil {
			return "", &DecodeError{Path: path, Pass: pass, Err: err}
		}
		if next == current {
			break
		}
		if pass >= maxDecodePasses {
			return "", &DecodeError{Path: path, Pass: pass, Err: ErrNoFixpoint}
		}
		current = next
	}

	if !utf8.ValidString(current) {
		return "", &DecodeError{Path: path, Err: ErrInvalidUTF8}
	}

	return current, nil
}
