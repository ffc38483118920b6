// Package siteid converts 256-bit site identifiers between their canonical hex form and the
// compact base-36 form used as a DNS label in public site addresses.
package siteid

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// MaxLen is the longest base-36 form accepted. It is the DNS label limit; a 256-bit
	// value never needs more than 50 digits.
	MaxLen = 63

	bits     = 256
	hexWidth = bits / 4
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Encode converts a hex value (with or without 0x) to its minimal base-36 form.
func Encode(hex string) (string, error) {
	v, err := parseHex(hex)
	if err != nil {
		return "", err
	}

	out := v.Text(36)
	if len(out) > MaxLen {
		// unreachable for values that fit in 256 bits
		return "", &RangeError{Input: hex, Reason: "encoded form too long"}
	}
	return out, nil
}

// Decode converts a base-36 identifier back to "0x" followed by 64 lowercase hex digits.
func Decode(b36 string) (string, error) {
	if b36 == "" {
		return "", &RangeError{Input: b36, Reason: "empty identifier"}
	}
	if len(b36) > MaxLen {
		return "", &RangeError{Input: b36, Reason: fmt.Sprintf("longer than %d characters", MaxLen)}
	}
	for i := 0; i < len(b36); i++ {
		if strings.IndexByte(alphabet, b36[i]) < 0 {
			return "", &RangeError{Input: b36, Reason: fmt.Sprintf("invalid character %q at %d", b36[i], i)}
		}
	}
	if len(b36) > 1 && b36[0] == '0' {
		return "", &RangeError{Input: b36, Reason: "leading zero digit"}
	}

	v, ok := new(big.Int).SetString(b36, 36)
	if !ok {
		return "", &RangeError{Input: b36, Reason: "not a base-36 number"}
	}
	if v.BitLen() > bits {
		return "", &RangeError{Input: b36, Reason: "value exceeds 256 bits"}
	}

	return formatHex(v), nil
}

// Canonical returns the 0x-prefixed, 64-digit lowercase form of a hex value.
func Canonical(hex string) (string, error) {
	v, err := parseHex(hex)
	if err != nil {
		return "", err
	}
	return formatHex(v), nil
}

// Address returns the public host name of a site: "<base36 id>.<domain>".
func Address(siteID, domain string) (string, error) {
	domain = strings.Trim(strings.TrimSpace(domain), ".")
	if domain == "" {
		return "", fmt.Errorf("siteid: empty domain")
	}
	label, err := Encode(siteID)
	if err != nil {
		return "", err
	}
	return label + "." + domain, nil
}

func parseHex(hex string) (*big.Int, error) {
	digits := hex
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}
	if digits == "" {
		return nil, &RangeError{Input: hex, Reason: "empty value"}
	}
	for i := 0; i < len(digits); i++ {
		if !isHexDigit(digits[i]) {
			return nil, &RangeError{Input: hex, Reason: fmt.Sprintf("invalid hex digit %q", digits[i])}
		}
	}

	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, &RangeError{Input: hex, Reason: "not a hex number"}
	}
	if v.BitLen() > bits {
		return nil, &RangeError{Input: hex, Reason: "value exceeds 256 bits"}
	}
	return v, nil
}

func formatHex(v *big.Int) string {
	digits := v.Text(16)
	return "0x" + strings.Repeat("0", hexWidth-len(digits)) + digits
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
