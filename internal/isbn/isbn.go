// Package isbn normalizes ISBN text and validates or converts ISBN-10 and
// ISBN-13 check digits.
package isbn

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when text cannot be turned into a valid ISBN-13.
var ErrInvalid = errors.New("invalid ISBN")

// Normalize strips space, tab, CR and LF plus printable ASCII punctuation and
// symbols, and upper-cases ASCII letters. Any other byte, including other
// control characters and non-ASCII bytes, is passed through unchanged.
//
// The result is not guaranteed to be a valid ISBN.
func Normalize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-0x20)
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		case c >= 0x21 && c <= 0x7e:
			// punctuation or symbol
		case c == ' ', c == '\t', c == '\r', c == '\n':
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// CheckDigit computes the check character for a 9-digit ISBN-10 body or a
// 12-digit ISBN-13 body. It reports false for any other length or for
// non-digit content. ISBN-10 check values of 10 are rendered as 'X'.
func CheckDigit(body string) (byte, bool) {
	if !allDigits(body) {
		return 0, false
	}

	switch len(body) {
	case 9:
		sum := 0
		for i := 0; i < 9; i++ {
			sum += (10 - i) * int(body[i]-'0')
		}
		check := 0
		if r := sum % 11; r > 0 {
			check = 11 - r
		}
		if check == 10 {
			return 'X', true
		}
		return byte('0' + check), true

	case 12:
		sum := 0
		for i := 0; i < 12; i++ {
			w := 1
			if i%2 == 1 {
				w = 3
			}
			sum += w * int(body[i]-'0')
		}
		check := 0
		if r := sum % 10; r > 0 {
			check = 10 - r
		}
		return byte('0' + check), true
	}

	return 0, false
}

// ToISBN13 normalizes s and returns the canonical ISBN-13 for it. ISBN-10
// input is verified and converted with the 978 prefix. Applying ToISBN13 to
// its own output returns the same value.
func ToISBN13(s string) (string, error) {
	n := Normalize(s)

	switch len(n) {
	case 10:
		body := n[:9]
		want, ok := CheckDigit(body)
		if !ok || want != n[9] {
			return "", fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		body13 := "978" + body
		check, ok := CheckDigit(body13)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		return body13 + string(check), nil

	case 13:
		want, ok := CheckDigit(n[:12])
		if !ok || want != n[12] {
			return "", fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		return n, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalid, s)
}

// IsISBN13 reports whether s is exactly 13 decimal digits with a correct
// ISBN-13 check digit.
func IsISBN13(s string) bool {
	if !IsDigits13(s) {
		return false
	}
	want, _ := CheckDigit(s[:12])
	return want == s[12]
}

// IsDigits13 reports whether s is exactly 13 decimal digits. The check digit
// is not verified.
func IsDigits13(s string) bool {
	return len(s) == 13 && allDigits(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
