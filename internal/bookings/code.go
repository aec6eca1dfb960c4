package bookings

import (
	"fmt"
	"io"
)

const (
	CodeLength   = 12
	codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	// largest multiple of len(codeAlphabet) that fits in a byte
	codeByteLimit = 252
)

// GenerateCode draws a booking code from r. Bytes at or above codeByteLimit
// are discarded so every symbol is equally likely.
func GenerateCode(r io.Reader) (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)

	for len(code) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= codeByteLimit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// IsValidCode reports whether s has the shape of a booking code
func IsValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
