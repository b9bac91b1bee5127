package service

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator returns a fresh referral code candidate. Uniqueness is
// checked by the caller.
type CodeGenerator func() (string, error)

// NewCodeGenerator draws length symbols from a 36-symbol alphabet using
// crypto/rand and prepends prefix.
func NewCodeGenerator(prefix string, length int) CodeGenerator {
	return func() (string, error) {
		var b strings.Builder
		b.Grow(len(prefix) + length)
		b.WriteString(prefix)

		buf := make([]byte, length*2)
		for b.Len() < len(prefix)+length {
			if _, err := rand.Read(buf); err != nil {
				return "", fmt.Errorf("read random bytes: %w", err)
			}
			for _, c := range buf {
				// 252 is the largest multiple of 36 below 256; rejecting the
				// rest keeps every symbol equally likely.
				if c >= 252 {
					continue
				}
				b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
				if b.Len() == len(prefix)+length {
					break
				}
			}
		}
		return b.String(), nil
	}
}
