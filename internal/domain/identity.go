package domain

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	MinMobileDigits = 10
	MaxMobileDigits = 15
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Identity holds the normalized email and mobile of a signup. Empty means absent.
type Identity struct {
	Email  string
	Mobile string
}

func (i Identity) Valid() bool {
	return i.Email != "" || i.Mobile != ""
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeMobile keeps only the digits of a phone number.
func NormalizeMobile(mobile string) string {
	var b strings.Builder
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func IsValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

func IsValidMobile(digits string) bool {
	n := len(digits)
	if n < MinMobileDigits || n > MaxMobileDigits {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ResolveIdentity normalizes both fields and drops whichever fails validation.
// It returns ErrInvalidIdentity when neither survives.
func ResolveIdentity(email, mobile string) (Identity, error) {
	var id Identity
	if e := NormalizeEmail(email); IsValidEmail(e) {
		id.Email = e
	}
	if m := NormalizeMobile(mobile); IsValidMobile(m) {
		id.Mobile = m
	}
	if !id.Valid() {
		return Identity{}, ErrInvalidIdentity
	}
	return id, nil
}

// MaskEmail hides all but the first two characters of the local part.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return ""
	}
	local, host := email[:at], email[at:]
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return local[:keep] + "***" + host
}

// MaskMobile hides all but the last four digits.
func MaskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return strings.Repeat("*", len(mobile))
	}
	return strings.Repeat("*", len(mobile)-4) + mobile[len(mobile)-4:]
}

// MaskedIdentity is the identity-safe label used by public listings.
func (p *Participant) MaskedIdentity() string {
	if p.Email != "" {
		return MaskEmail(p.Email)
	}
	return MaskMobile(p.Mobile)
}
