package secrets

import (
	"errors"
	"strings"
)

var (
	ErrPhoneEmpty         = errors.New("phone empty")
	ErrPhoneInvalidLength = errors.New("phone invalid length")
	ErrCountryUnsupported = errors.New("country prefix not supported")
)

var countryPrefix = map[string]string{
	"FR": "+33",
	"TR": "+90",
	"MA": "+212",
	"AF": "+93",
	"PH": "+63",
	"HT": "+509",
	"MX": "+52",
	"IN": "+91",
	"SD": "+249",
}

// NormalizePhone canonicalizes user phone input to E.164-ish form. Input
// without a leading + gets the country's dial prefix, dropping a single
// leading zero (national form).
func NormalizePhone(raw, countryCode string) (string, error) {
	if raw == "" {
		return "", ErrPhoneEmpty
	}
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if phone == "" {
		return "", ErrPhoneEmpty
	}

	if !strings.HasPrefix(phone, "+") {
		prefix, ok := countryPrefix[countryCode]
		if !ok {
			return "", ErrCountryUnsupported
		}
		phone = strings.TrimPrefix(phone, "0")
		phone = prefix + phone
	}

	if len(phone) < 8 || len(phone) > 15 {
		return "", ErrPhoneInvalidLength
	}
	return phone, nil
}

// MaskPhone keeps only the last four digits, safe for logs and replies.
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
