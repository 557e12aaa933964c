// Package core provides the domain types and money handling for tally.
//
// Money is stored as signed cents to keep arithmetic exact; it marshals to a
// plain JSON number (e.g. -4.5) so clients see ordinary decimal amounts.
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Money is a signed amount in cents. Negative values are expenses.
type Money struct {
	Cents int64
}

var ErrInvalidAmount = errors.New("invalid amount")

// ParseSignedCents converts a decimal string to signed cents with half-up
// rounding on the third decimal place (away from zero for negatives).
//
// Both dot (12.34) and comma (12,34) separators are accepted. Zero is a
// valid amount.
//
// Examples:
//
//	ParseSignedCents("-4.5")   -> -450, nil
//	ParseSignedCents("12,34")  -> 1234, nil
//	ParseSignedCents("12.346") -> 1235, nil (rounds up)
func ParseSignedCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	// Scientific notation shows up when clients serialize floats; fall back
	// to float parsing for those.
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		cents := int64(f*100.0 + 0.5)
		if neg {
			cents = -cents
		}
		return cents, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" && len(parts) == 2 {
		return 0, ErrInvalidAmount
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; half-up rounding on the third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	// Prevent overflow when multiplying by 100 and adding the cents
	const maxInt64 = 1<<63 - 1
	const maxSafeInt64 = maxInt64 / 100
	if iv > maxSafeInt64 || (iv == maxSafeInt64 && fracCents > maxInt64-maxSafeInt64*100) {
		return 0, ErrInvalidAmount
	}
	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// String formats the amount as a minimal decimal, matching how a JSON number
// renders: -450 -> "-4.5", 1234 -> "12.34", 300 -> "3".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	units := cents / 100
	rem := cents % 100
	var s string
	switch {
	case rem == 0:
		s = strconv.FormatInt(units, 10)
	case rem%10 == 0:
		s = strconv.FormatInt(units, 10) + "." + strconv.FormatInt(rem/10, 10)
	default:
		frac := strconv.FormatInt(rem, 10)
		if rem < 10 {
			frac = "0" + frac
		}
		s = strconv.FormatInt(units, 10) + "." + frac
	}
	if neg {
		return "-" + s
	}
	return s
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// MarshalJSON renders the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		m.Cents = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	cents, err := ParseSignedCents(s)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}
