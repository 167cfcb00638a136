package contact

import (
	"errors"
	"strings"

	"github.com/tartampluch/go-contacts/internal/config"
)

// ErrInvalidCPF is returned by Validate when the document number fails the
// check-digit algorithm.
var ErrInvalidCPF = errors.New(config.ErrInvalidCPF)

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidCPF checks the two check digits of a Brazilian taxpayer id.
// Punctuation is ignored; sequences of a single repeated digit are rejected.
func IsValidCPF(raw string) bool {
	cpf := Digits(raw)
	if len(cpf) != config.CPFLength {
		return false
	}
	if strings.Count(cpf, cpf[:1]) == config.CPFLength {
		return false
	}

	d := make([]int, config.CPFLength)
	for i := range cpf {
		d[i] = int(cpf[i] - '0')
	}
	return checkDigit(d[:9]) == d[9] && checkDigit(d[:10]) == d[10]
}

// checkDigit computes the next CPF verifier for the given prefix.
func checkDigit(prefix []int) int {
	sum := 0
	weight := len(prefix) + 1
	for i, v := range prefix {
		sum += v * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		rest = 0
	}
	return rest
}

// FormatCPF renders up to 11 digits as 000.000.000-00, formatting partial
// input progressively.
func FormatCPF(raw string) string {
	d := truncate(Digits(raw), config.CPFLength)
	switch {
	case len(d) > 9:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	case len(d) > 6:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	case len(d) > 3:
		return d[:3] + "." + d[3:]
	default:
		return d
	}
}

// MaskCEP renders up to 8 digits as 00000-000.
func MaskCEP(raw string) string {
	d := truncate(Digits(raw), config.PostalCodeLength)
	if len(d) > 5 {
		return d[:5] + "-" + d[5:]
	}
	return d
}

// MaskPhone renders landline (10 digits) and mobile (11 digits) numbers as
// (00) 0000-0000 and (00) 00000-0000.
func MaskPhone(raw string) string {
	d := truncate(Digits(raw), 11)
	if len(d) <= 2 {
		return d
	}
	area, rest := d[:2], d[2:]
	split := 4
	if len(d) == 11 {
		split = 5
	}
	if len(rest) > split {
		rest = rest[:split] + "-" + rest[split:]
	}
	return "(" + area + ") " + rest
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Validate checks the fields a contact form requires: a name and, when
// present, a valid CPF.
func Validate(c Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New(config.ErrNameRequired)
	}
	if c.CPF != "" && !IsValidCPF(c.CPF) {
		return ErrInvalidCPF
	}
	return nil
}
