package security

import (
	"fmt"
	"regexp"
	"strings"
)

// MaskedRUTPlaceholder is returned by MaskRUT whenever the input does not
// validate. Masking fails closed: the clear value is never echoed back.
const MaskedRUTPlaceholder = "****-*"

var rutCleaner = regexp.MustCompile(`[.\-\s]`)

// RUTError describes a RUT validation failure with a caller-presentable
// reason.
type RUTError struct {
	Reason string
}

func (e *RUTError) Error() string {
	return "rut: " + e.Reason
}

// ValidateRUT checks a Chilean RUT (formats 12.345.678-9, 12345678-9 or
// 123456789) against its Modulo-11 check digit. It returns the digit
// string and the check digit on success.
func ValidateRUT(rut string) (number string, checkDigit string, err error) {
	cleaned := rutCleaner.ReplaceAllString(strings.ToUpper(strings.TrimSpace(rut)), "")
	if len(cleaned) < 2 {
		return "", "", &RUTError{Reason: "demasiado corto"}
	}
	if len(cleaned) > 9 {
		return "", "", &RUTError{Reason: "demasiado largo"}
	}

	number = cleaned[:len(cleaned)-1]
	checkDigit = cleaned[len(cleaned)-1:]

	for _, r := range number {
		if r < '0' || r > '9' {
			return "", "", &RUTError{Reason: "debe contener solo numeros"}
		}
	}
	if !strings.ContainsAny(checkDigit, "0123456789K") {
		return "", "", &RUTError{Reason: "digito verificador invalido"}
	}

	expected := computeCheckDigit(number)
	if expected != checkDigit {
		return "", "", &RUTError{Reason: fmt.Sprintf("digito verificador incorrecto, deberia ser %s", expected)}
	}

	return number, checkDigit, nil
}

// computeCheckDigit applies the Modulo-11 scheme: weights cycle 2..7 from
// the least significant digit.
func computeCheckDigit(number string) string {
	sum := 0
	multiplier := 2
	for i := len(number) - 1; i >= 0; i-- {
		sum += int(number[i]-'0') * multiplier
		if multiplier < 7 {
			multiplier++
		} else {
			multiplier = 2
		}
	}

	switch remainder := 11 - sum%11; remainder {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return fmt.Sprintf("%d", remainder)
	}
}

// NormalizeRUT returns the canonical form <digits>-<checkdigit>, or an
// error when the RUT does not validate.
func NormalizeRUT(rut string) (string, error) {
	number, digit, err := ValidateRUT(rut)
	if err != nil {
		return "", err
	}
	return number + "-" + digit, nil
}

// FormatRUT renders a validated number/digit pair with thousands dots,
// e.g. 12345678 + 9 -> 12.345.678-9.
func FormatRUT(number, checkDigit string) string {
	if number == "" || checkDigit == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range number {
		if i > 0 && (len(number)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String() + "-" + checkDigit
}

// MaskRUT keeps the last four digits and the check digit, replacing the
// rest with a fixed placeholder: 12345678-9 -> ****5678-9. Invalid input
// yields the fully masked placeholder.
func MaskRUT(rut string) string {
	number, digit, err := ValidateRUT(rut)
	if err != nil {
		return MaskedRUTPlaceholder
	}
	if len(number) > 4 {
		return "****" + number[len(number)-4:] + "-" + digit
	}
	return "****-" + digit
}
