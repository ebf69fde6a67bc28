package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCIPPrefix is used when the facility name yields no letters.
const DefaultCIPPrefix = "GEN"

const cipSuffixSpace = 100000

var cipPattern = regexp.MustCompile(`^[A-Z]{3}-\d{5}$`)

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// GenerateCIP produces a pseudonymous patient code in the shape AAA-99999.
// The prefix derives from the facility name with diacritics folded away;
// the suffix comes from a cryptographically secure source. Uniqueness is
// the caller's responsibility: redraw against the identity store until
// the code is free.
func GenerateCIP(facilityName string) (string, error) {
	prefix := cipPrefix(facilityName)

	n, err := rand.Int(rand.Reader, big.NewInt(cipSuffixSpace))
	if err != nil {
		return "", fmt.Errorf("draw cip suffix: %w", err)
	}

	return fmt.Sprintf("%s-%05d", prefix, n.Int64()), nil
}

func cipPrefix(facilityName string) string {
	stripped, _, err := transform.String(diacriticStripper, facilityName)
	if err != nil {
		stripped = facilityName
	}

	var letters strings.Builder
	for _, r := range stripped {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			letters.WriteRune(unicode.ToUpper(r))
			if letters.Len() == 3 {
				break
			}
		}
	}

	if letters.Len() == 0 {
		return DefaultCIPPrefix
	}

	prefix := letters.String()
	for len(prefix) < 3 {
		prefix += "X"
	}
	return prefix
}

// ValidateCIP reports whether the code matches the exact CIP shape.
func ValidateCIP(cip string) bool {
	return cipPattern.MatchString(cip)
}
