package security

import (
	"regexp"
	"strings"
	"testing"
)

var cipShape = regexp.MustCompile(`^[A-Z]{3}-\d{5}$`)

func TestGenerateCIPShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		cip, err := GenerateCIP("Posta Rural Vilches")
		if err != nil {
			t.Fatalf("GenerateCIP returned error: %v", err)
		}
		if !cipShape.MatchString(cip) {
			t.Fatalf("cip %q does not match AAA-99999", cip)
		}
		if !strings.HasPrefix(cip, "POS-") {
			t.Fatalf("unexpected prefix in %q", cip)
		}
	}
}

func TestGenerateCIPPrefixDerivation(t *testing.T) {
	cases := []struct {
		facility string
		prefix   string
	}{
		{"Ñuñoa", "NUN"},
		{"Curicó", "CUR"},
		{"Lo Espejo", "LOE"},
		{"Bo", "BOX"},
		{"A", "AXX"},
		{"", "GEN"},
		{"1234", "GEN"},
	}

	for _, tc := range cases {
		cip, err := GenerateCIP(tc.facility)
		if err != nil {
			t.Fatalf("GenerateCIP(%q) returned error: %v", tc.facility, err)
		}
		if got := cip[:3]; got != tc.prefix {
			t.Fatalf("GenerateCIP(%q) prefix = %q, want %q", tc.facility, got, tc.prefix)
		}
	}
}

func TestValidateCIP(t *testing.T) {
	valid := []string{"GEN-00000", "POS-12345", "ABC-99999"}
	for _, cip := range valid {
		if !ValidateCIP(cip) {
			t.Fatalf("ValidateCIP rejected %q", cip)
		}
	}

	invalid := []string{"", "GEN-1234", "gen-12345", "GENX-12345", "GEN-123456", "GEN 12345"}
	for _, cip := range invalid {
		if ValidateCIP(cip) {
			t.Fatalf("ValidateCIP accepted %q", cip)
		}
	}
}
