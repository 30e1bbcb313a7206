package ledger

import (
	"errors"
	"testing"
)

func TestNormalizePhoneLocalNumberGetsDialCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0241234567", "233241234567"},
		{"024 123 4567", "233241234567"},
		{"024-123-4567", "233241234567"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in, "233")
		if err != nil {
			t.Fatalf("NormalizePhone(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhoneInternationalPassesThrough(t *testing.T) {
	cases := []string{"233241234567", "+233 24 123 4567", "(233)241234567"}
	for _, in := range cases {
		got, err := NormalizePhone(in, "233")
		if err != nil {
			t.Fatalf("NormalizePhone(%q) failed: %v", in, err)
		}
		if got != "233241234567" {
			t.Fatalf("NormalizePhone(%q) = %q", in, got)
		}
	}
}

func TestNormalizePhoneRejectsMalformedNumbers(t *testing.T) {
	cases := []string{"", "12345", "024123456", "02412345678", "233241234", "abc", "024123456x"}
	for _, in := range cases {
		if _, err := NormalizePhone(in, "233"); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("NormalizePhone(%q) expected ErrInvalidPhone, got %v", in, err)
		}
	}
}
