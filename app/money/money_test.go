package money

import (
	"errors"
	"testing"
)

func TestParseMajor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"150", 15000},
		{"150.5", 15050},
		{"150.50", 15050},
		{"0.05", 5},
		{".5", 50},
		{" 12.00 ", 1200},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := ParseMajor(tc.in)
		if err != nil {
			t.Fatalf("ParseMajor(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseMajor(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseMajorRejectsInvalidInput(t *testing.T) {
	cases := []string{"", "-1", "1.234", "abc", "1.2x", "1,50"}
	for _, in := range cases {
		if _, err := ParseMajor(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseMajor(%q) expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestFormatMajor(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{15000, "150.00"},
		{15050, "150.50"},
		{5, "0.05"},
		{0, "0.00"},
		{-1250, "-12.50"},
	}
	for _, tc := range cases {
		if got := FormatMajor(tc.in); got != tc.want {
			t.Fatalf("FormatMajor(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 12345} {
		got, err := ParseMajor(FormatMajor(cents))
		if err != nil {
			t.Fatalf("round trip for %d failed: %v", cents, err)
		}
		if got != cents {
			t.Fatalf("round trip for %d produced %d", cents, got)
		}
	}
}
