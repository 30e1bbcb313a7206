package ledger

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("phone number is not a valid local or international MSISDN")

// NormalizePhone converts a payer phone number to international form:
// a local number with a leading 0 gets the country dial code, an
// already-international number passes through. Anything else is
// rejected. Ghana-style numbering: 10 digits local, dial code + 9
// digits international.
func NormalizePhone(raw, dialCode string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
			// separators and the plus prefix are dropped
		default:
			return "", ErrInvalidPhone
		}
	}

	number := digits.String()
	switch {
	case strings.HasPrefix(number, "0") && len(number) == 10:
		return dialCode + number[1:], nil
	case strings.HasPrefix(number, dialCode) && len(number) == len(dialCode)+9:
		return number, nil
	default:
		return "", ErrInvalidPhone
	}
}
