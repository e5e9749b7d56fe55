package session

import (
	"net/mail"
	"strings"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// SanitizeCode strips everything but digits and truncates to CodeLength.
// Input fields apply it on every keystroke.
func SanitizeCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == CodeLength {
			break
		}
	}
	return b.String()
}

// ValidCode reports whether code is exactly CodeLength ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return advisoryapi.Validation("Please enter your email address")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return advisoryapi.Validation("%q is not a valid email address", email)
	}
	return nil
}
