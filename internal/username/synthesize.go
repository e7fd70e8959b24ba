// Package username derives unique account names from a buyer's name.
package username

import (
	"errors"
	"strings"

	"github.com/planlos/ticket-account-bridge/internal/textfold"
)

var (
	// ErrDuplicateAccount means the buyer's email already belongs to an
	// existing identity. No name is generated in that case.
	ErrDuplicateAccount = errors.New("email already belongs to an existing account")

	// ErrIdentityExhausted means every candidate derived from the given
	// name is already taken.
	ErrIdentityExhausted = errors.New("no unique username left for given name")
)

// Synthesize returns "<prefix>-<g><family>" where <g> is the shortest
// leading part of the given name that makes the result unused. existing maps
// identity names to their email addresses.
//
// The email check runs before any name is considered, so an order whose
// email is already provisioned reports ErrDuplicateAccount even when its
// name would also collide.
func Synthesize(prefix, given, family string, existing map[string]string, email string) (string, error) {
	for _, existingEmail := range existing {
		if existingEmail != "" && strings.EqualFold(existingEmail, email) {
			return "", ErrDuplicateAccount
		}
	}

	taken := make(map[string]bool, len(existing))
	for identity := range existing {
		taken[strings.ToLower(identity)] = true
	}

	base := strings.ToLower(prefix) + "-"
	givenPart := []rune(Normalize(given))
	familyPart := Normalize(family)

	for n := 1; n <= len(givenPart); n++ {
		candidate := base + string(givenPart[:n]) + familyPart
		if !taken[candidate] {
			return candidate, nil
		}
	}

	return "", ErrIdentityExhausted
}

// Normalize folds German characters and diacritics, lower-cases, and drops
// everything that is not an ASCII letter or digit.
func Normalize(s string) string {
	folded := strings.ToLower(textfold.ASCII(s))
	var sb strings.Builder
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
