package eventtype

import (
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z][-0-9a-zA-Z_]*(\.[0-9a-zA-Z][-0-9a-zA-Z_]*)*$`)

// MaxNameLength bounds event type names.
const MaxNameLength = 255

// NormalizeName returns the NFC form of name, or an error if it is not a valid event type name.
// Names are dot-separated segments of ASCII letters, digits, '-' and '_'.
func NormalizeName(name string) (string, error) {
	n := norm.NFC.String(name)
	if n == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidEventType)
	}
	if len(n) > MaxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidEventType, MaxNameLength)
	}
	if !namePattern.MatchString(n) {
		return "", fmt.Errorf("%w: name %q does not match %s", ErrInvalidEventType, n, namePattern)
	}
	return n, nil
}
