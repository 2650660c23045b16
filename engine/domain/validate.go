package domain

import (
	"regexp"
	"strings"
)

// MaxTextBytes bounds stored resume text.
const MaxTextBytes = 1 << 20

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateApplication checks that id, text, name and email are present and
// that the email looks like an address.
func ValidateApplication(a Application) error {
	required := []struct{ field, value string }{
		{"id", a.ID},
		{"text", a.Text},
		{"name", a.Name},
		{"email", a.Email},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(r.field, "", ErrMissingField)
		}
	}
	if !emailRegex.MatchString(strings.TrimSpace(a.Email)) {
		return NewValidationError("email", a.Email, ErrInvalidEmail)
	}
	if len(a.Text) > MaxTextBytes {
		return NewValidationError("text", "", ErrTextTooLarge)
	}
	return nil
}

// ValidateQuery requires a non-blank search query.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return NewValidationError("query", "", ErrQueryEmpty)
	}
	return nil
}
