package shared

import "errors"

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// UserSafeMessage returns a message safe to show to an operator for errors
// that carry no domain-specific translation. Infrastructure details never
// leak through.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record does not exist."
	case err != nil:
		return "Something went wrong. Please try again."
	default:
		return ""
	}
}
