package session

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid session name")

// A session name becomes a directory under the sessions root and part of the
// socket path, so it stays short and starts with a letter or digit.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w %q: want %s", ErrInvalidName, name, namePattern)
	}
	return nil
}
