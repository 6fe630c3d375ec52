package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateName makes sure a database file name is a plain file name that
// stays inside the environment directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)

	case strings.ContainsRune(name, filepath.Separator),
		strings.ContainsRune(name, '/'):

		return fmt.Errorf("%w: %q contains a path separator",
			ErrInvalidName, name)
	}

	return nil
}
