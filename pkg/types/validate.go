package types

import (
	"fmt"
	"strings"
)

const (
	// MaxIDLength bounds content identifiers taken from URLs
	MaxIDLength = 256
	// MaxFilenameLength bounds database and image filenames
	MaxFilenameLength = 255
)

// ValidateID checks a content identifier taken from a request path
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: id exceeds %d bytes", ErrValidation, MaxIDLength)
	}
	return nil
}

// ValidateFilename checks a bare filename: no directory components, no traversal
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if len(name) > MaxFilenameLength {
		return fmt.Errorf("%w: filename exceeds %d bytes", ErrValidation, MaxFilenameLength)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: filename must not contain path separators", ErrValidation)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: invalid filename %q", ErrValidation, name)
	}
	return nil
}
