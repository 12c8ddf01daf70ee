package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by point reads and single-row operations when
	// the addressed row does not exist in the given project.
	ErrNotFound = errors.New("not found")

	// ErrInvalid is returned, wrapped, when a required field is missing or
	// blank. Nothing is written when it is returned.
	ErrInvalid = errors.New("invalid input")
)

// requireText fails with ErrInvalid when value is empty after trimming.
func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	return nil
}

// requireProject rejects an unresolved project key. Callers resolve the
// project before reaching the store, so a blank one is a programming error
// surfaced as invalid input.
func requireProject(project string) error {
	return requireText("project", project)
}
