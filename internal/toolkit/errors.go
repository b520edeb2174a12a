package toolkit

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every missing file, directory, template or anchor
// reported by this package.
var ErrNotFound = errors.New("not found")

type notFoundError struct {
	what string
	name string
	msg  string
}

func (e *notFoundError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("%s not found: %s", e.what, e.name)
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(what, name string) error {
	return &notFoundError{what: what, name: name}
}

// ErrOutsideRoot is returned for relative paths that climb out of their root.
var ErrOutsideRoot = errors.New("path escapes its root directory")

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
