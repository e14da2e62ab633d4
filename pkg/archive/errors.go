package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArchive marks archives that exist but cannot be parsed.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrReleased is returned by Retain once the last reference has been dropped.
	ErrReleased = errors.New("archive handle released")
)

// OpenError is returned when an archive cannot be opened. It is always
// recoverable: the caller may retry with another path or give up.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("open archive %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArchive, fmt.Sprintf(format, args...))
}
