package ole

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when the container is structurally broken:
	// bad signature, bad byte order mark, an inconsistent table or chain, or a
	// reference to a sector or directory entry that does not exist.
	ErrInvalidFormat = errors.New("invalid cfb file")

	// ErrUnsupported is returned for valid containers this package cannot read,
	// such as big-endian files or unknown major versions.
	ErrUnsupported = errors.New("unsupported cfb file")

	// ErrBadSizeValue is returned when a declared size or count cannot be
	// satisfied by the buffer, e.g. a truncated file.
	ErrBadSizeValue = errors.New("bad size value")

	// ErrEmptyEntry is returned when a reader is requested for a zero-length entry.
	ErrEmptyEntry = errors.New("empty entry")

	// ErrNodeTypeUnknown is returned together with ErrInvalidFormat when a
	// directory record carries an unknown object type or color.
	ErrNodeTypeUnknown = errors.New("unknown node type")

	// ErrNotFound is returned when a path does not name an entry.
	ErrNotFound = errors.New("entry not found")
)

// FieldError names the header or record field a validation failed on.
type FieldError struct {
	Field string
	Err   error
	msg   string
}

func newFieldError(field string, err error, format string, args ...interface{}) *FieldError {
	return &FieldError{
		Field: field,
		Err:   err,
		msg:   fmt.Sprintf(format, args...),
	}
}

func (e *FieldError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Field, e.msg, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// nodeTypeError wraps both ErrInvalidFormat and ErrNodeTypeUnknown.
func nodeTypeError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidFormat, ErrNodeTypeUnknown, fmt.Sprintf(format, args...))
}
