package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every DataSource implementation.
// Match with errors.Is; concrete errors wrap one of these plus the cause.
var (
	ErrTransport  = errors.New("transport error")
	ErrDecode     = errors.New("decode error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("record not found")
)

// Query errors
var (
	ErrInvalidDateRange = errors.New("date range end must not be before start")
	ErrInvalidPage      = errors.New("page must be a positive integer")
	ErrInvalidSortOrder = errors.New("sort order must be asc or desc")
	ErrUnsortableField  = errors.New("field cannot be sorted on")
	ErrMissingID        = errors.New("record has no id")
)

// TransportError wraps a connectivity failure of op.
func TransportError(op string, err error) error {
	return classified(op, ErrTransport, err)
}

// DecodeError wraps a malformed response to op.
func DecodeError(op string, err error) error {
	return classified(op, ErrDecode, err)
}

// ValidationError wraps a remote rejection of the payload sent by op.
func ValidationError(op string, err error) error {
	return classified(op, ErrValidation, err)
}

// NotFoundError reports that op referenced an id the remote does not know.
func NotFoundError(op, id string) error {
	return fmt.Errorf("%s: %w: id %q", op, ErrNotFound, id)
}

// IsClassified reports whether err already belongs to the taxonomy.
func IsClassified(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound)
}

func classified(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
