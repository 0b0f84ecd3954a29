package blocks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a block id is not present.
	ErrNotFound = errors.New("block not found")

	// ErrUnknownType is returned when a type tag is not registered.
	ErrUnknownType = errors.New("unknown block type")

	// ErrInvalidField is returned by SetField for a path or value that does
	// not fit the content shape.
	ErrInvalidField = errors.New("invalid field")
)

// FieldError is one violated field of a draft.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every field of a draft that failed its type's
// required-field policy.
type ValidationError struct {
	Type   Type         `json:"type"`
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid %s block: %s", e.Type, strings.Join(msgs, "; "))
}

// Has returns true if field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// PersistenceError wraps a storage failure on a write. When Resync is set
// the caller's view of positions may be stale and the page must be re-fetched
// before retrying.
type PersistenceError struct {
	Op      string
	BlockID string
	Resync  bool
	Err     error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s block %s: %v", e.Op, e.BlockID, e.Err)
	if e.Resync {
		msg += " (re-fetch page before retrying)"
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFound wraps ErrNotFound with the missing id.
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
