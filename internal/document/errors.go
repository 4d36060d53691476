package document

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes document errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a referenced layer, source or tree item does
	// not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDuplicateID indicates a create targeted an id already present.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// ErrCodeDuplicateGroup indicates a group name is already used anywhere
	// in the tree.
	ErrCodeDuplicateGroup ErrorCode = "DUPLICATE_GROUP"

	// ErrCodeGroupNotFound indicates a group-scoped operation named a group
	// absent from the tree.
	ErrCodeGroupNotFound ErrorCode = "GROUP_NOT_FOUND"

	// ErrCodeFormat indicates an import or remote update failed validation.
	ErrCodeFormat ErrorCode = "FORMAT_ERROR"

	// ErrCodeInvalid indicates a malformed argument (empty id, bad index).
	ErrCodeInvalid ErrorCode = "INVALID"

	// ErrCodeCycle indicates a move would nest a group inside itself.
	ErrCodeCycle ErrorCode = "CYCLE"

	// ErrCodeReadOnly indicates a mutation on a read-only model.
	ErrCodeReadOnly ErrorCode = "READ_ONLY"
)

// Error is returned by every rejected document operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the layer, source or group the operation referenced, if any.
	ID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error.
func NewError(code ErrorCode, id, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), ID: id}
}

// Code returns the ErrorCode of err, or "" if err is not a document error.
// Uses errors.As to handle wrapped errors.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return Code(err) == ErrCodeNotFound }

// IsDuplicateID reports whether err is a DUPLICATE_ID error.
func IsDuplicateID(err error) bool { return Code(err) == ErrCodeDuplicateID }

// IsDuplicateGroup reports whether err is a DUPLICATE_GROUP error.
func IsDuplicateGroup(err error) bool { return Code(err) == ErrCodeDuplicateGroup }

// IsGroupNotFound reports whether err is a GROUP_NOT_FOUND error.
func IsGroupNotFound(err error) bool { return Code(err) == ErrCodeGroupNotFound }

// IsFormatError reports whether err is a FORMAT_ERROR.
func IsFormatError(err error) bool { return Code(err) == ErrCodeFormat }

// IsInvalid reports whether err is an INVALID error.
func IsInvalid(err error) bool { return Code(err) == ErrCodeInvalid }

// IsCycle reports whether err is a CYCLE error.
func IsCycle(err error) bool { return Code(err) == ErrCodeCycle }

// IsReadOnly reports whether err is a READ_ONLY error.
func IsReadOnly(err error) bool { return Code(err) == ErrCodeReadOnly }
