// Package errs holds the error taxonomy shared by the blaze packages.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Kind identifies the category of an error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidArgument reports a bad shape or type of an argument.
	KindInvalidArgument
	// KindInvalidState reports a call made when the receiver cannot serve it.
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidState:
		return "invalid state"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
)

// Error is a categorized error raised by an operation.
type Error struct {
	// Op is the operation that failed (e.g. "blaze.New").
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels as well as the wrapped error.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	}
	return false
}

// InvalidArgument builds a KindInvalidArgument error for op.
func InvalidArgument(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindInvalidArgument, Err: fmt.Errorf(format, args...)}
}

// InvalidState builds a KindInvalidState error for op.
func InvalidState(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindInvalidState, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError is a collection of field errors
type MultiError []FieldError

func (m MultiError) Error() string {
	if len(m) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(m))
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidationToMultiError converts go-playground/validator errors to MultiError
func ValidationToMultiError(err error) MultiError {
	var fieldErrors MultiError

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fieldErrors
	}

	for _, e := range validationErrs {
		fieldName := strings.ToLower(e.Field())

		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", e.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
		case "printascii":
			message = fmt.Sprintf("%s must be printable ASCII", e.Field())
		default:
			message = fmt.Sprintf("%s is invalid", e.Field())
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldName,
			Message: message,
		})
	}

	return fieldErrors
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks v's validate tags and reports failures as an InvalidArgument
// error for op wrapping a MultiError.
func Validate(op string, v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	if multi := ValidationToMultiError(err); len(multi) > 0 {
		return &Error{Op: op, Kind: KindInvalidArgument, Err: multi}
	}
	return &Error{Op: op, Kind: KindInvalidArgument, Err: err}
}
