// Package apperr defines the error kinds shared by the checkout core and
// how they surface to callers.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindInternal          Kind = "internal"
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindGateway           Kind = "gateway"
)

// Error carries a kind, an operation and an optional per-field breakdown.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Validation(op string, fields map[string]string) *Error {
	return &Error{Op: op, Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func NotFound(op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(op string, from, to string) *Error {
	return &Error{Op: op, Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot move order from %s to %s", from, to)}
}

func Gateway(op string, err error) *Error {
	return &Error{Op: op, Kind: KindGateway, Message: "payment gateway failure", Err: err}
}

func Internal(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf reports the kind of err. Errors that are neither *Error nor
// implement Kind() are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// FieldsOf returns the field breakdown of a validation error, if any.
func FieldsOf(err error) map[string]string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Fields
	}
	return nil
}

// Public reports whether the error message is safe to show to end users.
func Public(k Kind) bool {
	switch k {
	case KindValidation, KindInsufficientStock, KindInvalidTransition, KindNotFound:
		return true
	}
	return false
}
