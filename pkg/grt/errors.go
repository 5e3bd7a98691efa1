package grt

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrType      = errors.New("type error")
	ErrNullValue = errors.New("null value")
	ErrBadItem   = errors.New("bad item")
	ErrReadOnly  = errors.New("read-only member")
	ErrLogic     = errors.New("logic error")
)

// TypeError is returned when a value does not match the expected type.
type TypeError struct {
	Op       string
	Expected string
	Got      string
}

// NewTypeError creates a type error for op.
func NewTypeError(op, expected, got string) *TypeError {
	return &TypeError{Op: op, Expected: expected, Got: got}
}

func (e *TypeError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("type mismatch: expected %s but got %s", e.Expected, e.Got)
	}
	return fmt.Sprintf("%s: type mismatch: expected %s but got %s", e.Op, e.Expected, e.Got)
}

func (e *TypeError) Is(target error) bool { return target == ErrType }

// NullValueError is returned when null is stored where it is not allowed.
type NullValueError struct {
	Op string
}

func (e *NullValueError) Error() string {
	return fmt.Sprintf("%s: attempt to insert null value", e.Op)
}

func (e *NullValueError) Is(target error) bool { return target == ErrNullValue }

// BadItemError is returned for out of range indexes and missing keys.
type BadItemError struct {
	Op    string
	Index int
	Key   string
}

func (e *BadItemError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: invalid key %q", e.Op, e.Key)
	}
	return fmt.Sprintf("%s: index %d out of range", e.Op, e.Index)
}

func (e *BadItemError) Is(target error) bool { return target == ErrBadItem }

// ReadOnlyError is returned when writing a read-only member.
type ReadOnlyError struct {
	Class  string
	Member string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("%s::%s is read-only", e.Class, e.Member)
}

func (e *ReadOnlyError) Is(target error) bool { return target == ErrReadOnly }

// LogicError signals a programming defect: an unknown member or method,
// unbalanced undo groups, allocating an abstract class and the like.
type LogicError struct {
	Op  string
	Msg string
}

// NewLogicError creates a logic error with formatting.
func NewLogicError(op, format string, args ...any) *LogicError {
	return &LogicError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *LogicError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

func (e *LogicError) Is(target error) bool { return target == ErrLogic }
