// Package errors provides the typed errors returned by boundary operations.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/emlua-dev/emlua/domain/entities"
)

var (
	// ErrSessionClosed is returned by every operation on a closed session.
	ErrSessionClosed = stdErrors.New("session is closed")

	// ErrNotFound matches every LookupMiss.
	ErrNotFound = stdErrors.New("not found")
)

// DetailedError is implemented by errors that can describe themselves as an
// ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	if stdErrors.Is(err, ErrSessionClosed) {
		return &entities.ErrorDetail{Message: err.Error(), Type: "closed"}
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// LoadError is returned when a script cannot be read or does not parse.
type LoadError struct {
	Err    error
	Source string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *LoadError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: e.Source}
}

// RuntimeError is returned when a script raises an error while executing,
// either at top level or inside a host-initiated call.
type RuntimeError struct {
	Err error
	// Source is the chunk that was executing, empty for calls.
	Source string
	// Function is set when the error came from CallFunction.
	Function string
	// Message is the error value the script raised, as text.
	Message   string
	Traceback string
}

func (e *RuntimeError) Error() string {
	switch {
	case e.Function != "":
		return fmt.Sprintf("call to %s failed: %s", e.Function, e.Message)
	case e.Source != "":
		return fmt.Sprintf("error running %s: %s", e.Source, e.Message)
	}
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *RuntimeError) ToErrorDetail() *entities.ErrorDetail {
	code := e.Function
	if code == "" {
		code = e.Source
	}
	return &entities.ErrorDetail{Message: e.Error(), Type: "runtime", Code: code, Traceback: e.Traceback}
}

// LookupMiss reports a variable or function that is absent or has the
// wrong kind. It is a soft condition: callers decide whether it matters.
type LookupMiss struct {
	Name string
	// Kind is what was looked for: "function" or "variable".
	Kind string
	// Reason explains the miss, e.g. "not defined" or "not callable (number)".
	Reason string
}

func (e *LookupMiss) Error() string {
	return fmt.Sprintf("%s %q not found: %s", e.Kind, e.Name, e.Reason)
}

// Is reports ErrNotFound.
func (e *LookupMiss) Is(target error) bool {
	return target == ErrNotFound
}

// ToErrorDetail implements DetailedError.
func (e *LookupMiss) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "lookup", Code: e.Name, IsNotFound: true}
}

// CountError reports a mismatch between the number of values expected and
// the number received, for arguments or results.
type CountError struct {
	Function string
	// What is "arguments" or "results".
	What     string
	Expected int
	Got      int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("%s: expected %d %s, got %d", e.Function, e.Expected, e.What, e.Got)
}

// ToErrorDetail implements DetailedError.
func (e *CountError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "count",
		Code:    e.Function,
		Details: map[string]any{"what": e.What, "expected": e.Expected, "got": e.Got},
	}
}

// ValueError reports a value that cannot cross the boundary or has the
// wrong kind.
type ValueError struct {
	Err error
	// Position is the 1-based argument position, 0 when not an argument.
	Position int
	Expected string
	Got      string
}

func (e *ValueError) Error() string {
	var msg string
	if e.Position > 0 {
		msg = fmt.Sprintf("bad argument #%d: %s expected, got %s", e.Position, e.Expected, e.Got)
	} else {
		msg = fmt.Sprintf("%s expected, got %s", e.Expected, e.Got)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ValueError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "value", Code: e.Expected}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}
