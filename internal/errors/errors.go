package errors

import (
	"errors"
	"fmt"

	"go-metadata-extractor/internal/model"
)

var (
	// ErrInputNotFound indicates the input root is missing or is not a directory
	ErrInputNotFound = errors.New("input directory not found")

	// ErrConfiguration indicates invalid or inconsistent run options
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInvalidPath indicates a path expression that cannot be parsed
	ErrInvalidPath = errors.New("invalid path expression")

	// ErrDecode indicates a decompression failure inside a source file
	ErrDecode = errors.New("decode failed")

	// ErrParse indicates a line that is not a valid JSON record
	ErrParse = errors.New("parse failed")

	// ErrOutputWrite indicates the output could not be created or written
	ErrOutputWrite = errors.New("output write failed")
)

// Error codes carried by Error.Code.
const (
	CodeInputNotFound = "INPUT_NOT_FOUND"
	CodeConfiguration = "CONFIGURATION"
	CodeDecode        = "DECODE"
	CodeParse         = "PARSE"
	CodeOutputWrite   = "OUTPUT_WRITE"
)

// Error represents a structured extractor error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InputNotFound wraps ErrInputNotFound for the given root.
func InputNotFound(root string, cause error) error {
	err := ErrInputNotFound
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrInputNotFound, cause)
	}
	return NewError(CodeInputNotFound, root, err)
}

// Configuration wraps ErrConfiguration with a message.
func Configuration(message string, cause error) error {
	err := ErrConfiguration
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConfiguration, cause)
	}
	return NewError(CodeConfiguration, message, err)
}

// Decode wraps ErrDecode for a source file.
func Decode(path string, cause error) error {
	return NewError(CodeDecode, path, fmt.Errorf("%w: %w", ErrDecode, cause))
}

// Parse wraps ErrParse for a line of a source file.
func Parse(path string, line int, cause error) error {
	return NewError(CodeParse, fmt.Sprintf("%s:%d", path, line), fmt.Errorf("%w: %w", ErrParse, cause))
}

// OutputWrite wraps ErrOutputWrite for an output path.
func OutputWrite(path string, cause error) error {
	return NewError(CodeOutputWrite, path, fmt.Errorf("%w: %w", ErrOutputWrite, cause))
}

// DestinationError is a write failure confined to one organized destination.
// The run continues; other destinations are unaffected.
type DestinationError struct {
	Key  model.RoutingKey
	Path string
	Err  error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("destination %s (%s): %v", e.Key, e.Path, e.Err)
}

func (e *DestinationError) Unwrap() error {
	return e.Err
}

// IsInputNotFound checks if an error is an input not found error
func IsInputNotFound(err error) bool {
	return errors.Is(err, ErrInputNotFound)
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsDestination reports whether err is confined to a single destination.
func IsDestination(err error) bool {
	var de *DestinationError
	return errors.As(err, &de)
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrParse), errors.Is(err, ErrDecode):
		return false
	case IsDestination(err):
		return false
	}
	return true
}
