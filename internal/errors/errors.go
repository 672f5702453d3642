package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeNetwork
	ErrorTypeFileSystem
	ErrorTypeParsing
	ErrorTypeConflict
	ErrorTypeConfiguration
	ErrorTypeNotFound
	ErrorTypeTimeout
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeNetwork:
		return "NETWORK"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeParsing:
		return "PARSING"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Error codes surfaced to callers of the manager.
const (
	CodeInvalidGameDirectory = "INVALID_GAME_DIRECTORY"
	CodePathNotFound         = "PATH_NOT_FOUND"
	CodeAlreadyInstalled     = "ALREADY_INSTALLED"
	CodeNotInstalled         = "NOT_INSTALLED"
	CodeVersionNotFound      = "VERSION_NOT_FOUND"
	CodeIncompatibleVersion  = "INCOMPATIBLE_VERSION"
	CodeNetwork              = "NETWORK"
	CodeConfigCorrupt        = "CONFIG_CORRUPT"
	CodeFileSystem           = "FILESYSTEM"
	CodeInvalidArgument      = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is matching. Is compares Type and Code only.
var (
	ErrInvalidGameDirectory = &EntwineError{Type: ErrorTypeValidation, Code: CodeInvalidGameDirectory}
	ErrPathNotFound         = &EntwineError{Type: ErrorTypeNotFound, Code: CodePathNotFound}
	ErrAlreadyInstalled     = &EntwineError{Type: ErrorTypeConflict, Code: CodeAlreadyInstalled}
	ErrNotInstalled         = &EntwineError{Type: ErrorTypeNotFound, Code: CodeNotInstalled}
	ErrVersionNotFound      = &EntwineError{Type: ErrorTypeNotFound, Code: CodeVersionNotFound}
	ErrIncompatibleVersion  = &EntwineError{Type: ErrorTypeConflict, Code: CodeIncompatibleVersion}
	ErrNetwork              = &EntwineError{Type: ErrorTypeNetwork, Code: CodeNetwork}
	ErrConfigCorrupt        = &EntwineError{Type: ErrorTypeParsing, Code: CodeConfigCorrupt}
	ErrFileSystem           = &EntwineError{Type: ErrorTypeFileSystem, Code: CodeFileSystem}
	ErrInvalidArgument      = &EntwineError{Type: ErrorTypeValidation, Code: CodeInvalidArgument}
)

// EntwineError represents an enhanced error with context and suggestions
type EntwineError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Cause       error             `json:"cause,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Stack       []string          `json:"stack,omitempty"`
	Retryable   bool              `json:"retryable"`
	Recoverable bool              `json:"recoverable"`
}

// Error implements the error interface
func (e *EntwineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *EntwineError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *EntwineError) Is(target error) bool {
	if t, ok := target.(*EntwineError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error
func (e *EntwineError) WithContext(key, value string) *EntwineError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *EntwineError) WithSuggestion(suggestion string) *EntwineError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *EntwineError) WithSuggestions(suggestions []string) *EntwineError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// SetRetryable marks the error as retryable or not
func (e *EntwineError) SetRetryable(retryable bool) *EntwineError {
	e.Retryable = retryable
	return e
}

// FormatDetailed returns a detailed error message with context and suggestions
func (e *EntwineError) FormatDetailed() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("%s error [%s]: %s\n", e.Type.String(), e.Code, e.Message))

	if len(e.Context) > 0 {
		builder.WriteString("\nContext:\n")
		for key, value := range e.Context {
			builder.WriteString(fmt.Sprintf("   %s: %s\n", key, value))
		}
	}

	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("\nUnderlying cause: %v\n", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		builder.WriteString("\nSuggestions:\n")
		for _, suggestion := range e.Suggestions {
			builder.WriteString(fmt.Sprintf("   - %s\n", suggestion))
		}
	}

	if e.Retryable {
		builder.WriteString("\nThis operation can be retried\n")
	}

	return builder.String()
}

// NewError creates a new EntwineError
func NewError(errorType ErrorType, code, message string) *EntwineError {
	return &EntwineError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Stack:     captureStack(),
	}
}

// WrapError wraps an existing error with EntwineError
func WrapError(err error, errorType ErrorType, code, message string) *EntwineError {
	e := NewError(errorType, code, message)
	e.Cause = err
	return e
}

// captureStack captures the current stack trace
func captureStack() []string {
	var stack []string

	for i := 3; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		if strings.Contains(file, "entwine-cli") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}

	return stack
}

// NewInvalidGameDirectoryError reports a path that is not a SpiderHeck installation.
func NewInvalidGameDirectoryError(path, reason string) *EntwineError {
	return NewError(ErrorTypeValidation, CodeInvalidGameDirectory, reason).
		WithContext("path", path).
		WithSuggestions([]string{
			"Select the folder that contains SpiderHeck.exe",
			"Run 'entwine game detect' to search Steam libraries",
		})
}

// NewPathNotFoundError reports a missing file or directory.
func NewPathNotFoundError(path, message string) *EntwineError {
	return NewError(ErrorTypeNotFound, CodePathNotFound, message).
		WithContext("path", path).
		WithSuggestion("Verify the name with 'entwine mods list'")
}

// NewAlreadyInstalledError reports a collision with an installed mod.
func NewAlreadyInstalledError(fileName string) *EntwineError {
	return NewError(ErrorTypeConflict, CodeAlreadyInstalled, fmt.Sprintf("%s is already installed", fileName)).
		WithContext("file", fileName).
		WithSuggestion("Uninstall the existing copy first")
}

// NewNotInstalledError reports a framework missing from the game directory.
func NewNotInstalledError(framework, gamePath string) *EntwineError {
	return NewError(ErrorTypeNotFound, CodeNotInstalled, fmt.Sprintf("%s is not installed", framework)).
		WithContext("game_path", gamePath).
		WithSuggestion(fmt.Sprintf("Install it with 'entwine %s install'", strings.ToLower(framework)))
}

// NewVersionNotFoundError reports a version the registry does not publish.
func NewVersionNotFoundError(framework, version string) *EntwineError {
	return NewError(ErrorTypeNotFound, CodeVersionNotFound, fmt.Sprintf("%s version %s is not available", framework, version)).
		WithContext("version", version).
		WithSuggestion(fmt.Sprintf("List published versions with 'entwine %s versions'", strings.ToLower(framework)))
}

// NewIncompatibleVersionError reports a mod whose declared range excludes the installed loader.
func NewIncompatibleVersionError(modID, installed, message string) *EntwineError {
	return NewError(ErrorTypeConflict, CodeIncompatibleVersion, message).
		WithContext("mod", modID).
		WithContext("silk_version", installed)
}

// NewNetworkError creates a network error
func NewNetworkError(message string, cause error) *EntwineError {
	return WrapError(cause, ErrorTypeNetwork, CodeNetwork, message).
		SetRetryable(true).
		WithSuggestions([]string{
			"Check your internet connection",
			"Verify the server is accessible",
			"Try again in a few moments",
		})
}

// NewConfigCorruptError reports an unreadable config document. It is recoverable:
// callers continue with an empty document.
func NewConfigCorruptError(path string, cause error) *EntwineError {
	e := WrapError(cause, ErrorTypeParsing, CodeConfigCorrupt, "mod config is corrupt, using defaults").
		WithContext("path", path).
		WithSuggestion("Save the config again or delete it to reset")
	e.Recoverable = true
	return e
}

// NewFileSystemError creates a filesystem error
func NewFileSystemError(message string, cause error) *EntwineError {
	return WrapError(cause, ErrorTypeFileSystem, CodeFileSystem, message).
		WithSuggestions([]string{
			"Check file permissions",
			"Ensure the path exists",
			"Verify disk space availability",
		})
}

// NewInvalidArgumentError creates a validation error for malformed input.
func NewInvalidArgumentError(message string) *EntwineError {
	return NewError(ErrorTypeValidation, CodeInvalidArgument, message).
		WithSuggestion("Check the input parameters and try again")
}

// IsRecoverable reports whether err only degrades the result instead of failing it.
func IsRecoverable(err error) bool {
	var e *EntwineError
	if stderrors.As(err, &e) {
		return e.Recoverable
	}
	return false
}

// CodeOf returns the error code carried by err, or "" for foreign errors.
func CodeOf(err error) string {
	var e *EntwineError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}
