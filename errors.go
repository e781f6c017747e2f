package sina2html

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ConfigError represents configuration-related errors
	ConfigError ErrorType = "config_error"

	// FetchError represents HTTP fetch errors
	FetchError ErrorType = "fetch_error"

	// ParseError represents parsing-related errors
	ParseError ErrorType = "parse_error"

	// IOError represents I/O-related errors
	IOError ErrorType = "io_error"
)

// Well-known error codes.
const (
	// CodeNoContent 正文提取失败：所有候选容器均未达到最小文本长度
	CodeNoContent = "no_content"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string

	// Transient marks a fetch error worth retrying (network failure, 5xx).
	// Permanent fetch errors (4xx) skip the URL without retry.
	Transient bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *AppError {
	return &AppError{
		Type:    ConfigError,
		Message: message,
		Code:    "CONF001",
	}
}

// NewFetchError creates a new fetch error. transient controls retry behavior.
func NewFetchError(message string, err error, transient bool) *AppError {
	return &AppError{
		Type:      FetchError,
		Message:   message,
		Err:       err,
		Code:      "FETCH001",
		Transient: transient,
	}
}

// NewParseError creates a new parsing error
func NewParseError(message string, err error) *AppError {
	return &AppError{
		Type:    ParseError,
		Message: message,
		Err:     err,
		Code:    "PARSE001",
	}
}

// NewNoContentError 创建正文缺失错误，帖子会被跳过而不会中断整体备份
func NewNoContentError(url string) *AppError {
	return &AppError{
		Type:    ParseError,
		Message: fmt.Sprintf("未找到正文内容: %s", url),
		Code:    CodeNoContent,
	}
}

// NewIOError creates a new I/O error
func NewIOError(message string, err error) *AppError {
	return &AppError{
		Type:    IOError,
		Message: message,
		Err:     err,
		Code:    "IO001",
	}
}

// IsErrorType reports whether err is an AppError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsTransient reports whether err is a retryable fetch error.
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == FetchError && appErr.Transient
	}
	return false
}

// IsNoContent reports whether err is the no-content parse failure.
func IsNoContent(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNoContent
	}
	return false
}
