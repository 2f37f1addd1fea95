package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported    ErrorCode = "NOT_SUPPORTED"

	// Compile-time errors raised while transforming a unit.
	CodeSyntax      ErrorCode = "SYNTAX_ERROR"
	CodeDeclaration ErrorCode = "DECLARATION_ERROR"
	CodeScope       ErrorCode = "SCOPE_ERROR"
	CodeMalformed   ErrorCode = "MALFORMED_ACCESS"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxLine      = "line"
	CtxColumn    = "column"
	CtxOperation = "operation"
	CtxLanguage  = "language"
	CtxSymbol    = "symbol"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if loc := e.location(); loc != "" {
		msg = fmt.Sprintf("%s: %s", loc, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if extra := e.extraContext(); extra != "" {
		msg += " " + extra
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Location returns the path, line and column recorded on the error, if any.
func (e *DomainError) Location() (path string, line, column int, ok bool) {
	path, _ = e.Context[CtxPath].(string)
	line, hasLine := e.Context[CtxLine].(int)
	column, _ = e.Context[CtxColumn].(int)
	return path, line, column, hasLine
}

func (e *DomainError) location() string {
	path, line, column, ok := e.Location()
	if !ok {
		return path
	}
	if path == "" {
		return fmt.Sprintf("%d:%d", line, column)
	}
	return fmt.Sprintf("%s:%d:%d", path, line, column)
}

func (e *DomainError) extraContext() string {
	parts := make([]string, 0, len(e.Context))
	keys := make([]string, 0, len(e.Context))
	for key := range e.Context {
		switch key {
		case CtxPath, CtxLine, CtxColumn:
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", key, e.Context[key]))
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// At builds an error anchored to a source position.
func At(code ErrorCode, msg, path string, line, column int) error {
	return &DomainError{
		Code:    code,
		Message: msg,
		Context: map[string]interface{}{
			CtxPath:   path,
			CtxLine:   line,
			CtxColumn: column,
		},
	}
}

// AddContext attaches a key/value pair, wrapping foreign errors as internal ones.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost DomainError in err's chain.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
