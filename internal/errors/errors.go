// Package errors provides structured error types for ultraclaude.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for the workflow engine.
const (
	// Configuration errors: missing template, missing credential, bad provider kind.
	CodeConfigError Code = "CONFIG_ERROR"

	// Provider errors.
	CodeProviderTransient Code = "PROVIDER_TRANSIENT"
	CodeProviderFatal     Code = "PROVIDER_FATAL"
	CodeTimeout           Code = "TIMEOUT"

	// Execution errors.
	CodeBudgetExceeded   Code = "BUDGET_EXCEEDED"
	CodeApprovalRejected Code = "APPROVAL_REJECTED"
	CodeCancelled        Code = "CANCELLED"

	// Lookup errors.
	CodeExecutionNotFound Code = "EXECUTION_NOT_FOUND"
	CodeTemplateNotFound  Code = "TEMPLATE_NOT_FOUND"
	CodeArtifactNotFound  Code = "ARTIFACT_NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
	CategoryTimeout
	CategoryUnavailable
	CategoryPaymentRequired
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeConfigError:       CategoryBadRequest,
	CodeProviderTransient: CategoryUnavailable,
	CodeProviderFatal:     CategoryInternal,
	CodeTimeout:           CategoryTimeout,
	CodeBudgetExceeded:    CategoryPaymentRequired,
	CodeApprovalRejected:  CategoryConflict,
	CodeCancelled:         CategoryConflict,
	CodeExecutionNotFound: CategoryNotFound,
	CodeTemplateNotFound:  CategoryNotFound,
	CodeArtifactNotFound:  CategoryNotFound,
	CodeInvalidState:      CategoryBadRequest,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	case CategoryTimeout:
		return 504
	case CategoryUnavailable:
		return 503
	case CategoryPaymentRequired:
		return 402
	default:
		return 500
	}
}

// EngineError is the structured error type for the workflow engine.
type EngineError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *EngineError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *EngineError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *EngineError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *EngineError) MarshalJSON() ([]byte, error) {
	type alias EngineError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an EngineError with the same code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *EngineError) WithCause(err error) *EngineError {
	return &EngineError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// New creates an EngineError with the given code and message.
func New(code Code, what string) *EngineError {
	return &EngineError{Code: code, What: what}
}

// Newf creates an EngineError with a formatted message.
func Newf(code Code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, What: fmt.Sprintf(format, args...)}
}

// CodeOf returns the error code of err if it is an EngineError,
// or an empty Code otherwise. It unwraps wrapped errors.
func CodeOf(err error) Code {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// --- Error constructors ---

// ErrNoDefaultTemplate is returned when create_execution cannot resolve a template.
func ErrNoDefaultTemplate() *EngineError {
	return &EngineError{
		Code: CodeConfigError,
		What: "no workflow template available",
		Why:  "No template_id was given and no project or global default template exists",
		Fix:  "Create a template or pass an explicit template id",
	}
}

// ErrExecutionNotFound returns a not-found error for an execution id.
func ErrExecutionNotFound(id string) *EngineError {
	return &EngineError{
		Code: CodeExecutionNotFound,
		What: fmt.Sprintf("execution %s not found", id),
	}
}

// ErrTemplateNotFound returns a not-found error for a template id.
func ErrTemplateNotFound(id string) *EngineError {
	return &EngineError{
		Code: CodeTemplateNotFound,
		What: fmt.Sprintf("template %s not found", id),
	}
}

// ErrBudgetExceeded returns a budget error for the given scope.
func ErrBudgetExceeded(scope string, remaining float64) *EngineError {
	return &EngineError{
		Code: CodeBudgetExceeded,
		What: fmt.Sprintf("budget exceeded at %s scope", scope),
		Why:  fmt.Sprintf("remaining budget is %.6f USD", remaining),
		Fix:  "Raise or clear the budget limit to continue",
	}
}
