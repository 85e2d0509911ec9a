// internal/decision/errors.go
package decision

import "fmt"

// ErrorCode classifies why model output was rejected.
type ErrorCode string

const (
	ErrCodeMalformed     ErrorCode = "DECISION_MALFORMED"
	ErrCodeNoToolCall    ErrorCode = "DECISION_NO_TOOL_CALL"
	ErrCodeUnknownTool   ErrorCode = "DECISION_UNKNOWN_TOOL"
	ErrCodeUnknownAction ErrorCode = "DECISION_UNKNOWN_ACTION"
	ErrCodeMissingField  ErrorCode = "DECISION_MISSING_FIELD"
	ErrCodeInvalidField  ErrorCode = "DECISION_INVALID_FIELD"
)

// ParseError is returned when model output does not describe exactly one valid action.
type ParseError struct {
	Code   ErrorCode
	Field  string
	Reason string
	// Raw is the offending payload, truncated for logging.
	Raw string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decision parse error [%s] field '%s': %s", e.Code, e.Field, e.Reason)
	}
	return fmt.Sprintf("decision parse error [%s]: %s", e.Code, e.Reason)
}

func missing(field string) *ParseError {
	return &ParseError{Code: ErrCodeMissingField, Field: field, Reason: "required field is missing"}
}

func invalid(field, format string, args ...interface{}) *ParseError {
	return &ParseError{Code: ErrCodeInvalidField, Field: field, Reason: fmt.Sprintf(format, args...)}
}
