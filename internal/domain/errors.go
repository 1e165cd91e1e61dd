package domain

import (
	"fmt"
	"time"
)

// PipelineError represents a standardized error response
type PipelineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios.
// ErrKnowledgeLoad is configuration-fatal: the process refuses to serve.
// ErrScoreOverflow is a computation guard: clamped and logged, never raised.
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrKnowledgeLoad  = "KNOWLEDGE_LOAD_ERROR"
	ErrScoreOverflow  = "SCORE_OVERFLOW"
	ErrAuditStore     = "AUDIT_STORE_ERROR"
	ErrRetrieval      = "RETRIEVAL_ERROR"
	ErrCancelled      = "REQUEST_CANCELLED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewPipelineError creates a new PipelineError with timestamp
func NewPipelineError(code, message, details, requestID string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
