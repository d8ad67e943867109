package services

import "net/http"

// Error codes callers can branch on, carried alongside the HTTP status.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeNotOwner            = "NOT_OWNER"
	CodeDuplicateCode       = "DUPLICATE_CODE"
	CodeInvalidDateRange    = "INVALID_DATE_RANGE"
	CodeNotYetActive        = "NOT_YET_ACTIVE"
	CodeExpired             = "EXPIRED"
	CodeInactive            = "INACTIVE"
	CodeLimitReached        = "LIMIT_REACHED"
	CodeBelowMinimum        = "BELOW_MINIMUM"
	CodeGenerationExhausted = "GENERATION_EXHAUSTED"
	CodeValidationFailure   = "VALIDATION_FAILURE"
	CodeInternal            = "INTERNAL"
)

// ServiceError is a typed business error with an HTTP status code. Details
// carries the boundary value behind a rejection (min order, start date) so
// callers can render an actionable message.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
}

func (e *ServiceError) Error() string {
	return e.Message
}

func notFound(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

func notOwner(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusForbidden, Code: CodeNotOwner, Message: message}
}

func internalError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: message}
}

func rejection(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Code: code, Message: message, Details: details}
}
