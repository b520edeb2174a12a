// Package apperrors defines the error taxonomy shared by the pipeline and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindFileValidation    Kind = "FileValidationError"
	KindNotFound          Kind = "NotFoundError"
	KindAuthentication    Kind = "AuthenticationError"
	KindAuthorization     Kind = "AuthorizationError"
	KindRateLimit         Kind = "RateLimitError"
	KindExternalService   Kind = "ExternalServiceError"
	KindOCR               Kind = "OCRError"
	KindContentGeneration Kind = "ContentGenerationError"
	KindSchema            Kind = "SchemaError"
	KindPipelineFailed    Kind = "PipelineFailedError"
	KindJobInProgress     Kind = "JobInProgress"
	KindIntegrity         Kind = "DataIntegrityError"
	KindConfiguration     Kind = "ConfigurationError"
	KindInternal          Kind = "InternalServerError"
)

// ScrubbedMessage is what clients see for errors outside the taxonomy.
const ScrubbedMessage = "An unexpected error occurred. Please try again later."

// Error is the single concrete error type of the taxonomy. Kind decides the
// HTTP status; Details is rendered verbatim into the response envelope.
type Error struct {
	Kind       Kind
	Message    string
	Field      string
	Stage      string
	Details    map[string]any
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsPipeline reports whether the error belongs to the pipeline family.
func (e *Error) IsPipeline() bool {
	switch e.Kind {
	case KindOCR, KindContentGeneration, KindSchema:
		return true
	}
	return false
}

func newError(kind Kind, message string, details map[string]any) *Error {
	if details == nil {
		details = map[string]any{}
	}
	return &Error{Kind: kind, Message: message, Details: details}
}

func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

func ValidationField(field, message string) *Error {
	e := newError(KindValidation, message, nil)
	e.Field = field
	return e
}

func FileValidation(message, filename, fileType string, maxSize int64) *Error {
	details := map[string]any{}
	if filename != "" {
		details["filename"] = filename
	}
	if fileType != "" {
		details["file_type"] = fileType
	}
	if maxSize > 0 {
		details["max_size_bytes"] = maxSize
	}
	return newError(KindFileValidation, message, details)
}

func NotFound(resourceType, resourceID string) *Error {
	return newError(KindNotFound,
		fmt.Sprintf("%s with ID '%s' not found", resourceType, resourceID),
		map[string]any{"resource_type": resourceType, "resource_id": resourceID})
}

func Authentication(message string) *Error {
	return newError(KindAuthentication, message, nil)
}

func Authorization(message string) *Error {
	return newError(KindAuthorization, message, nil)
}

func RateLimit(service string, retryAfter time.Duration) *Error {
	msg := fmt.Sprintf("Rate limit exceeded for %s", service)
	secs := int(retryAfter.Round(time.Second).Seconds())
	if secs > 0 {
		msg += fmt.Sprintf(". Retry after %d seconds.", secs)
	}
	e := newError(KindRateLimit, msg, map[string]any{"service": service})
	if secs > 0 {
		e.Details["retry_after"] = secs
	}
	e.RetryAfter = retryAfter
	return e
}

func ExternalService(service string, statusCode int, message string, cause error) *Error {
	details := map[string]any{"service": service}
	if statusCode != 0 {
		details["status_code"] = statusCode
	}
	e := newError(KindExternalService, message, details)
	e.Err = cause
	return e
}

// Pipeline builds an OCR, content generation or schema error for a stage.
func Pipeline(kind Kind, stage, message string, cause error) *Error {
	details := map[string]any{}
	if stage != "" {
		details["stage"] = stage
	}
	if cause != nil {
		details["original_error"] = cause.Error()
	}
	e := newError(kind, message, details)
	e.Stage = stage
	e.Err = cause
	return e
}

func OCR(stage, message string, cause error) *Error {
	return Pipeline(KindOCR, stage, message, cause)
}

func ContentGeneration(stage, message string, cause error) *Error {
	return Pipeline(KindContentGeneration, stage, message, cause)
}

func Schema(stage, message string, payload any, violations []string) *Error {
	e := Pipeline(KindSchema, stage, message, nil)
	if payload != nil {
		e.Details["payload"] = payload
	}
	if len(violations) > 0 {
		e.Details["violations"] = violations
	}
	return e
}

func PipelineFailed(message string, details map[string]any) *Error {
	return newError(KindPipelineFailed, message, details)
}

func JobInProgress(message string, details map[string]any) *Error {
	return newError(KindJobInProgress, message, details)
}

func Integrity(message string, details map[string]any) *Error {
	return newError(KindIntegrity, message, details)
}

func Configuration(message string) *Error {
	return newError(KindConfiguration, message, nil)
}

// As returns the taxonomy error wrapped in err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HTTPStatus returns the status code an error maps to.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case KindValidation, KindFileValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindExternalService:
		return http.StatusBadGateway
	case KindPipelineFailed:
		return http.StatusFailedDependency
	case KindJobInProgress:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
