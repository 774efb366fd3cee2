package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType classifies a scrape failure
type ErrorType string

const (
	// ErrorTypeInvalidQuery represents requests that fail shape validation
	ErrorTypeInvalidQuery ErrorType = "invalid_query"
	// ErrorTypeCapability represents operations the active backend cannot perform
	ErrorTypeCapability ErrorType = "capability_unsupported"
	// ErrorTypeTransport represents transient network failures (timeout, 5xx, reset)
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeBadStatus represents non-transient unexpected HTTP statuses
	ErrorTypeBadStatus ErrorType = "bad_status"
	// ErrorTypeRateLimit represents portal rate limiting
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParse represents HTML parsing errors
	ErrorTypeParse ErrorType = "parsing"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError carries enough context (operation, backend) for callers to
// decide whether retrying with different parameters makes sense.
type ScrapeError struct {
	Type    ErrorType
	Backend string
	Op      string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	scope := e.Op
	if e.Backend != "" {
		scope = e.Backend + "/" + e.Op
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, scope, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, scope, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the failure is transient and worth another
// attempt. Only transport failures qualify; rate limiting and permanent
// failures must surface immediately.
func (e *ScrapeError) IsRetryable() bool {
	return e.Type == ErrorTypeTransport
}

// New creates a new ScrapeError
func New(errType ErrorType, backend, op, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Backend: backend,
		Op:      op,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewInvalidQuery creates a validation error
func NewInvalidQuery(op, message string) *ScrapeError {
	return New(ErrorTypeInvalidQuery, "", op, message, nil)
}

// NewCapability creates a capability-gap error
func NewCapability(backend, op, message string) *ScrapeError {
	return New(ErrorTypeCapability, backend, op, message, nil)
}

// NewTransport creates a transient transport error
func NewTransport(backend, op, message string, err error) *ScrapeError {
	return New(ErrorTypeTransport, backend, op, message, err)
}

// NewBadStatus creates a non-retryable status error
func NewBadStatus(backend, op string, status int) *ScrapeError {
	return New(ErrorTypeBadStatus, backend, op, fmt.Sprintf("unexpected status code: %d", status), nil)
}

// NewRateLimit creates a rate limit error
func NewRateLimit(backend, op, retryAfter string) *ScrapeError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	return New(ErrorTypeRateLimit, backend, op, message, nil)
}

// NewParse creates a parsing error
func NewParse(backend, op, message string, err error) *ScrapeError {
	return New(ErrorTypeParse, backend, op, message, err)
}

// NewCache creates a cache or stream storage error
func NewCache(op, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, "", op, message, err)
}

// NewConfiguration creates a configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", "", message, err)
}

// IsType reports whether err is a ScrapeError of the given type.
func IsType(err error, t ErrorType) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type == t
	}
	return false
}

// Retryable reports whether err is a retryable ScrapeError. Unclassified
// errors are treated as permanent.
func Retryable(err error) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.IsRetryable()
	}
	return false
}
