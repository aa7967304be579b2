package transcription

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code identifies one member of the closed error taxonomy. Codes are stable
// machine-readable identifiers; only messages may be rewritten downstream.
type Code string

const (
	CodeBadRequest          Code = "bad_request"
	CodeAuthentication      Code = "authentication"
	CodeInsufficientCredits Code = "insufficient_credits"
	CodeRateLimit           Code = "rate_limit"
	CodeProviderUnavailable Code = "provider_unavailable"
	CodeServerTimeout       Code = "server_timeout"
	CodeInvalidAudio        Code = "invalid_audio"
	CodeInvalidResponse     Code = "invalid_response"
	CodeEmptyTranscript     Code = "empty_transcript"
	CodeChunkingFailed      Code = "chunking_failed"
	CodeCancelled           Code = "cancelled"
	CodeMaxRetries          Code = "max_retries_exceeded"
)

// Category groups codes for diagnostics and degradation decisions.
type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryAuthentication Category = "authentication"
	CategoryValidation     Category = "validation"
	CategoryQuota          Category = "quota"
	CategoryServer         Category = "server"
	CategoryUnknown        Category = "unknown"
)

// Severity ranks how actionable a failure is for the caller.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Error is the single error type crossing package boundaries. Category and
// Retryable are fixed at construction time; downstream code must branch on
// Code, never on message text.
type Error struct {
	Code       Code
	Category   Category
	Message    string
	Retryable  bool
	Status     int           // HTTP status when the failure came off the wire
	RetryAfter time.Duration // hint from a 429 response, zero when absent
	Cause      error
}

// Error formats the code and message for logs and CLI output.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithMessage returns a copy carrying a rewritten human-readable message.
// Code, category, retryability, status, and cause are preserved so that
// programmatic callers see an unchanged classification.
func (e *Error) WithMessage(msg string) *Error {
	clone := *e
	clone.Message = msg
	return &clone
}

// NewBadRequest reports malformed request parameters. Never retried.
func NewBadRequest(msg string) *Error {
	return &Error{Code: CodeBadRequest, Category: CategoryValidation, Message: msg, Retryable: false, Status: 400}
}

// NewAuthentication reports a rejected credential. Never retried.
func NewAuthentication(msg string) *Error {
	return &Error{Code: CodeAuthentication, Category: CategoryAuthentication, Message: msg, Retryable: false, Status: 401}
}

// NewInsufficientCredits reports an exhausted account balance. Never retried.
func NewInsufficientCredits(msg string) *Error {
	return &Error{Code: CodeInsufficientCredits, Category: CategoryQuota, Message: msg, Retryable: false, Status: 402}
}

// NewRateLimit reports provider throttling, carrying the retry-after hint when
// the provider supplied one.
func NewRateLimit(msg string, retryAfter time.Duration) *Error {
	return &Error{Code: CodeRateLimit, Category: CategoryQuota, Message: msg, Retryable: true, Status: 429, RetryAfter: retryAfter}
}

// NewProviderUnavailable reports a 5xx response or an open circuit.
func NewProviderUnavailable(msg string, cause error) *Error {
	return &Error{Code: CodeProviderUnavailable, Category: CategoryServer, Message: msg, Retryable: true, Status: 503, Cause: cause}
}

// NewServerTimeout reports a gateway timeout (504).
func NewServerTimeout(msg string) *Error {
	return &Error{Code: CodeServerTimeout, Category: CategoryServer, Message: msg, Retryable: true, Status: 504}
}

// NewInvalidAudio reports audio the validator rejected before any network
// call. Never retried; the caller must fix the input.
func NewInvalidAudio(msg string) *Error {
	return &Error{Code: CodeInvalidAudio, Category: CategoryValidation, Message: msg, Retryable: false}
}

// NewInvalidResponse reports a structurally broken provider response body.
func NewInvalidResponse(msg string) *Error {
	return &Error{Code: CodeInvalidResponse, Category: CategoryServer, Message: msg, Retryable: false}
}

// NewEmptyTranscript reports a structurally valid response with no recognized
// text. The diagnostic causes are folded into the message.
func NewEmptyTranscript(causes []string) *Error {
	msg := "transcription returned no text"
	if len(causes) > 0 {
		msg = fmt.Sprintf("%s (likely causes: %s)", msg, strings.Join(causes, "; "))
	}
	return &Error{Code: CodeEmptyTranscript, Category: CategoryValidation, Message: msg, Retryable: false}
}

// NewChunkingFailed reports that every chunk of a chunked request failed.
func NewChunkingFailed(attempted int, lastErr error) *Error {
	return &Error{
		Code:      CodeChunkingFailed,
		Category:  CategoryServer,
		Message:   fmt.Sprintf("all %d audio chunks failed to transcribe", attempted),
		Retryable: false,
		Cause:     lastErr,
	}
}

// NewCancelled reports a deliberate user abort. Never retried.
func NewCancelled(cause error) *Error {
	return &Error{Code: CodeCancelled, Category: CategoryUnknown, Message: "transcription cancelled", Retryable: false, Cause: cause}
}

// NewMaxRetriesExceeded wraps the last failure after the retry budget is
// spent. Terminal.
func NewMaxRetriesExceeded(attempts int, lastErr error) *Error {
	return &Error{
		Code:      CodeMaxRetries,
		Category:  categoryOf(lastErr),
		Message:   fmt.Sprintf("operation failed after %d attempts: %s", attempts, messageOf(lastErr)),
		Retryable: false,
		Cause:     lastErr,
	}
}

// AsError extracts a taxonomy error from err's chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// CodeOf returns the code of err, or empty when err is not a taxonomy error.
func CodeOf(err error) Code {
	if te, ok := AsError(err); ok {
		return te.Code
	}
	return ""
}

// IsRetryable reports whether err may be retried. Unclassified errors are
// treated as transient network failures and retried.
func IsRetryable(err error) bool {
	if te, ok := AsError(err); ok {
		return te.Retryable
	}
	return true
}

func categoryOf(err error) Category {
	if te, ok := AsError(err); ok {
		return te.Category
	}
	return CategoryUnknown
}

func messageOf(err error) string {
	if err == nil {
		return "unknown error"
	}
	if te, ok := AsError(err); ok {
		return te.Message
	}
	return err.Error()
}

// ErrorAnalysis is a derived, per-failure assessment with degradation hints.
// It is never stored.
type ErrorAnalysis struct {
	Category          Category
	Severity          Severity
	Retryable         bool
	SuggestedModel    string
	DisableFeatures   []string
	Actions           []string
	EstimatedRecovery time.Duration
}

// Analyze classifies a failure and recommends degradation steps. The
// estimated recovery for throttling without a retry-after hint defaults to
// the supplied breaker cooldown.
func Analyze(err error, breakerCooldown time.Duration) ErrorAnalysis {
	te, ok := AsError(err)
	if !ok {
		return ErrorAnalysis{
			Category:  CategoryNetwork,
			Severity:  SeverityWarning,
			Retryable: true,
			Actions:   []string{"check network connectivity", "retry the request"},
		}
	}

	analysis := ErrorAnalysis{Category: te.Category, Retryable: te.Retryable, Severity: SeverityError}

	switch te.Code {
	case CodeAuthentication:
		analysis.Severity = SeverityCritical
		analysis.Actions = []string{"verify the API key in settings", "generate a fresh key in the provider console"}
	case CodeInsufficientCredits:
		analysis.Severity = SeverityCritical
		analysis.Actions = []string{"top up the provider account balance", "switch to a cheaper model tier"}
		analysis.SuggestedModel = "base"
	case CodeRateLimit:
		analysis.Severity = SeverityWarning
		analysis.Actions = []string{"reduce concurrent requests", "wait before retrying"}
		analysis.EstimatedRecovery = te.RetryAfter
		if analysis.EstimatedRecovery == 0 {
			analysis.EstimatedRecovery = breakerCooldown
		}
	case CodeProviderUnavailable, CodeMaxRetries:
		analysis.Actions = []string{"wait for the provider to recover", "check the provider status page"}
		analysis.EstimatedRecovery = breakerCooldown
	case CodeServerTimeout:
		analysis.Actions = []string{"enable auto-chunking for large files", "use a smaller/faster model"}
		analysis.SuggestedModel = "base"
	case CodeInvalidAudio, CodeBadRequest:
		analysis.Actions = []string{"check the audio file format and size", "re-export the recording"}
	case CodeEmptyTranscript:
		analysis.Severity = SeverityWarning
		analysis.Actions = []string{"check audio volume and content", "verify the language setting matches the speech"}
		analysis.DisableFeatures = []string{"diarize"}
	case CodeCancelled:
		analysis.Severity = SeverityWarning
		analysis.Actions = nil
	default:
		analysis.Actions = []string{"retry the request", "report the error if it persists"}
	}

	return analysis
}
