package domain

// ErrorKind classifies the failure of a single request attempt.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindTimeout      ErrorKind = "TIMEOUT"      // Attempt deadline exceeded
	ErrorKindConnection   ErrorKind = "CONNECTION"   // Dial, reset, TLS and similar transport failures
	ErrorKindUnavailable  ErrorKind = "UNAVAILABLE"  // HTTP 503
	ErrorKindServer       ErrorKind = "SERVER"       // Known transient exchange error code
	ErrorKindHTTPStatus   ErrorKind = "HTTP_STATUS"  // Other non-200 without a usable error code
	ErrorKindMalformed    ErrorKind = "MALFORMED"    // 200 with a body that is not an array of arrays
	ErrorKindRateLimited  ErrorKind = "RATE_LIMITED" // HTTP 429/418 or exchange code -1003
	ErrorKindRejected     ErrorKind = "REJECTED"     // Known request-invalid exchange code
	ErrorKindUnclassified ErrorKind = "UNCLASSIFIED" // Exchange code not in the known tables
	ErrorKindCanceled     ErrorKind = "CANCELED"     // Caller canceled the cycle
)

// Retryable reports whether an attempt failing with this kind may be retried.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindTimeout, ErrorKindConnection, ErrorKindUnavailable,
		ErrorKindServer, ErrorKindHTTPStatus, ErrorKindMalformed:
		return true
	default:
		return false
	}
}

// OutcomeStatus is the final status of one symbol request.
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "SUCCESS"
	OutcomeThrottled OutcomeStatus = "THROTTLED" // Terminal rate-limit signal
	OutcomeRejected  OutcomeStatus = "REJECTED"  // Terminal non-retryable error code
	OutcomeFailed    OutcomeStatus = "FAILED"    // Retries exhausted
	OutcomeCanceled  OutcomeStatus = "CANCELED"
)

// RetryState tracks one request's retry loop.
type RetryState struct {
	Attempt   int
	LastError ErrorKind
}

// RequestOutcome is what the executor returns for one SymbolRequest.
type RequestOutcome struct {
	Symbol    string
	Status    OutcomeStatus
	Payload   []byte // Raw response body, set only on success
	Attempts  int
	LastError ErrorKind
}

// Succeeded reports whether the request produced a payload.
func (o RequestOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}
