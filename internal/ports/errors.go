package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these so callers can use errors.Is.
var (
	// General Errors
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange Specific Errors
	ErrExchangeUnavailable = errors.New("exchange API is unavailable")
	ErrConnectionFailed    = errors.New("failed to connect to the exchange")
	ErrRateLimited         = errors.New("API rate limit exceeded")
	ErrRequestRejected     = errors.New("exchange rejected the request")
	ErrUnclassified        = errors.New("unclassified exchange error")
	ErrMalformedPayload    = errors.New("malformed response payload")

	// Batch Fetch Errors
	ErrIncompleteBatch  = errors.New("fetch cycle incomplete")
	ErrRetriesExhausted = errors.New("request retries exhausted")
	ErrNoSymbols        = errors.New("no symbols to fetch")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
