package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"

	"github.com/jpillora/backoff"
)

const (
	DefaultMaxRetries     = 5
	DefaultBackoffBase    = time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// RequestExecutor runs one symbol request to a final outcome.
type RequestExecutor interface {
	Execute(ctx context.Context, req domain.SymbolRequest) domain.RequestOutcome
}

// ExecutorConfig holds configuration for the retrying executor.
type ExecutorConfig struct {
	Transport      ports.KlineTransport
	Notifier       ports.Notifier
	Logger         ports.Logger
	MaxRetries     int           // Attempts per request, R
	BackoffBase    time.Duration // B; the delay after attempt i is B * 2^i
	RequestTimeout time.Duration // Deadline of a single attempt

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Executor wraps a single kline request with bounded retries and exponential backoff.
type Executor struct {
	transport      ports.KlineTransport
	notifier       ports.Notifier
	logger         ports.Logger
	maxRetries     int
	requestTimeout time.Duration
	backoff        *backoff.Backoff
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a new retrying executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Transport == nil || cfg.Notifier == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Executor")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	shift := maxRetries
	if shift > 30 {
		shift = 30
	}

	return &Executor{
		transport:      cfg.Transport,
		notifier:       cfg.Notifier,
		logger:         cfg.Logger,
		maxRetries:     maxRetries,
		requestTimeout: timeout,
		backoff: &backoff.Backoff{
			Min:    base,
			Max:    base << uint(shift),
			Factor: 2,
			Jitter: false,
		},
		sleep: sleep,
	}, nil
}

// Delay returns the backoff applied after the failed attempt with the given zero-based index.
func (e *Executor) Delay(attemptIndex int) time.Duration {
	return e.backoff.ForAttempt(float64(attemptIndex))
}

// Execute attempts the request up to MaxRetries times. It never returns an error:
// every way a request can end is a distinct OutcomeStatus.
func (e *Executor) Execute(ctx context.Context, req domain.SymbolRequest) domain.RequestOutcome {
	out := domain.RequestOutcome{Symbol: req.Symbol}
	var state domain.RetryState

	for state.Attempt = 0; state.Attempt < e.maxRetries; state.Attempt++ {
		if ctx.Err() != nil {
			return canceled(out, state)
		}

		resp, kind := e.attempt(ctx, req)
		out.Attempts = state.Attempt + 1
		if kind == domain.ErrorKindNone {
			out.Status = domain.OutcomeSuccess
			out.Payload = resp.Body
			return out
		}
		if ctx.Err() != nil {
			return canceled(out, state)
		}
		state.LastError = kind
		out.LastError = kind

		fields := map[string]interface{}{"symbol": req.Symbol, "attempt": out.Attempts, "kind": string(kind)}
		if resp != nil {
			fields["status"] = resp.StatusCode
			if resp.Code != 0 {
				fields["code"] = resp.Code
			}
		}

		if !kind.Retryable() {
			return e.terminate(ctx, req, resp, kind, fields, out)
		}
		if kind == domain.ErrorKindUnavailable {
			e.logger.Debug(ctx, "Kline request hit 503", fields)
		} else {
			e.logger.Warn(ctx, "Kline request attempt failed", fields)
		}

		delay := e.Delay(state.Attempt)
		if err := e.sleep(ctx, delay); err != nil {
			return canceled(out, state)
		}
	}

	exhausted := fmt.Errorf("%w: %s: %d attempts failed, last error %s", ports.ErrRetriesExhausted, req.Symbol, out.Attempts, state.LastError)
	e.logger.Error(ctx, exhausted, "Kline request retries exhausted", map[string]interface{}{"symbol": req.Symbol, "attempts": out.Attempts, "lastError": string(state.LastError)})
	e.notifier.Notify(ports.AlertRetriesExhausted, exhausted.Error())
	out.Status = domain.OutcomeFailed
	return out
}

// terminate ends a request on a non-retryable failure, raising the alert for its category.
func (e *Executor) terminate(ctx context.Context, req domain.SymbolRequest, resp *ports.HTTPResponse, kind domain.ErrorKind, fields map[string]interface{}, out domain.RequestOutcome) domain.RequestOutcome {
	switch kind {
	case domain.ErrorKindRateLimited:
		e.logger.Warn(ctx, "Kline request throttled, not retrying", fields)
		e.notifier.Notify(ports.AlertRateLimited, describe(req, resp, kind))
		out.Status = domain.OutcomeThrottled
	case domain.ErrorKindRejected:
		e.logger.Warn(ctx, "Kline request rejected, not retrying", fields)
		e.notifier.Notify(ports.AlertRequestRejected, describe(req, resp, kind))
		out.Status = domain.OutcomeRejected
	default:
		e.logger.Warn(ctx, "Kline request failed with unclassified error, not retrying", fields)
		e.notifier.Notify(ports.AlertUnclassified, describe(req, resp, kind))
		out.Status = domain.OutcomeRejected
	}
	return out
}

// attempt performs one request under its own deadline.
func (e *Executor) attempt(ctx context.Context, req domain.SymbolRequest) (*ports.HTTPResponse, domain.ErrorKind) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	resp, err := e.transport.Get(attemptCtx, req.URL)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp == nil {
		return nil, domain.ErrorKindConnection
	}
	return resp, resp.Kind
}

func classifyTransportError(err error) domain.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrorKindTimeout
	}
	return domain.ErrorKindConnection
}

func canceled(out domain.RequestOutcome, state domain.RetryState) domain.RequestOutcome {
	out.Status = domain.OutcomeCanceled
	out.LastError = domain.ErrorKindCanceled
	if state.LastError != domain.ErrorKindNone {
		out.LastError = state.LastError
	}
	return out
}

func describe(req domain.SymbolRequest, resp *ports.HTTPResponse, kind domain.ErrorKind) string {
	if resp == nil {
		return fmt.Sprintf("%s: %s", req.Symbol, kind)
	}
	if resp.Code != 0 {
		return fmt.Sprintf("%s: HTTP %d code %d (%s)", req.Symbol, resp.StatusCode, resp.Code, kind)
	}
	return fmt.Sprintf("%s: HTTP %d (%s)", req.Symbol, resp.StatusCode, kind)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
