package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://api.test/api/v3/klines?symbol=BTCUSDT&interval=5m&limit=2"

func newTestExecutor(t *testing.T, transport ports.KlineTransport, notifier ports.Notifier, sleeper *recordingSleep) *Executor {
	t.Helper()
	e, err := NewExecutor(ExecutorConfig{
		Transport:   transport,
		Notifier:    notifier,
		Logger:      &mockLogger{},
		MaxRetries:  5,
		BackoffBase: time.Second,
		Sleep:       sleeper.sleep,
	})
	require.NoError(t, err)
	return e
}

func TestNewExecutor_RequiresDependencies(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{Transport: newScriptedTransport(), Logger: &mockLogger{}})
	assert.Error(t, err)
}

func TestExecutor_Delay(t *testing.T) {
	e := newTestExecutor(t, newScriptedTransport(), &recordingNotifier{}, &recordingSleep{})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, d := range want {
		assert.Equal(t, d, e.Delay(i), "attempt %d", i)
	}
}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name         string
		steps        []step
		wantStatus   domain.OutcomeStatus
		wantAttempts int
		wantLastErr  domain.ErrorKind
		wantAlerts   []string
		wantDelays   []time.Duration
	}{
		{
			name:         "first attempt succeeds",
			steps:        []step{ok(`[]`)},
			wantStatus:   domain.OutcomeSuccess,
			wantAttempts: 1,
			wantAlerts:   []string{},
			wantDelays:   nil,
		},
		{
			name:         "503 twice then success",
			steps:        []step{status(503, domain.ErrorKindUnavailable, 0), status(503, domain.ErrorKindUnavailable, 0), ok(`[]`)},
			wantStatus:   domain.OutcomeSuccess,
			wantAttempts: 3,
			wantLastErr:  domain.ErrorKindUnavailable,
			wantAlerts:   []string{},
			wantDelays:   []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:         "429 is terminal",
			steps:        []step{status(429, domain.ErrorKindRateLimited, 0)},
			wantStatus:   domain.OutcomeThrottled,
			wantAttempts: 1,
			wantLastErr:  domain.ErrorKindRateLimited,
			wantAlerts:   []string{ports.AlertRateLimited},
			wantDelays:   nil,
		},
		{
			name:         "rejected code is terminal",
			steps:        []step{status(400, domain.ErrorKindRejected, -1121)},
			wantStatus:   domain.OutcomeRejected,
			wantAttempts: 1,
			wantLastErr:  domain.ErrorKindRejected,
			wantAlerts:   []string{ports.AlertRequestRejected},
		},
		{
			name:         "unclassified code is terminal",
			steps:        []step{status(400, domain.ErrorKindUnclassified, -9999)},
			wantStatus:   domain.OutcomeRejected,
			wantAttempts: 1,
			wantLastErr:  domain.ErrorKindUnclassified,
			wantAlerts:   []string{ports.AlertUnclassified},
		},
		{
			name:         "transport errors exhaust retries",
			steps:        []step{transportErr(errors.New("connection reset by peer"))},
			wantStatus:   domain.OutcomeFailed,
			wantAttempts: 5,
			wantLastErr:  domain.ErrorKindConnection,
			wantAlerts:   []string{ports.AlertRetriesExhausted},
			wantDelays:   []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second},
		},
		{
			name:         "malformed body is retried",
			steps:        []step{status(200, domain.ErrorKindMalformed, 0), ok(`[]`)},
			wantStatus:   domain.OutcomeSuccess,
			wantAttempts: 2,
			wantLastErr:  domain.ErrorKindMalformed,
			wantAlerts:   []string{},
			wantDelays:   []time.Duration{time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newScriptedTransport().on(testURL, tt.steps...)
			notifier := &recordingNotifier{}
			sleeper := &recordingSleep{}
			e := newTestExecutor(t, transport, notifier, sleeper)

			out := e.Execute(context.Background(), domain.SymbolRequest{Symbol: "BTC", URL: testURL})

			assert.Equal(t, "BTC", out.Symbol)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantAttempts, out.Attempts)
			assert.Equal(t, tt.wantAttempts, transport.callCount(testURL))
			if tt.wantLastErr != domain.ErrorKindNone {
				assert.Equal(t, tt.wantLastErr, out.LastError)
			}
			assert.Equal(t, tt.wantAlerts, notifier.categories())
			assert.Equal(t, tt.wantDelays, sleeper.recorded())
			if tt.wantStatus == domain.OutcomeSuccess {
				assert.Equal(t, []byte(`[]`), out.Payload)
			} else {
				assert.Nil(t, out.Payload)
			}
		})
	}
}

func TestExecutor_Execute_AttemptTimeout(t *testing.T) {
	transport := newScriptedTransport().on(testURL, ok(`[]`))
	transport.delay = 200 * time.Millisecond
	notifier := &recordingNotifier{}
	sleeper := &recordingSleep{}
	e, err := NewExecutor(ExecutorConfig{
		Transport:      transport,
		Notifier:       notifier,
		Logger:         &mockLogger{},
		MaxRetries:     2,
		RequestTimeout: 10 * time.Millisecond,
		Sleep:          sleeper.sleep,
	})
	require.NoError(t, err)

	out := e.Execute(context.Background(), domain.SymbolRequest{Symbol: "BTC", URL: testURL})

	assert.Equal(t, domain.OutcomeFailed, out.Status)
	assert.Equal(t, domain.ErrorKindTimeout, out.LastError)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []string{ports.AlertRetriesExhausted}, notifier.categories())
}

func TestExecutor_Execute_Canceled(t *testing.T) {
	transport := newScriptedTransport().on(testURL, ok(`[]`))
	notifier := &recordingNotifier{}
	e := newTestExecutor(t, transport, notifier, &recordingSleep{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.Execute(ctx, domain.SymbolRequest{Symbol: "BTC", URL: testURL})

	assert.Equal(t, domain.OutcomeCanceled, out.Status)
	assert.Equal(t, 0, transport.callCount(testURL))
	assert.Empty(t, notifier.categories())
}

func TestExecutor_Execute_CanceledDuringBackoff(t *testing.T) {
	transport := newScriptedTransport().on(testURL, status(503, domain.ErrorKindUnavailable, 0))
	notifier := &recordingNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	e, err := NewExecutor(ExecutorConfig{
		Transport: transport,
		Notifier:  notifier,
		Logger:    &mockLogger{},
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})
	require.NoError(t, err)

	out := e.Execute(ctx, domain.SymbolRequest{Symbol: "BTC", URL: testURL})

	assert.Equal(t, domain.OutcomeCanceled, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, domain.ErrorKindUnavailable, out.LastError)
	assert.Empty(t, notifier.categories())
}

func TestClassifyTransportError(t *testing.T) {
	assert.Equal(t, domain.ErrorKindTimeout, classifyTransportError(context.DeadlineExceeded))
	assert.Equal(t, domain.ErrorKindTimeout, classifyTransportError(timeoutErr{}))
	assert.Equal(t, domain.ErrorKindConnection, classifyTransportError(errors.New("dial tcp: connection refused")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestExecutor_Execute_RetriesFollowErrorKind(t *testing.T) {
	kinds := []domain.ErrorKind{
		domain.ErrorKindUnavailable,
		domain.ErrorKindServer,
		domain.ErrorKindHTTPStatus,
		domain.ErrorKindMalformed,
		domain.ErrorKindRateLimited,
		domain.ErrorKindRejected,
		domain.ErrorKindUnclassified,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			transport := newScriptedTransport().on(testURL, status(500, kind, 0))
			notifier := &recordingNotifier{}
			e := newTestExecutor(t, transport, notifier, &recordingSleep{})

			out := e.Execute(context.Background(), domain.SymbolRequest{Symbol: "BTC", URL: testURL})

			require.Len(t, notifier.categories(), 1)
			if kind.Retryable() {
				assert.Equal(t, 5, transport.callCount(testURL))
				assert.Equal(t, domain.OutcomeFailed, out.Status)
				assert.Equal(t, ports.AlertRetriesExhausted, notifier.categories()[0])
			} else {
				assert.Equal(t, 1, transport.callCount(testURL))
				assert.NotEqual(t, ports.AlertRetriesExhausted, notifier.categories()[0])
			}
		})
	}
}

func TestExecutor_Execute_ExhaustionLogsSentinel(t *testing.T) {
	transport := newScriptedTransport().on(testURL, status(503, domain.ErrorKindUnavailable, 0))
	notifier := &recordingNotifier{}
	logger := &mockLogger{}
	e, err := NewExecutor(ExecutorConfig{
		Transport:  transport,
		Notifier:   notifier,
		Logger:     logger,
		MaxRetries: 2,
		Sleep:      (&recordingSleep{}).sleep,
	})
	require.NoError(t, err)

	out := e.Execute(context.Background(), domain.SymbolRequest{Symbol: "BTC", URL: testURL})

	assert.Equal(t, domain.OutcomeFailed, out.Status)
	errs := logger.loggedErrors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ports.ErrRetriesExhausted)
	assert.Contains(t, errs[0].Error(), "BTC")
}
