package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"
)

// mockLogger implements ports.Logger for testing and keeps logged errors
type mockLogger struct {
	mu   sync.Mutex
	errs []error
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

func (m *mockLogger) loggedErrors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errs...)
}

type alertCall struct {
	category string
	detail   string
}

// recordingNotifier implements ports.Notifier and keeps every call
type recordingNotifier struct {
	mu    sync.Mutex
	calls []alertCall
}

func (n *recordingNotifier) Notify(category, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, alertCall{category: category, detail: detail})
}

func (n *recordingNotifier) categories() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.calls))
	for _, c := range n.calls {
		out = append(out, c.category)
	}
	return out
}

// scriptedTransport replays a queue of responses per URL; the last entry repeats.
type scriptedTransport struct {
	mu      sync.Mutex
	scripts map[string][]step
	calls   map[string]int
	delay   time.Duration
}

type step struct {
	resp *ports.HTTPResponse
	err  error
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{scripts: make(map[string][]step), calls: make(map[string]int)}
}

func (s *scriptedTransport) on(url string, steps ...step) *scriptedTransport {
	s.scripts[url] = steps
	return s
}

func (s *scriptedTransport) Get(ctx context.Context, url string) (*ports.HTTPResponse, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[url]
	s.calls[url] = n + 1
	steps, ok := s.scripts[url]
	if !ok || len(steps) == 0 {
		return nil, errors.New("connection refused")
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	return steps[n].resp, steps[n].err
}

func (s *scriptedTransport) callCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func ok(body string) step {
	return step{resp: &ports.HTTPResponse{StatusCode: 200, Body: []byte(body), Kind: domain.ErrorKindNone}}
}

func status(code int, kind domain.ErrorKind, exchangeCode int64) step {
	return step{resp: &ports.HTTPResponse{StatusCode: code, Kind: kind, Code: exchangeCode}}
}

func transportErr(err error) step {
	return step{err: err}
}

// recordingSleep captures backoff delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
