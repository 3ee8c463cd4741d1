package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"binanceMarginBot/internal/ports"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 30 * time.Second
)

// Deliverer is the synchronous delivery stage behind Async.
type Deliverer interface {
	Deliver(ctx context.Context, category, detail string) error
}

// AsyncConfig holds configuration for the asynchronous notifier.
type AsyncConfig struct {
	Deliverer   Deliverer
	Logger      ports.Logger
	QueueSize   int
	SendTimeout time.Duration
}

type queuedAlert struct {
	category string
	detail   string
}

// Async implements ports.Notifier. Notify never blocks; a single worker delivers in order.
type Async struct {
	deliverer   Deliverer
	logger      ports.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queuedAlert
	done   chan struct{}
}

// NewAsync creates the notifier and starts its worker.
func NewAsync(cfg AsyncConfig) (*Async, error) {
	if cfg.Deliverer == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Async notifier")
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	a := &Async{
		deliverer:   cfg.Deliverer,
		logger:      cfg.Logger,
		sendTimeout: timeout,
		queue:       make(chan queuedAlert, size),
		done:        make(chan struct{}),
	}
	go a.run()
	return a, nil
}

// Notify enqueues the alert. When the queue is full or the notifier is closed the alert is dropped.
func (a *Async) Notify(category, detail string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- queuedAlert{category: category, detail: detail}:
	default:
		a.logger.Warn(context.Background(), "Alert queue full, dropping alert", map[string]interface{}{"category": category})
	}
}

// Close stops accepting alerts and waits until the queued ones are delivered or ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("alert drain failed: %w: %w", ports.ErrTimeout, ctx.Err())
	}
}

func (a *Async) run() {
	defer close(a.done)
	for alert := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
		if err := a.deliverer.Deliver(ctx, alert.category, alert.detail); err != nil {
			a.logger.Error(ctx, err, "Alert delivery failed", map[string]interface{}{"category": alert.category})
		}
		cancel()
	}
}
