package ports

import (
	"context"

	"binanceMarginBot/internal/domain"
)

// Alert categories raised by the fetch pipeline.
const (
	AlertRateLimited      = "rate_limited"
	AlertRequestRejected  = "request_rejected"
	AlertUnclassified     = "unclassified_error"
	AlertRetriesExhausted = "retries_exhausted"
	AlertIncompleteBatch  = "incomplete_batch"
	AlertBudgetExceeded   = "budget_exceeded"
)

// Notifier is the fire-and-forget alert sink.
// Notify must never block the caller and never fail; delivery problems are swallowed.
type Notifier interface {
	Notify(category, detail string)
}

// AlertSender delivers a single alert to an external channel (Telegram, log, ...).
type AlertSender interface {
	Send(ctx context.Context, subject, body string) error
}

// AlertJournal records every alert that passed through the pipeline, delivered or suppressed.
type AlertJournal interface {
	RecordAlert(ctx context.Context, alert *domain.Alert) (int64, error)
}
