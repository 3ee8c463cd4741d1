package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"
)

const DefaultCooldown = 600 * time.Second

// DedupConfig holds configuration for the alert de-duplicator.
type DedupConfig struct {
	Sender   ports.AlertSender
	Journal  ports.AlertJournal // Optional
	Logger   ports.Logger
	Cooldown time.Duration
	Muted    bool // Record but never deliver, for development environments
	Now      func() time.Time
}

// Deduplicator suppresses repeats of the two most recently sent subjects
// until the cooldown since the last send has passed.
type Deduplicator struct {
	sender   ports.AlertSender
	journal  ports.AlertJournal
	logger   ports.Logger
	cooldown time.Duration
	muted    bool
	now      func() time.Time

	mu       sync.Mutex
	recent   [2]string
	lastSent time.Time
}

// NewDeduplicator creates a new de-duplicating delivery stage.
func NewDeduplicator(cfg DedupConfig) (*Deduplicator, error) {
	if cfg.Sender == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Deduplicator")
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Deduplicator{
		sender:   cfg.Sender,
		journal:  cfg.Journal,
		logger:   cfg.Logger,
		cooldown: cooldown,
		muted:    cfg.Muted,
		now:      now,
	}, nil
}

// Deliver sends the alert unless it is a recent repeat. The category is the subject.
func (d *Deduplicator) Deliver(ctx context.Context, category, detail string) error {
	now := d.now()
	suppressed := d.admit(category, now)

	if d.journal != nil {
		alert := &domain.Alert{Category: category, Detail: detail, Suppressed: suppressed, CreatedAt: now}
		if _, err := d.journal.RecordAlert(ctx, alert); err != nil {
			d.logger.Error(ctx, err, "Failed to record alert", map[string]interface{}{"category": category})
		}
	}

	fields := map[string]interface{}{"category": category}
	if suppressed {
		d.logger.Debug(ctx, "Suppressed repeated alert", fields)
		return nil
	}
	if d.muted {
		d.logger.Info(ctx, "Alert delivery muted", fields)
		return nil
	}
	return d.sender.Send(ctx, category, detail)
}

// admit reports whether the subject must be suppressed and, if not, records it as sent.
func (d *Deduplicator) admit(subject string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	repeat := subject == d.recent[0] || subject == d.recent[1]
	if repeat && !d.lastSent.IsZero() && now.Sub(d.lastSent) < d.cooldown {
		return true
	}
	d.recent[1] = d.recent[0]
	d.recent[0] = subject
	d.lastSent = now
	return false
}
