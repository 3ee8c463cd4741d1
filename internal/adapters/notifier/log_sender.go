package notifier

import (
	"context"
	"fmt"

	"binanceMarginBot/internal/ports"
)

// LogSender writes alerts to the logger. Used when no external channel is configured.
type LogSender struct {
	logger ports.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger ports.Logger) (*LogSender, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for LogSender")
	}
	return &LogSender{logger: logger}, nil
}

// Send logs the alert at warn level.
func (s *LogSender) Send(ctx context.Context, subject, body string) error {
	s.logger.Warn(ctx, "ALERT "+subject, map[string]interface{}{"detail": body})
	return nil
}
