package ports

import (
	"context"
	"time"

	"binanceMarginBot/internal/domain"
)

// CycleRepository persists fetch cycle reports.
type CycleRepository interface {
	// SaveCycle stores a cycle report.
	SaveCycle(ctx context.Context, report *domain.CycleReport) error
	// RecentCycles returns the most recent reports, newest first.
	RecentCycles(ctx context.Context, limit int) ([]*domain.CycleReport, error)
	// CountAlertsSince counts alerts of a category recorded at or after since.
	CountAlertsSince(ctx context.Context, category string, since time.Time) (int, error)
}
