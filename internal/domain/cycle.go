package domain

import "time"

// CycleStatus is the persisted verdict of one fetch cycle.
type CycleStatus string

const (
	CycleComplete   CycleStatus = "complete"
	CycleIncomplete CycleStatus = "incomplete"
	CycleCanceled   CycleStatus = "canceled"
	CycleError      CycleStatus = "error"
)

// CycleReport summarizes one fetch cycle for the audit log.
type CycleReport struct {
	ID             string
	StartedAt      time.Time
	Interval       string
	Limit          int
	TargetOpenTime *int64
	Requested      int
	Completed      int
	Records        int
	Elapsed        time.Duration
	Status         CycleStatus
	BudgetExceeded bool
	Missing        []string
}

// Alert is one notification routed through the alert pipeline.
type Alert struct {
	ID         int64
	Category   string
	Detail     string
	Suppressed bool
	CreatedAt  time.Time
}
