package fetcher

import (
	"fmt"
	"strings"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"
)

const maxListedMissing = 10

// BatchError reports a fetch cycle in which not every symbol completed.
type BatchError struct {
	CycleID        string
	Requested      int
	Completed      int
	Missing        []string // Sorted base assets that did not complete
	Elapsed        time.Duration
	BudgetExceeded bool
	Partial        *domain.FetchResult // Set only when the request allowed partial results
}

func (e *BatchError) Error() string {
	listed := e.Missing
	suffix := ""
	if len(listed) > maxListedMissing {
		suffix = fmt.Sprintf(" and %d more", len(listed)-maxListedMissing)
		listed = listed[:maxListedMissing]
	}
	return fmt.Sprintf("fetch cycle %s incomplete: %d/%d symbols completed, missing %s%s",
		e.CycleID, e.Completed, e.Requested, strings.Join(listed, ","), suffix)
}

func (e *BatchError) Unwrap() error {
	return ports.ErrIncompleteBatch
}
