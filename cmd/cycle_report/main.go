package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"binanceMarginBot/config"
	"binanceMarginBot/internal/adapters/logger"
	"binanceMarginBot/internal/adapters/sqlite"
	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"
)

var alertCategories = []string{
	ports.AlertRateLimited,
	ports.AlertRequestRejected,
	ports.AlertUnclassified,
	ports.AlertRetriesExhausted,
	ports.AlertIncompleteBatch,
	ports.AlertBudgetExceeded,
}

func main() {
	limit := flag.Int("n", 20, "number of recent cycles to show")
	window := flag.Duration("alerts-since", 24*time.Hour, "alert count window")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(logger.LevelWarn)

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open database: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	cycles, err := repo.RecentCycles(ctx, *limit)
	if err != nil {
		log.Fatalf("Error reading cycles: %v", err)
	}
	if len(cycles) == 0 {
		log.Println("No fetch cycles recorded yet. Run the kline service first.")
		return
	}

	printCycles(os.Stdout, cycles)

	stats := calculateCycleStats(cycles)
	fmt.Println("\n## Summary")
	fmt.Printf("Cycles: %d  Complete: %.1f%%  Over budget: %d  Avg elapsed: %s  Max elapsed: %s\n",
		stats.Total, stats.CompleteRate*100, stats.OverBudget, stats.AvgElapsed, stats.MaxElapsed)

	fmt.Printf("\n## Alerts in the last %s\n", *window)
	since := time.Now().Add(-*window)
	for _, category := range alertCategories {
		n, err := repo.CountAlertsSince(ctx, category, since)
		if err != nil {
			log.Printf("Error counting %s alerts: %v", category, err)
			continue
		}
		fmt.Printf("%-20s %d\n", category, n)
	}
}

func printCycles(out io.Writer, cycles []*domain.CycleReport) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Started\tInterval\tLimit\tDone\tRecords\tElapsed\tStatus\tMissing\t")
	for _, c := range cycles {
		missing := "-"
		if len(c.Missing) > 0 {
			missing = fmt.Sprintf("%d", len(c.Missing))
		}
		status := string(c.Status)
		if c.BudgetExceeded {
			status += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%d\t%s\t%s\t%s\t\n",
			c.StartedAt.UTC().Format(time.RFC3339),
			c.Interval,
			c.Limit,
			c.Completed, c.Requested,
			c.Records,
			c.Elapsed.Round(time.Millisecond),
			status,
			missing,
		)
	}
	w.Flush()
}

// CycleStats holds statistics about a set of fetch cycles
type CycleStats struct {
	Total        int
	Complete     int
	CompleteRate float64
	OverBudget   int
	AvgElapsed   time.Duration
	MaxElapsed   time.Duration
}

// calculateCycleStats calculates statistics for a set of cycles
func calculateCycleStats(cycles []*domain.CycleReport) CycleStats {
	var stats CycleStats
	stats.Total = len(cycles)
	if stats.Total == 0 {
		return stats
	}

	var totalElapsed time.Duration
	for _, c := range cycles {
		if c.Status == domain.CycleComplete {
			stats.Complete++
		}
		if c.BudgetExceeded {
			stats.OverBudget++
		}
		totalElapsed += c.Elapsed
		if c.Elapsed > stats.MaxElapsed {
			stats.MaxElapsed = c.Elapsed
		}
	}
	stats.CompleteRate = float64(stats.Complete) / float64(stats.Total)
	stats.AvgElapsed = totalElapsed / time.Duration(stats.Total)
	return stats
}
