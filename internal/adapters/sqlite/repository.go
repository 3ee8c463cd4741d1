package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.CycleRepository and ports.AlertJournal using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/kline_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Alerts are journaled from the notifier worker while the service writes cycle reports.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Times are stored as epoch milliseconds.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS fetch_cycles (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		interval TEXT NOT NULL,
		kline_limit INTEGER NOT NULL,
		target_open_time INTEGER NULL,
		requested INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		records INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		budget_exceeded INTEGER NOT NULL DEFAULT 0,
		missing TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		detail TEXT NOT NULL,
		suppressed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fetch_cycles_started_at ON fetch_cycles (started_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_category_created_at ON alerts (category, created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- CycleRepository Implementation ---

// SaveCycle stores a cycle report. Saving the same ID twice replaces the row.
func (r *Repository) SaveCycle(ctx context.Context, report *domain.CycleReport) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("%w: cycle report requires an ID", ports.ErrInvalidRequest)
	}
	const query = `
	INSERT OR REPLACE INTO fetch_cycles (id, started_at, interval, kline_limit, target_open_time, requested,
	                                     completed, records, elapsed_ms, status, budget_exceeded, missing)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var target sql.NullInt64
	if report.TargetOpenTime != nil {
		target = sql.NullInt64{Int64: *report.TargetOpenTime, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		report.ID, report.StartedAt.UnixMilli(), report.Interval, report.Limit, target, report.Requested,
		report.Completed, report.Records, report.Elapsed.Milliseconds(), string(report.Status),
		report.BudgetExceeded, strings.Join(report.Missing, ","))
	if err != nil {
		return fmt.Errorf("failed to insert cycle %s: %w: %w", report.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Cycle report saved", map[string]interface{}{"cycleID": report.ID, "status": string(report.Status)})
	return nil
}

// RecentCycles returns up to limit reports, newest first.
func (r *Repository) RecentCycles(ctx context.Context, limit int) ([]*domain.CycleReport, error) {
	const query = `
	SELECT id, started_at, interval, kline_limit, target_open_time, requested,
	       completed, records, elapsed_ms, status, budget_exceeded, missing
	FROM fetch_cycles
	ORDER BY started_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	reports := make([]*domain.CycleReport, 0)
	for rows.Next() {
		report, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle during RecentCycles: %w", err)
		}
		reports = append(reports, report)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}
	return reports, nil
}

// --- AlertJournal Implementation ---

// RecordAlert stores an alert and returns its assigned ID.
func (r *Repository) RecordAlert(ctx context.Context, alert *domain.Alert) (int64, error) {
	const query = `INSERT INTO alerts (category, detail, suppressed, created_at) VALUES (?, ?, ?, ?)`

	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := r.db.ExecContext(ctx, query, alert.Category, alert.Detail, alert.Suppressed, createdAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert %s: %w: %w", alert.Category, ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for alert %s: %w", alert.Category, err)
	}
	alert.ID = id
	return id, nil
}

// CountAlertsSince counts alerts of a category recorded at or after since, suppressed ones included.
func (r *Repository) CountAlertsSince(ctx context.Context, category string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM alerts WHERE category = ? AND created_at >= ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, category, since.UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts for %s: %w: %w", category, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanCycle scans a row into a domain.CycleReport struct.
func scanCycle(s scanner) (*domain.CycleReport, error) {
	c := &domain.CycleReport{}
	var startedAt, elapsedMs int64
	var target sql.NullInt64
	var status, missing string
	err := s.Scan(
		&c.ID, &startedAt, &c.Interval, &c.Limit, &target, &c.Requested,
		&c.Completed, &c.Records, &elapsedMs, &status, &c.BudgetExceeded, &missing)
	if err != nil {
		return nil, err
	}
	c.StartedAt = time.UnixMilli(startedAt)
	c.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	c.Status = domain.CycleStatus(status)
	if target.Valid {
		v := target.Int64
		c.TargetOpenTime = &v
	}
	if missing != "" {
		c.Missing = strings.Split(missing, ",")
	}
	return c, nil
}
