package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"vise/internal/config"
)

// Outcome labels how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Run is one finished compression, as recorded in the ledger.
type Run struct {
	ID               int64
	JobID            string
	SourcePath       string
	DisplayTitle     string
	OutputPath       string
	Outcome          Outcome
	ErrorKind        string
	ErrorMessage     string
	OriginalBytes    int64
	CompressedBytes  int64
	ReductionPercent float64
	OutputLarger     bool
	HardwareUsed     bool
	Elapsed          time.Duration
	FinishedAt       time.Time
}

// Stats aggregates the ledger for status displays.
type Stats struct {
	Total      int
	Completed  int
	Failed     int
	BytesSaved int64
}

// Store manages the finished-run ledger backed by SQLite.
type Store struct {
	db      *sql.DB
	path    string
	maxRuns int
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, maxRuns: cfg.History.MaxRuns}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record appends one finished run and prunes past the retention cap.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            job_id, source_path, display_title, output_path, outcome,
            error_kind, error_message, original_bytes, compressed_bytes,
            reduction_percent, output_larger, hardware_used, elapsed_seconds,
            finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID,
		run.SourcePath,
		nullableString(run.DisplayTitle),
		nullableString(run.OutputPath),
		string(run.Outcome),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		run.OriginalBytes,
		run.CompressedBytes,
		run.ReductionPercent,
		boolToInt(run.OutputLarger),
		boolToInt(run.HardwareUsed),
		run.Elapsed.Seconds(),
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if err := s.prune(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// List returns the most recent runs, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Stats aggregates outcome counts and the net bytes saved by completed runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
        SELECT
            COUNT(1),
            COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN outcome = ? AND compressed_bytes > 0
                THEN original_bytes - compressed_bytes ELSE 0 END), 0)
        FROM runs`,
		string(OutcomeCompleted), string(OutcomeFailed), string(OutcomeCompleted),
	).Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.BytesSaved)
	if err != nil {
		return Stats{}, fmt.Errorf("history stats: %w", err)
	}
	return stats, nil
}

// Clear deletes every recorded run and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

func (s *Store) prune(ctx context.Context) error {
	if s.maxRuns <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
        DELETE FROM runs WHERE id NOT IN (
            SELECT id FROM runs ORDER BY id DESC LIMIT ?
        )`, s.maxRuns)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

const runColumns = "id, job_id, source_path, display_title, output_path, outcome, error_kind, error_message, original_bytes, compressed_bytes, reduction_percent, output_larger, hardware_used, elapsed_seconds, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run          Run
		displayTitle sql.NullString
		outputPath   sql.NullString
		outcome      string
		errorKind    sql.NullString
		errorMessage sql.NullString
		outputLarger sql.NullInt64
		hardwareUsed sql.NullInt64
		elapsedSecs  sql.NullFloat64
		finishedRaw  string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.JobID,
		&run.SourcePath,
		&displayTitle,
		&outputPath,
		&outcome,
		&errorKind,
		&errorMessage,
		&run.OriginalBytes,
		&run.CompressedBytes,
		&run.ReductionPercent,
		&outputLarger,
		&hardwareUsed,
		&elapsedSecs,
		&finishedRaw,
	); err != nil {
		return Run{}, err
	}

	run.DisplayTitle = displayTitle.String
	run.OutputPath = outputPath.String
	run.Outcome = Outcome(outcome)
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	run.OutputLarger = outputLarger.Valid && outputLarger.Int64 != 0
	run.HardwareUsed = hardwareUsed.Valid && hardwareUsed.Int64 != 0
	if elapsedSecs.Valid {
		run.Elapsed = time.Duration(elapsedSecs.Float64 * float64(time.Second))
	}
	if finished, err := parseTimeString(finishedRaw); err == nil {
		run.FinishedAt = finished
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
