package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists jobs and their change records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Config holds store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore creates a store instance. Call Init to open the database.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &Store{path: cfg.Path}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded sources.
func (s *Store) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateJob inserts a new job record.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO jobs (id, manifest, manifest_version, status, started_at, completed_at, error, resource_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Manifest,
		job.ManifestVersion,
		job.Status,
		job.StartedAt,
		job.CompletedAt,
		job.Error,
		job.ResourceCount,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	query := `
		SELECT id, manifest, manifest_version, status, started_at, completed_at, error, resource_count, created_at, updated_at
		FROM jobs
		WHERE id = ?
	`

	job := &Job{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.Manifest,
		&job.ManifestVersion,
		&job.Status,
		&job.StartedAt,
		&job.CompletedAt,
		&job.Error,
		&job.ResourceCount,
		&job.CreatedAt,
		&job.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// UpdateJobStatus updates a job's status, stamping the completion time
// for terminal states.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status JobStatus, errMsg *string) error {
	query := `
		UPDATE jobs
		SET status = ?, error = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == JobStatusCompleted || status == JobStatusFailed {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found: %s", id)
	}

	return nil
}

// ListJobs lists jobs newest first with pagination.
func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]*Job, error) {
	query := `
		SELECT id, manifest, manifest_version, status, started_at, completed_at, error, resource_count, created_at, updated_at
		FROM jobs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID,
			&job.Manifest,
			&job.ManifestVersion,
			&job.Status,
			&job.StartedAt,
			&job.CompletedAt,
			&job.Error,
			&job.ResourceCount,
			&job.CreatedAt,
			&job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// AppendChange appends a change record and fills in its generated ID.
func (s *Store) AppendChange(ctx context.Context, change *Change) error {
	query := `
		INSERT INTO changes (job_id, resource, attribute, op, old_value, new_value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		change.JobID,
		change.Resource,
		change.Attribute,
		change.Op,
		change.OldValue,
		change.NewValue,
		change.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get change ID: %w", err)
	}

	change.ID = id
	return nil
}

// ListChanges retrieves changes filtered by job and/or resource,
// oldest first.
func (s *Store) ListChanges(ctx context.Context, jobID, resource *string, limit, offset int) ([]*Change, error) {
	query := `
		SELECT id, job_id, resource, attribute, op, old_value, new_value, timestamp
		FROM changes
		WHERE (? IS NULL OR job_id = ?)
		  AND (? IS NULL OR resource = ?)
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, jobID, jobID, resource, resource, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer rows.Close()

	changes := []*Change{}
	for rows.Next() {
		change := &Change{}
		err := rows.Scan(
			&change.ID,
			&change.JobID,
			&change.Resource,
			&change.Attribute,
			&change.Op,
			&change.OldValue,
			&change.NewValue,
			&change.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}

	return changes, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
