package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuvec/docuvec/internal/db"
)

// ErrNotFound is returned when no job exists with the requested id.
var ErrNotFound = errors.New("job not found")

// Store provides durable persistence for jobs. Different workers write to
// different jobs concurrently; a single job is only ever written by the
// worker that owns it, so no cross-job locking is needed beyond SQLite's
// own transactional guarantees.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new job in stage queued. The insert is durable before
// Create returns; a crash after submit cannot lose the job.
func (s *Store) Create(ctx context.Context, j *Job) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Stage == "" {
		j.Stage = StageQueued
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, document_id, stage, progress, temp_path, filename, content_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.DocumentID, string(j.Stage), j.Progress, j.TempPath, j.Filename, j.ContentKind)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// Get retrieves a single job.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// SetStage records a stage transition, lifting progress to the stage's
// watermark. Progress never decreases: re-entering an early stage on a
// whole-job retry keeps the highest progress reported so far.
func (s *Store) SetStage(ctx context.Context, id string, stage Stage) error {
	return s.update(ctx, id, stage, stage.Watermark())
}

// SetProgress records intra-stage progress (used by the embedding stage).
func (s *Store) SetProgress(ctx context.Context, id string, stage Stage, progress int) error {
	return s.update(ctx, id, stage, progress)
}

func (s *Store) update(ctx context.Context, id string, stage Stage, progress int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET stage = ?, progress = MAX(progress, ?), updated_at = datetime('now')
		WHERE id = ? AND stage NOT IN (?, ?)`,
		string(stage), progress, id, string(StageCompleted), string(StageError))
	if err != nil {
		return fmt.Errorf("updating job %s: %w", id, err)
	}
	return nil
}

// IncrementRetry bumps the retry counter after a failed attempt.
func (s *Store) IncrementRetry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET retry_count = retry_count + 1, updated_at = datetime('now')
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("incrementing retry count for job %s: %w", id, err)
	}
	return nil
}

// Complete marks the job terminal-successful at 100%.
func (s *Store) Complete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET stage = ?, progress = 100, updated_at = datetime('now')
		WHERE id = ?`, string(StageCompleted), id)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", id, err)
	}
	return nil
}

// Fail marks the job terminal-failed with a human-readable summary.
func (s *Store) Fail(ctx context.Context, id, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET stage = ?, error_summary = ?, updated_at = datetime('now')
		WHERE id = ?`, string(StageError), summary, id)
	if err != nil {
		return fmt.Errorf("failing job %s: %w", id, err)
	}
	return nil
}

// Pending returns all non-terminal jobs in submission order. Used at
// startup to re-enqueue work that survived a crash.
func (s *Store) Pending(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+`
		WHERE stage NOT IN (?, ?) ORDER BY created_at`,
		string(StageCompleted), string(StageError))
	if err != nil {
		return nil, fmt.Errorf("querying pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const selectJob = `
	SELECT id, document_id, stage, progress, retry_count, error_summary,
	       temp_path, filename, content_kind, created_at, updated_at
	FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j                    Job
		stage                string
		errorSummary         sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&j.ID, &j.DocumentID, &stage, &j.Progress, &j.RetryCount, &errorSummary,
		&j.TempPath, &j.Filename, &j.ContentKind, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.Stage = Stage(stage)
	if errorSummary.Valid {
		j.ErrorSummary = &errorSummary.String
	}
	j.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	j.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &j, nil
}
