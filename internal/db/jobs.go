package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/models"
)

const jobColumns = `
	id, project_id, status, progress, settings,
	video_url, file_size, error_message,
	created_at, started_at, completed_at
`

func scanJob(row interface{ Scan(...interface{}) error }) (*models.VideoJob, error) {
	job := &models.VideoJob{}
	err := row.Scan(
		&job.ID, &job.ProjectID, &job.Status, &job.Progress, &job.Settings,
		&job.VideoURL, &job.FileSize, &job.ErrorMessage,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *DB) CreateJob(ctx context.Context, job *models.VideoJob) error {
	query := `
		INSERT INTO video_jobs (id, project_id, status, progress, settings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.ProjectID, job.Status, job.Progress, job.Settings,
	).Scan(&job.CreatedAt)
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.VideoJob, error) {
	query := `SELECT ` + jobColumns + ` FROM video_jobs WHERE id = $1`

	job, err := scanJob(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListProjectJobs returns a project's jobs, oldest first.
func (db *DB) ListProjectJobs(ctx context.Context, projectID uuid.UUID) ([]models.VideoJob, error) {
	query := `SELECT ` + jobColumns + ` FROM video_jobs WHERE project_id = $1 ORDER BY created_at`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsByStatus returns all jobs in the given status, oldest first.
func (db *DB) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]models.VideoJob, error) {
	query := `SELECT ` + jobColumns + ` FROM video_jobs WHERE status = $1 ORDER BY created_at`

	rows, err := db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]models.VideoJob, error) {
	var jobs []models.VideoJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClaimOldestPending atomically transitions the oldest pending job to
// processing and returns it, or (nil, nil) when nothing is pending. The
// conditional update is the claim: when two instances race for the same
// row, exactly one sees it in pending state and wins; the loser re-scans.
// Any prior error annotation is cleared and progress is reset to a small
// nonzero value.
func (db *DB) ClaimOldestPending(ctx context.Context) (*models.VideoJob, error) {
	query := `
		UPDATE video_jobs
		SET status = $1, progress = 5, error_message = NULL,
		    started_at = NOW(), completed_at = NULL
		WHERE id = (
			SELECT id FROM video_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(db.QueryRowContext(ctx, query, models.JobStatusProcessing, models.JobStatusPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return job, nil
}

func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	query := `UPDATE video_jobs SET progress = $1 WHERE id = $2 AND status = $3`
	_, err := db.ExecContext(ctx, query, progress, id, models.JobStatusProcessing)
	return err
}

func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, videoURL string, fileSize int64) error {
	query := `
		UPDATE video_jobs
		SET status = $1, progress = 100, video_url = $2, file_size = $3,
		    error_message = NULL, completed_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusCompleted, videoURL, fileSize, time.Now(), id)
	return err
}

func (db *DB) FailJob(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE video_jobs
		SET status = $1, error_message = $2, video_url = NULL, file_size = NULL,
		    completed_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	return err
}

// RecoverProcessingJobs resets every job stuck in processing back to
// pending with an explanatory annotation. Run once at startup: a
// processing row at that point is evidence of a crash mid-render.
// created_at is untouched, so oldest-first pickup holds across the
// restart boundary.
func (db *DB) RecoverProcessingJobs(ctx context.Context, note string) (int, error) {
	query := `
		UPDATE video_jobs
		SET status = $1, progress = 0, error_message = $2,
		    started_at = NULL, completed_at = NULL
		WHERE status = $3
	`
	result, err := db.ExecContext(ctx, query, models.JobStatusPending, note, models.JobStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to recover jobs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// DeleteJob removes a job row. Jobs are only deleted by explicit external
// request, never by the scheduler.
func (db *DB) DeleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM video_jobs WHERE id = $1`, id)
	return err
}
