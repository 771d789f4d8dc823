package uploadjobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/modzart/internal/common"
	"github.com/dmitrijs2005/modzart/internal/dbx"
	"github.com/dmitrijs2005/modzart/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the job with its caller-assigned ID.
func (r *PostgresRepository) Create(ctx context.Context, job *models.UploadJob) error {
	query := `
		INSERT INTO upload_jobs (id, mod_id, user_id, filename, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, job.ID, job.ModID, job.UserID, job.Filename, string(job.Status), job.Reason).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.UploadJob, error) {
	query := `
		SELECT id, mod_id, user_id, filename, status, reason, created_at, updated_at
		FROM upload_jobs WHERE id = $1
	`
	var (
		job    models.UploadJob
		status string
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&job.ID, &job.ModID, &job.UserID, &job.Filename, &status, &job.Reason, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	job.Status = models.UploadJobStatus(status)
	return &job, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.UploadJobStatus, reason string) error {
	query := `UPDATE upload_jobs SET status = $2, reason = $3, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, string(status), reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}
