package versions

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

// Create inserts a version row. A repeated (mod_id, version_number) pair
// yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, v *models.Version) (*models.Version, error) {
	query := `
		INSERT INTO mod_versions (mod_id, version_number, changelog, storage_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, v.ModID, v.VersionNumber, v.Changelog, v.StorageKey).
		Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

// GetByNumber returns the version or common.ErrorNotFound.
func (r *PostgresRepository) GetByNumber(ctx context.Context, modID int64, number string) (*models.Version, error) {
	query := `
		SELECT id, mod_id, version_number, changelog, storage_key, created_at
		FROM mod_versions WHERE mod_id = $1 AND version_number = $2
	`
	var v models.Version
	err := r.db.QueryRowContext(ctx, query, modID, number).
		Scan(&v.ID, &v.ModID, &v.VersionNumber, &v.Changelog, &v.StorageKey, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &v, nil
}

// ListByMod returns the versions of a mod, newest first.
func (r *PostgresRepository) ListByMod(ctx context.Context, modID int64) ([]*models.Version, error) {
	query := `
		SELECT id, mod_id, version_number, changelog, storage_key, created_at
		FROM mod_versions WHERE mod_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, modID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Version, 0)
	for rows.Next() {
		var v models.Version
		if err := rows.Scan(&v.ID, &v.ModID, &v.VersionNumber, &v.Changelog, &v.StorageKey, &v.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mod_versions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}
