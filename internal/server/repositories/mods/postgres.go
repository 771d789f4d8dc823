package mods

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/modzart/internal/common"
	"github.com/dmitrijs2005/modzart/internal/dbx"
	"github.com/dmitrijs2005/modzart/internal/server/models"
)

const modColumns = `id, title, description, filename, downloads, project_visibility, user_id, created_at, updated_at`

// PostgresRepository implements mod storage over a dbx.DBTX (*sql.DB or *sql.Tx).
// The file reference is stored in the filename column using
// models.EncodeFileRef.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the mod and fills in ID, CreatedAt and UpdatedAt.
func (r *PostgresRepository) Create(ctx context.Context, mod *models.Mod) (*models.Mod, error) {
	query := `
		INSERT INTO mods (title, description, filename, project_visibility, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, downloads, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		mod.Title, mod.Description, models.EncodeFileRef(mod.File), mod.Visibility, mod.UserID).
		Scan(&mod.ID, &mod.DownloadCount, &mod.CreatedAt, &mod.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return mod, nil
}

// GetByID returns the mod or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Mod, error) {
	query := `SELECT ` + modColumns + ` FROM mods WHERE id = $1`

	mod, err := scanMod(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return mod, nil
}

// List returns mods newest first. An empty Search or zero UserID disables
// the corresponding condition.
func (r *PostgresRepository) List(ctx context.Context, filter models.ModFilter) ([]*models.Mod, error) {
	query := `SELECT ` + modColumns + ` FROM mods
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')
		AND ($2 = 0 OR user_id = $2)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, filter.Search, filter.UserID, filter.Skip, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select mods: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Mod, 0)
	for rows.Next() {
		mod, err := scanMod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateDetails rewrites title and description and refreshes UpdatedAt.
func (r *PostgresRepository) UpdateDetails(ctx context.Context, mod *models.Mod) error {
	query := `
		UPDATE mods SET title = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, mod.ID, mod.Title, mod.Description).Scan(&mod.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetFile swaps the file reference only while the stored value still equals
// expected. Zero affected rows yields common.ErrVersionConflict.
func (r *PostgresRepository) SetFile(ctx context.Context, id int64, expected, next models.FileRef) error {
	query := `
		UPDATE mods SET filename = $2, updated_at = now()
		WHERE id = $1 AND filename = $3
	`
	res, err := r.db.ExecContext(ctx, query, id, models.EncodeFileRef(next), models.EncodeFileRef(expected))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrVersionConflict)
}

// IncrementDownloads bumps the counter and returns the new value.
func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id int64) (int64, error) {
	query := `UPDATE mods SET downloads = downloads + 1 WHERE id = $1 RETURNING downloads`

	var downloads int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&downloads); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return downloads, nil
}

// Delete removes the row or returns common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMod(row rowScanner) (*models.Mod, error) {
	var (
		mod      models.Mod
		filename string
	)
	err := row.Scan(&mod.ID, &mod.Title, &mod.Description, &filename, &mod.DownloadCount,
		&mod.Visibility, &mod.UserID, &mod.CreatedAt, &mod.UpdatedAt)
	if err != nil {
		return nil, err
	}
	mod.File = models.DecodeFileRef(filename)
	return &mod, nil
}
